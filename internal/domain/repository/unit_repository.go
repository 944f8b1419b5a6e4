package repository

import (
	"context"

	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

// UnitRepository define el puerto de persistencia para unidades organizativas.
type UnitRepository interface {
	Create(ctx context.Context, unit *entity.Unit) error
	GetByID(ctx context.Context, id string) (*entity.Unit, error)
	Delete(ctx context.Context, id string) error
}

package repository

import (
	"context"

	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

// MembershipRepository define el puerto de persistencia para membresías (unidad, principal, rol).
// Create devuelve domain.ErrAlreadyMember si el par (unidad, principal) ya existe.
type MembershipRepository interface {
	Create(ctx context.Context, m *entity.Membership) error
	GetByID(ctx context.Context, id string) (*entity.Membership, error)
	GetByUnitAndPrincipal(ctx context.Context, unitID, principal string) (*entity.Membership, error)
	ListByUnit(ctx context.Context, unitID string) ([]*entity.Membership, error)
	CountByRole(ctx context.Context, unitID string, role entity.Role) (int, error)
	UpdateRole(ctx context.Context, id string, role entity.Role) error
	Delete(ctx context.Context, id string) error
	DeleteByUnit(ctx context.Context, unitID string) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
)

var _ repository.UnitRepository = (*UnitRepo)(nil)

// UnitRepo implementación del puerto UnitRepository sobre PostgreSQL.
type UnitRepo struct {
	q Querier
}

// NewUnitRepository construye el adaptador de persistencia para unidades.
func NewUnitRepository(q Querier) *UnitRepo {
	return &UnitRepo{q: q}
}

func (r *UnitRepo) Create(ctx context.Context, unit *entity.Unit) error {
	query := `
		INSERT INTO units (id, name, kind, owner_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		unit.ID, unit.Name, string(unit.Kind), unit.OwnerEmail, unit.CreatedAt, unit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

func (r *UnitRepo) GetByID(ctx context.Context, id string) (*entity.Unit, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `
		SELECT id, name, kind, owner_email, created_at, updated_at
		FROM units WHERE id = $1`
	var u entity.Unit
	var kind string
	err := r.q.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &kind, &u.OwnerEmail, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get unit: %w", err)
	}
	u.Kind = entity.UnitKind(kind)
	return &u, nil
}

func (r *UnitRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM units WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Stoq-api/internal/application/membership"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
)

var _ membership.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error {
	return r.run(ctx, "", fn)
}

// RunLocked como Run, pero antes toma SELECT ... FOR UPDATE sobre la unidad.
// Dos transacciones que mutan membresías de la misma unidad quedan en serie.
func (r *TxRunner) RunLocked(ctx context.Context, unitID string, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error {
	if !validID(unitID) {
		return domain.ErrNotFound
	}
	return r.run(ctx, unitID, fn)
}

func (r *TxRunner) run(ctx context.Context, lockUnitID string, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := runIn(ctx, tx, lockUnitID, fn); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// runIn toma el lock de la unidad (si corresponde) y ejecuta fn con repos sobre q.
func runIn(ctx context.Context, q Querier, lockUnitID string, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error {
	if lockUnitID != "" {
		if err := lockUnit(ctx, q, lockUnitID); err != nil {
			return err
		}
	}
	return fn(NewUnitRepository(q), NewMembershipRepository(q))
}

func lockUnit(ctx context.Context, q Querier, unitID string) error {
	var id string
	err := q.QueryRow(ctx, `SELECT id FROM units WHERE id = $1 FOR UPDATE`, unitID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidTextRepresentation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock unit: %w", err)
	}
	return nil
}

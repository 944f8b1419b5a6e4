package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/Stoq-api/internal/application/verification"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

var _ verification.CodeStore = (*VerificationCodeRepo)(nil)

// VerificationCodeRepo nivel durable de códigos (tabla verification_codes).
// Una fila por (principal, scenario); el canje es un DELETE condicional.
type VerificationCodeRepo struct {
	db *sql.DB
}

// NewVerificationCodeRepository construye el almacén durable sobre database/sql.
func NewVerificationCodeRepository(db *sql.DB) *VerificationCodeRepo {
	return &VerificationCodeRepo{db: db}
}

// Save inserta el código o reemplaza el existente para (principal, scenario).
func (r *VerificationCodeRepo) Save(ctx context.Context, code *entity.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (principal, scenario, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (principal, scenario)
		DO UPDATE SET code = EXCLUDED.code, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`
	_, err := r.db.ExecContext(ctx, query,
		code.Principal, string(code.Scenario), code.Code, code.CreatedAt, code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert verification code: %w", err)
	}
	return nil
}

// Consume borra la fila solo si el código coincide y no venció. Si no borró nada,
// clasifica: vencido (se elimina si sigue vencido) o inválido (la fila se conserva).
func (r *VerificationCodeRepo) Consume(ctx context.Context, principal string, scenario entity.Scenario, code string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_codes
		 WHERE principal = $1 AND scenario = $2 AND code = $3 AND expires_at > $4`,
		principal, string(scenario), code, now,
	)
	if err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}
	if n == 1 {
		return nil
	}

	var expiresAt time.Time
	err = r.db.QueryRowContext(ctx,
		`SELECT expires_at FROM verification_codes WHERE principal = $1 AND scenario = $2`,
		principal, string(scenario),
	).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("lookup verification code: %w", err)
	}
	if !now.Before(expiresAt) {
		// Solo la fila vencida: un código recién emitido entre el SELECT y este DELETE se conserva.
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM verification_codes WHERE principal = $1 AND scenario = $2 AND expires_at <= $3`,
			principal, string(scenario), now,
		)
		if err != nil {
			return fmt.Errorf("delete expired verification code: %w", err)
		}
		return domain.ErrExpired
	}
	return domain.ErrInvalidCode
}

// Delete elimina la fila de (principal, scenario).
func (r *VerificationCodeRepo) Delete(ctx context.Context, principal string, scenario entity.Scenario) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE principal = $1 AND scenario = $2`,
		principal, string(scenario),
	)
	if err != nil {
		return fmt.Errorf("delete verification code: %w", err)
	}
	return nil
}

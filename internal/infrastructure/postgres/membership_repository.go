package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
)

var _ repository.MembershipRepository = (*MembershipRepo)(nil)

const membershipColumns = `id, unit_id, principal, role, joined_at, updated_at`

// MembershipRepo implementación del puerto MembershipRepository sobre PostgreSQL.
type MembershipRepo struct {
	q Querier
}

// NewMembershipRepository construye el adaptador de persistencia para membresías.
func NewMembershipRepository(q Querier) *MembershipRepo {
	return &MembershipRepo{q: q}
}

func (r *MembershipRepo) Create(ctx context.Context, m *entity.Membership) error {
	query := `
		INSERT INTO memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, m.ID, m.UnitID, m.Principal, string(m.Role), m.JoinedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (r *MembershipRepo) GetByID(ctx context.Context, id string) (*entity.Membership, error) {
	if !validID(id) {
		return nil, nil
	}
	row := r.q.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
	return scanMembership(row)
}

func (r *MembershipRepo) GetByUnitAndPrincipal(ctx context.Context, unitID, principal string) (*entity.Membership, error) {
	if !validID(unitID) {
		return nil, nil
	}
	row := r.q.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE unit_id = $1 AND principal = $2`,
		unitID, principal)
	return scanMembership(row)
}

func (r *MembershipRepo) ListByUnit(ctx context.Context, unitID string) ([]*entity.Membership, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE unit_id = $1 ORDER BY joined_at, id`,
		unitID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	var list []*entity.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *MembershipRepo) CountByRole(ctx context.Context, unitID string, role entity.Role) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships WHERE unit_id = $1 AND role = $2`,
		unitID, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}
	return n, nil
}

func (r *MembershipRepo) UpdateRole(ctx context.Context, id string, role entity.Role) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE memberships SET role = $2, updated_at = NOW() WHERE id = $1`,
		id, string(role))
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MembershipRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM memberships WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

func (r *MembershipRepo) DeleteByUnit(ctx context.Context, unitID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM memberships WHERE unit_id = $1`, unitID); err != nil {
		return fmt.Errorf("delete unit memberships: %w", err)
	}
	return nil
}

func scanMembership(row pgx.Row) (*entity.Membership, error) {
	var m entity.Membership
	var role string
	if err := row.Scan(&m.ID, &m.UnitID, &m.Principal, &role, &m.JoinedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	m.Role = entity.Role(role)
	return &m, nil
}

package membership

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// Authorizer evalúa roles por unidad y aplica la regla de que toda unidad con
// membresías conserva al menos un ADMIN. Las mutaciones corren en RunLocked.
type Authorizer struct {
	members repository.MembershipRepository
	tx      TxRunner
	users   PrincipalDirectory
	log     *logger.Logger
	now     func() time.Time
}

// NewAuthorizer construye el autorizador.
func NewAuthorizer(members repository.MembershipRepository, tx TxRunner, users PrincipalDirectory, log *logger.Logger) *Authorizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Authorizer{
		members: members,
		tx:      tx,
		users:   users,
		log:     log.WithComponent("membership"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RoleOf devuelve el rol del principal en la unidad; ok=false si no es miembro.
func (a *Authorizer) RoleOf(ctx context.Context, unitID, principal string) (entity.Role, bool, error) {
	return roleOf(ctx, a.members, unitID, principal)
}

// IsMember indica si el principal tiene cualquier rol en la unidad.
func (a *Authorizer) IsMember(ctx context.Context, unitID, principal string) (bool, error) {
	_, ok, err := a.RoleOf(ctx, unitID, principal)
	return ok, err
}

// IsAdmin indica si el principal es ADMIN de la unidad.
func (a *Authorizer) IsAdmin(ctx context.Context, unitID, principal string) (bool, error) {
	m, err := membershipOf(ctx, a.members, unitID, principal)
	if err != nil {
		return false, err
	}
	return m.IsAdmin(), nil
}

// RequireAdmin devuelve domain.ErrForbidden si el principal no es ADMIN de la unidad.
func (a *Authorizer) RequireAdmin(ctx context.Context, unitID, principal string) error {
	return EnsureAdmin(ctx, a.members, unitID, principal)
}

// RequireMember devuelve domain.ErrForbidden si el principal no pertenece a la unidad.
func (a *Authorizer) RequireMember(ctx context.Context, unitID, principal string) error {
	if principal == "" {
		return domain.ErrUnauthorized
	}
	ok, err := a.IsMember(ctx, unitID, principal)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

// EnsureAdmin comprobación de ADMIN con el repositorio recibido (dentro o fuera de una transacción).
func EnsureAdmin(ctx context.Context, members repository.MembershipRepository, unitID, principal string) error {
	if principal == "" {
		return domain.ErrUnauthorized
	}
	m, err := membershipOf(ctx, members, unitID, principal)
	if err != nil {
		return err
	}
	if !m.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// membershipOf fila del principal en la unidad; nil si no es miembro.
func membershipOf(ctx context.Context, members repository.MembershipRepository, unitID, principal string) (*entity.Membership, error) {
	return members.GetByUnitAndPrincipal(ctx, unitID, entity.NormalizeEmail(principal))
}

func roleOf(ctx context.Context, members repository.MembershipRepository, unitID, principal string) (entity.Role, bool, error) {
	m, err := membershipOf(ctx, members, unitID, principal)
	if err != nil {
		return "", false, err
	}
	if m == nil {
		return "", false, nil
	}
	return m.Role, true, nil
}

// ListMembers lista las membresías de la unidad; requiere ser miembro.
func (a *Authorizer) ListMembers(ctx context.Context, unitID, principal string) ([]*entity.Membership, error) {
	if err := a.RequireMember(ctx, unitID, principal); err != nil {
		return nil, err
	}
	return a.members.ListByUnit(ctx, unitID)
}

// AddMember agrega un principal registrado con el rol indicado. Requiere operador ADMIN.
func (a *Authorizer) AddMember(ctx context.Context, unitID, principal string, role entity.Role, operator string) (*entity.Membership, error) {
	principal = entity.NormalizeEmail(principal)
	if principal == "" || !role.IsValid() {
		return nil, domain.ErrInvalidInput
	}

	var created *entity.Membership
	err := a.tx.RunLocked(ctx, unitID, func(_ repository.UnitRepository, members repository.MembershipRepository) error {
		if err := EnsureAdmin(ctx, members, unitID, operator); err != nil {
			return err
		}
		registered, err := a.users.ExistsByEmail(ctx, principal)
		if err != nil {
			return err
		}
		if !registered {
			return domain.ErrNotFound
		}
		existing, err := members.GetByUnitAndPrincipal(ctx, unitID, principal)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyMember
		}
		now := a.now()
		m := &entity.Membership{
			ID:        uuid.New().String(),
			UnitID:    unitID,
			Principal: principal,
			Role:      role,
			JoinedAt:  now,
			UpdatedAt: now,
		}
		if err := members.Create(ctx, m); err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("unit_id", unitID).Str("principal", principal).Str("role", string(role)).Str("operator", operator).Msg("miembro agregado")
	return created, nil
}

// ChangeRole cambia el rol de un miembro. Degradar al único ADMIN devuelve domain.ErrLastAdmin sin escribir.
func (a *Authorizer) ChangeRole(ctx context.Context, unitID, memberID string, newRole entity.Role, operator string) (*entity.Membership, error) {
	if !newRole.IsValid() {
		return nil, domain.ErrInvalidInput
	}

	var updated *entity.Membership
	err := a.tx.RunLocked(ctx, unitID, func(_ repository.UnitRepository, members repository.MembershipRepository) error {
		if err := EnsureAdmin(ctx, members, unitID, operator); err != nil {
			return err
		}
		target, err := memberOf(ctx, members, unitID, memberID)
		if err != nil {
			return err
		}
		if target.Role == newRole {
			updated = target
			return nil
		}
		if target.Role == entity.RoleAdmin {
			if err := ensureOtherAdmin(ctx, members, unitID); err != nil {
				return err
			}
		}
		if err := members.UpdateRole(ctx, target.ID, newRole); err != nil {
			return err
		}
		target.Role = newRole
		target.UpdatedAt = a.now()
		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("unit_id", unitID).Str("member_id", memberID).Str("role", string(newRole)).Str("operator", operator).Msg("rol actualizado")
	return updated, nil
}

// RemoveMember elimina una membresía. Quitar al único ADMIN devuelve domain.ErrLastAdmin.
func (a *Authorizer) RemoveMember(ctx context.Context, unitID, memberID, operator string) error {
	err := a.tx.RunLocked(ctx, unitID, func(_ repository.UnitRepository, members repository.MembershipRepository) error {
		if err := EnsureAdmin(ctx, members, unitID, operator); err != nil {
			return err
		}
		target, err := memberOf(ctx, members, unitID, memberID)
		if err != nil {
			return err
		}
		if target.Role == entity.RoleAdmin {
			if err := ensureOtherAdmin(ctx, members, unitID); err != nil {
				return err
			}
		}
		return members.Delete(ctx, target.ID)
	})
	if err != nil {
		return err
	}
	a.log.Info().Str("unit_id", unitID).Str("member_id", memberID).Str("operator", operator).Msg("miembro eliminado")
	return nil
}

// memberOf busca la membresía y exige que pertenezca a la unidad.
func memberOf(ctx context.Context, members repository.MembershipRepository, unitID, memberID string) (*entity.Membership, error) {
	m, err := members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.UnitID != unitID {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func ensureOtherAdmin(ctx context.Context, members repository.MembershipRepository, unitID string) error {
	n, err := members.CountByRole(ctx, unitID, entity.RoleAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return domain.ErrLastAdmin
	}
	return nil
}

package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Stoq-api/internal/domain"
)

// Role rol de un principal dentro de una unidad.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

// IsValid informa si el rol pertenece a la enumeración cerrada.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	default:
		return false
	}
}

// ParseRole convierte la entrada externa en un Role válido.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: rol desconocido %q", domain.ErrInvalidInput, s)
	}
	return r, nil
}

// Membership fila (unidad, principal, rol). Única por (UnitID, Principal).
type Membership struct {
	ID        string
	UnitID    string
	Principal string
	Role      Role
	JoinedAt  time.Time
	UpdatedAt time.Time
}

// IsAdmin atajo para el rol ADMIN.
func (m *Membership) IsAdmin() bool {
	return m != nil && m.Role == RoleAdmin
}

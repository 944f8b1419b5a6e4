package dto

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

var roleRule = validation.In(string(entity.RoleAdmin), string(entity.RoleManager), string(entity.RoleMember))

// CreateUnitRequest alta de unidad organizativa; el creador queda como ADMIN.
type CreateUnitRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (r *CreateUnitRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Kind = strings.ToUpper(strings.TrimSpace(r.Kind))
}

func (r CreateUnitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Kind, validation.In(string(entity.UnitKindCluster), string(entity.UnitKindTeam))),
	)
}

// AddMemberRequest alta de miembro en una unidad.
type AddMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *AddMemberRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.ToUpper(strings.TrimSpace(r.Role))
}

func (r AddMemberRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, emailRule),
		validation.Field(&r.Role, validation.Required, roleRule),
	)
}

// ChangeRoleRequest cambio de rol de un miembro.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

func (r *ChangeRoleRequest) Normalize() {
	r.Role = strings.ToUpper(strings.TrimSpace(r.Role))
}

func (r ChangeRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, roleRule),
	)
}

// UnitResponse salida de una unidad.
type UnitResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	OwnerEmail string    `json:"owner_email"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemberResponse salida de una membresía.
type MemberResponse struct {
	ID        string    `json:"id"`
	UnitID    string    `json:"unit_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToUnitResponse convierte la entidad.
func ToUnitResponse(u *entity.Unit) UnitResponse {
	return UnitResponse{ID: u.ID, Name: u.Name, Kind: string(u.Kind), OwnerEmail: u.OwnerEmail, CreatedAt: u.CreatedAt}
}

// ToMemberResponse convierte la entidad.
func ToMemberResponse(m *entity.Membership) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		UnitID:    m.UnitID,
		Email:     m.Principal,
		Role:      string(m.Role),
		JoinedAt:  m.JoinedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ToMemberResponses convierte una lista de membresías.
func ToMemberResponses(list []*entity.Membership) []MemberResponse {
	out := make([]MemberResponse, 0, len(list))
	for _, m := range list {
		out = append(out, ToMemberResponse(m))
	}
	return out
}

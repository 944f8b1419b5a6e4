package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Stoq-api/internal/application/dto"
	"github.com/jhoicas/Stoq-api/internal/application/membership"
	"github.com/jhoicas/Stoq-api/internal/application/usecase"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// UnitHandler maneja unidades y sus membresías.
type UnitHandler struct {
	units *usecase.UnitUseCase
	authz *membership.Authorizer
	log   *logger.Logger
}

// NewUnitHandler construye el handler de unidades.
func NewUnitHandler(units *usecase.UnitUseCase, authz *membership.Authorizer, log *logger.Logger) *UnitHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &UnitHandler{units: units, authz: authz, log: log.WithComponent("http_units")}
}

// Create godoc
// @Summary      Crear unidad (el creador queda como ADMIN)
// @Tags         units
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.CreateUnitRequest  true  "name, kind (CLUSTER | TEAM)"
// @Success      201   {object}  dto.UnitResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/units [post]
func (h *UnitHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateUnitRequest
	if err := parseBody(c, &in); err != nil {
		return writeError(c, h.log, err)
	}
	unit, err := h.units.Create(c.UserContext(), in, GetPrincipal(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(unit)
}

// Delete godoc
// @Summary      Eliminar unidad y sus membresías
// @Tags         units
// @Security     BearerAuth
// @Param        id   path  string  true  "ID de la unidad"
// @Success      204
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/units/{id} [delete]
func (h *UnitHandler) Delete(c *fiber.Ctx) error {
	if err := h.units.Delete(c.UserContext(), c.Params("id"), GetPrincipal(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListMembers godoc
// @Summary      Listar miembros de la unidad
// @Tags         units
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID de la unidad"
// @Success      200  {array}   dto.MemberResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/units/{id}/members [get]
func (h *UnitHandler) ListMembers(c *fiber.Ctx) error {
	list, err := h.authz.ListMembers(c.UserContext(), c.Params("id"), GetPrincipal(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToMemberResponses(list))
}

// AddMember godoc
// @Summary      Agregar miembro a la unidad
// @Tags         units
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string                true  "ID de la unidad"
// @Param        body  body  dto.AddMemberRequest  true  "email, role"
// @Success      201   {object}  dto.MemberResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/units/{id}/members [post]
func (h *UnitHandler) AddMember(c *fiber.Ctx) error {
	var in dto.AddMemberRequest
	if err := parseBody(c, &in); err != nil {
		return writeError(c, h.log, err)
	}
	role, err := entity.ParseRole(in.Role)
	if err != nil {
		return writeError(c, h.log, err)
	}
	m, err := h.authz.AddMember(c.UserContext(), c.Params("id"), in.Email, role, GetPrincipal(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToMemberResponse(m))
}

// ChangeRole godoc
// @Summary      Cambiar rol de un miembro
// @Tags         units
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id        path  string                 true  "ID de la unidad"
// @Param        memberId  path  string                 true  "ID de la membresía"
// @Param        body      body  dto.ChangeRoleRequest  true  "role"
// @Success      200   {object}  dto.MemberResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/units/{id}/members/{memberId} [put]
func (h *UnitHandler) ChangeRole(c *fiber.Ctx) error {
	var in dto.ChangeRoleRequest
	if err := parseBody(c, &in); err != nil {
		return writeError(c, h.log, err)
	}
	role, err := entity.ParseRole(in.Role)
	if err != nil {
		return writeError(c, h.log, err)
	}
	m, err := h.authz.ChangeRole(c.UserContext(), c.Params("id"), c.Params("memberId"), role, GetPrincipal(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToMemberResponse(m))
}

// RemoveMember godoc
// @Summary      Quitar miembro de la unidad
// @Tags         units
// @Security     BearerAuth
// @Param        id        path  string  true  "ID de la unidad"
// @Param        memberId  path  string  true  "ID de la membresía"
// @Success      204
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/units/{id}/members/{memberId} [delete]
func (h *UnitHandler) RemoveMember(c *fiber.Ctx) error {
	if err := h.authz.RemoveMember(c.UserContext(), c.Params("id"), c.Params("memberId"), GetPrincipal(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

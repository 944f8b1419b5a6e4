package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Stoq-api/internal/application/auth"
	"github.com/jhoicas/Stoq-api/internal/application/dto"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// AuthHandler maneja códigos de verificación, registro, login y sesión.
type AuthHandler struct {
	uc  *auth.AuthUseCase
	log *logger.Logger
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(uc *auth.AuthUseCase, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{uc: uc, log: log.WithComponent("http_auth")}
}

// SendCode godoc
// @Summary      Enviar código de verificación
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SendCodeRequest  true  "email, scenario (REGISTER | RESET_PASSWORD)"
// @Success      202   {object}  dto.MessageResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      429   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/auth/verification-code [post]
func (h *AuthHandler) SendCode(c *fiber.Ctx) error {
	var in dto.SendCodeRequest
	if err := parseBody(c, &in); err != nil {
		return writeError(c, h.log, err)
	}
	scenario, err := entity.ParseScenario(in.Scenario)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if err := h.uc.SendCode(c.UserContext(), in.Email, scenario); err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.MessageResponse{Message: "código enviado"})
}

// Register godoc
// @Summary      Registrar usuario con código de verificación
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "email, password, name, code"
// @Success      201   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in dto.RegisterRequest
	if err := parseBody(c, &in); err != nil {
		return writeError(c, h.log, err)
	}
	user, err := h.uc.Register(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login godoc
// @Summary      Iniciar sesión
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "email, password"
// @Success      200   {object}  dto.LoginResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := parseBody(c, &in); err != nil {
		return writeError(c, h.log, err)
	}
	resp, err := h.uc.Login(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(resp)
}

// Refresh godoc
// @Summary      Renovar token de sesión
// @Description  Acepta el token en el cuerpo o en el header Authorization.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RefreshRequest  false  "token"
// @Success      200   {object}  dto.TokenResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var in dto.RefreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, h.log, domain.ErrInvalidInput)
		}
	}
	token := in.Token
	if token == "" {
		token, _ = bearerToken(c.Get(fiber.HeaderAuthorization))
	}
	if token == "" {
		return writeError(c, h.log, domain.ErrUnauthorized)
	}
	resp, err := h.uc.Refresh(c.UserContext(), token)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(resp)
}

// ResetPassword godoc
// @Summary      Restablecer contraseña con código RESET_PASSWORD
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ResetPasswordRequest  true  "email, code, password, confirm_password"
// @Success      200   {object}  dto.MessageResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var in dto.ResetPasswordRequest
	if err := parseBody(c, &in); err != nil {
		return writeError(c, h.log, err)
	}
	if err := h.uc.ResetPassword(c.UserContext(), in); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MessageResponse{Message: "contraseña actualizada"})
}

// Me godoc
// @Summary      Perfil del usuario autenticado
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  dto.UserResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	me, err := h.uc.Me(c.UserContext(), GetPrincipal(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(me)
}

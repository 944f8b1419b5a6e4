package http

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Stoq-api/internal/application/dto"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/pkg/jwt"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// El orden importa: ErrTokenExpired también coincide con ErrInvalidToken.
var errorMappings = []errorMapping{
	{jwt.ErrTokenExpired, fiber.StatusUnauthorized, "INVALID_TOKEN", "el token expiró"},
	{jwt.ErrInvalidToken, fiber.StatusUnauthorized, "INVALID_TOKEN", "token inválido"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED", "credenciales requeridas o inválidas"},
	{domain.ErrInvalidCode, fiber.StatusBadRequest, "INVALID_CODE", "código de verificación inválido"},
	{domain.ErrExpired, fiber.StatusBadRequest, "CODE_EXPIRED", "el código de verificación expiró"},
	{domain.ErrAlreadyMember, fiber.StatusConflict, "ALREADY_MEMBER", "el usuario ya es miembro de la unidad"},
	{domain.ErrLastAdmin, fiber.StatusConflict, "LAST_ADMIN", "la unidad debe conservar al menos un ADMIN"},
	{domain.ErrEmailAlreadyExists, fiber.StatusConflict, "EMAIL_EXISTS", "el email ya está registrado"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN", "no tiene permisos sobre la unidad"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "recurso no encontrado"},
	{domain.ErrStorageUnavailable, fiber.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "almacenamiento no disponible, intente más tarde"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION", "datos inválidos"},
}

// writeError traduce errores de dominio a dto.ErrorResponse. Lo no mapeado es 500 y se registra.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: verrs.Error()})
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: m.message})
		}
	}
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error no controlado")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

type validatable interface {
	Validate() error
}

type normalizer interface {
	Normalize()
}

// parseBody decodifica el JSON, normaliza y aplica la validación del DTO si la tiene.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return domain.ErrInvalidInput
	}
	if n, ok := out.(normalizer); ok {
		n.Normalize()
	}
	if v, ok := out.(validatable); ok {
		return v.Validate()
	}
	return nil
}

package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Stoq-api/internal/application/auth"
	"github.com/jhoicas/Stoq-api/internal/application/dto"
	"github.com/jhoicas/Stoq-api/pkg/jwt"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// Resultados del gate para métricas.
const (
	GateAnonymous     = "anonymous"
	GateMalformed     = "malformed"
	GateInvalid       = "invalid"
	GateExpired       = "expired"
	GateAuthenticated = "authenticated"
)

// TokenValidator resuelve el principal de un token de sesión.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// GateMetrics cuenta los resultados del gate.
type GateMetrics interface {
	GateResult(result string)
}

// AuthGate resuelve la identidad del request a partir del header Authorization.
// Nunca responde con error: sin token o con token inválido el request sigue anónimo
// y RequirePrincipal (o la autorización de la unidad) decide.
func AuthGate(tokens TokenValidator, log *logger.Logger, metrics GateMetrics) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("auth_gate")
	record := func(result string) {
		if metrics != nil {
			metrics.GateResult(result)
		}
	}

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			record(GateAnonymous)
			return c.Next()
		}
		token, ok := bearerToken(header)
		if !ok {
			log.Debug().Str("path", c.Path()).Msg("header Authorization sin esquema Bearer")
			record(GateMalformed)
			return c.Next()
		}

		principal, err := tokens.Validate(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				log.Debug().Str("path", c.Path()).Msg("token expirado")
				record(GateExpired)
			} else {
				log.Warn().Err(err).Str("path", c.Path()).Str("ip", c.IP()).Msg("token rechazado")
				record(GateInvalid)
			}
			return c.Next()
		}

		c.SetUserContext(auth.ContextWithPrincipal(c.UserContext(), principal))
		record(GateAuthenticated)
		return c.Next()
	}
}

// RequirePrincipal corta con 401 si el gate no resolvió identidad.
func RequirePrincipal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetPrincipal(c) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "se requiere un token Bearer válido"})
		}
		return c.Next()
	}
}

// GetPrincipal devuelve el principal del context del request o "" si es anónimo.
func GetPrincipal(c *fiber.Ctx) string {
	principal, _ := auth.PrincipalFromContext(c.UserContext())
	return principal
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

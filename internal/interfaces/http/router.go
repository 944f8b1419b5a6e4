package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jhoicas/Stoq-api/internal/application/auth"
	"github.com/jhoicas/Stoq-api/internal/application/membership"
	"github.com/jhoicas/Stoq-api/internal/application/usecase"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/metrics"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC      *auth.AuthUseCase
	UnitUC      *usecase.UnitUseCase
	Authorizer  *membership.Authorizer
	Tokens      TokenValidator
	Metrics     *metrics.Metrics
	RateLimiter *RateLimiter
	Log         *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Metrics != nil {
		app.Use(RequestMetrics(deps.Metrics))
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// El gate resuelve identidad en toda la API; no rechaza.
	api := app.Group("/api", AuthGate(deps.Tokens, deps.Log, deps.Metrics))

	// Auth (público salvo /me)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC, deps.Log)
	authGroup.Post("/verification-code", deps.RateLimiter.Middleware(), authHandler.SendCode)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/reset-password", authHandler.ResetPassword)
	authGroup.Get("/me", RequirePrincipal(), authHandler.Me)

	// Unidades (requieren principal; el rol lo decide el autorizador)
	units := api.Group("/units", RequirePrincipal())
	unitHandler := NewUnitHandler(deps.UnitUC, deps.Authorizer, deps.Log)
	units.Post("/", unitHandler.Create)
	units.Delete("/:id", unitHandler.Delete)
	units.Get("/:id/members", unitHandler.ListMembers)
	units.Post("/:id/members", unitHandler.AddMember)
	units.Put("/:id/members/:memberId", unitHandler.ChangeRole)
	units.Delete("/:id/members/:memberId", unitHandler.RemoveMember)
}

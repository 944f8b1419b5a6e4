package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/Stoq-api/internal/application/auth"
	"github.com/jhoicas/Stoq-api/internal/application/membership"
	"github.com/jhoicas/Stoq-api/internal/application/usecase"
	"github.com/jhoicas/Stoq-api/internal/application/verification"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/cache"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/mail"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/memory"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/metrics"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Stoq-api/internal/interfaces/http"
	"github.com/jhoicas/Stoq-api/pkg/config"
	"github.com/jhoicas/Stoq-api/pkg/jwt"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// storage repositorios y niveles de códigos según STORAGE_DRIVER.
type storage struct {
	users    repository.UserRepository
	members  repository.MembershipRepository
	tx       membership.TxRunner
	primary  verification.CodeStore
	fallback verification.CodeStore
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.StorageDriver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer store.close()

	m := metrics.New()

	tokens, err := jwt.NewManager(jwt.Config{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.TTL(),
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("configurar tokens")
	}

	// Sin SMTP_HOST los códigos solo se registran en el log (modo simulado).
	var notifier verification.Notifier
	if cfg.SMTP.Enabled() {
		notifier = mail.NewSMTPNotifier(cfg.SMTP)
	} else {
		log.Warn().Msg("SMTP no configurado: los códigos no se envían por correo")
		notifier = mail.NewLogNotifier(log)
	}

	broker := verification.NewBroker(store.primary, store.fallback, notifier, log,
		verification.WithTTL(cfg.Verification.TTL()),
		verification.WithMetrics(m),
	)
	authUC := auth.NewAuthUseCase(store.users, broker, tokens, log)
	unitUC := usecase.NewUnitUseCase(store.tx, log)
	authorizer := membership.NewAuthorizer(store.members, store.tx, store.users, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:      authUC,
		UnitUC:      unitUC,
		Authorizer:  authorizer,
		Tokens:      tokens,
		Metrics:     m,
		RateLimiter: httpRouter.NewRateLimiter(cfg.HTTP.RateLimitRPM),
		Log:         log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	// Notificaciones en curso antes de cerrar conexiones.
	broker.Wait()

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.App.StorageDriver == config.StorageDriverMemory {
		log.Warn().Msg("driver en memoria: los datos se pierden al reiniciar")
		mem := memory.NewStore()
		return &storage{
			users:    mem.Users(),
			members:  mem.Memberships(),
			tx:       mem,
			primary:  memory.NewCodeStore(),
			fallback: memory.NewCodeStore(),
			close:    func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	sqlDB := postgres.NewSQLDB(pool)

	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		// Redis caído al arrancar no impide servir: los códigos van al nivel durable.
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis no disponible, se usará solo el nivel durable")
	}
	durable := postgres.NewVerificationCodeRepository(sqlDB)

	st := &storage{
		users:   postgres.NewUserRepository(pool),
		members: postgres.NewMembershipRepository(pool),
		tx:      postgres.NewTxRunner(pool),
		primary: durable,
		close: func() {
			if rdb != nil {
				_ = rdb.Close()
			}
			_ = sqlDB.Close()
			pool.Close()
		},
	}
	if rdb != nil {
		st.primary = cache.NewCodeStore(rdb)
		st.fallback = durable
	}
	return st, nil
}

package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// Niveles de almacenamiento (etiquetas de métricas y logs).
const (
	TierPrimary  = "primary"
	TierFallback = "fallback"
)

// DefaultTTL ventana de validez de un código.
const DefaultTTL = 5 * time.Minute

const defaultNotifyTimeout = 30 * time.Second

// Option configura el Broker.
type Option func(*Broker)

// WithTTL cambia la ventana de validez de los códigos.
func WithTTL(ttl time.Duration) Option {
	return func(b *Broker) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithClock inyecta el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithCodeGenerator reemplaza el generador aleatorio de códigos.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(b *Broker) {
		if gen != nil {
			b.generate = gen
		}
	}
}

// WithMetrics registra contadores de emisión y consumo.
func WithMetrics(m Metrics) Option {
	return func(b *Broker) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithNotifyTimeout límite de tiempo para el envío del código.
func WithNotifyTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.notifyTimeout = d
		}
	}
}

// Broker orquesta la emisión y el canje de códigos de verificación sobre dos niveles:
// primario (efímero, con TTL nativo) y respaldo (durable), usado solo si el primario falla.
type Broker struct {
	primary  CodeStore
	fallback CodeStore
	notifier Notifier
	log      *logger.Logger
	metrics  Metrics

	ttl           time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	generate      func() (string, error)

	wg sync.WaitGroup
}

// NewBroker construye el broker. fallback y notifier pueden ser nil.
func NewBroker(primary, fallback CodeStore, notifier Notifier, log *logger.Logger, opts ...Option) *Broker {
	if log == nil {
		log = logger.Nop()
	}
	b := &Broker{
		primary:       primary,
		fallback:      fallback,
		notifier:      notifier,
		log:           log.WithComponent("verification"),
		metrics:       nopMetrics{},
		ttl:           DefaultTTL,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
		generate:      RandomCode,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TTL ventana de validez configurada.
func (b *Broker) TTL() time.Duration {
	return b.ttl
}

// RandomCode genera un código uniforme de seis dígitos (100000-999999).
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generar código: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// Generate emite un código nuevo para (principal, escenario), reemplazando al anterior.
// El envío al usuario es asíncrono y su fallo no afecta al resultado.
func (b *Broker) Generate(ctx context.Context, principal string, scenario entity.Scenario) (string, error) {
	principal = entity.NormalizeEmail(principal)
	if principal == "" || !scenario.IsValid() {
		return "", domain.ErrInvalidInput
	}

	code, err := b.generate()
	if err != nil {
		return "", err
	}
	now := b.now()
	vc := &entity.VerificationCode{
		Principal: principal,
		Scenario:  scenario,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}

	tier, err := b.save(ctx, vc)
	if err != nil {
		return "", err
	}
	b.metrics.CodeIssued(string(scenario), tier)
	b.log.Info().Str("principal", principal).Str("scenario", string(scenario)).Str("tier", tier).Msg("código de verificación emitido")

	b.notify(ctx, principal, scenario, code)
	return code, nil
}

func (b *Broker) save(ctx context.Context, vc *entity.VerificationCode) (string, error) {
	perr := b.primary.Save(ctx, vc)
	if perr == nil {
		// Un código antiguo en el respaldo quedaría canjeable: se limpia.
		if b.fallback != nil {
			if err := b.fallback.Delete(ctx, vc.Principal, vc.Scenario); err != nil {
				b.log.Debug().Err(err).Str("scenario", string(vc.Scenario)).Msg("no se pudo limpiar el respaldo")
			}
		}
		return TierPrimary, nil
	}

	b.log.Warn().Err(perr).Str("scenario", string(vc.Scenario)).Msg("almacén primario no disponible, usando respaldo")
	b.metrics.StoreFailover("save")
	if b.fallback == nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, perr)
	}
	if err := b.fallback.Save(ctx, vc); err != nil {
		b.log.Error().Err(err).Str("scenario", string(vc.Scenario)).Msg("respaldo de códigos no disponible")
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, errors.Join(perr, err))
	}
	return TierFallback, nil
}

func (b *Broker) notify(ctx context.Context, principal string, scenario entity.Scenario, code string) {
	if b.notifier == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.notifyTimeout)
		defer cancel()
		if err := b.notifier.NotifyCode(nctx, principal, scenario, code); err != nil {
			b.log.Warn().Err(err).Str("principal", principal).Str("scenario", string(scenario)).Msg("no se pudo enviar el código")
		}
	}()
}

// Wait bloquea hasta que terminen los envíos en curso (apagado y tests).
func (b *Broker) Wait() {
	b.wg.Wait()
}

// Consume canjea el código. Solo una llamada concurrente con el código correcto tiene éxito.
// Devuelve domain.ErrInvalidCode, domain.ErrExpired o domain.ErrStorageUnavailable si ambos niveles fallan.
func (b *Broker) Consume(ctx context.Context, principal, code string, scenario entity.Scenario) error {
	principal = entity.NormalizeEmail(principal)
	if principal == "" || !scenario.IsValid() {
		return domain.ErrInvalidInput
	}
	if !entity.IsWellFormedCode(code) {
		return domain.ErrInvalidCode
	}
	now := b.now()

	perr := b.primary.Consume(ctx, principal, scenario, code, now)
	switch {
	case perr == nil:
		b.metrics.CodeConsumed(TierPrimary, "ok")
		return nil
	case isVerdict(perr):
		// El código pudo emitirse en el respaldo durante una caída del primario.
		if b.fallback == nil {
			b.metrics.CodeConsumed(TierPrimary, verdictLabel(perr))
			return perr
		}
		ferr := b.fallback.Consume(ctx, principal, scenario, code, now)
		switch {
		case ferr == nil:
			b.metrics.CodeConsumed(TierFallback, "ok")
			return nil
		case errors.Is(ferr, domain.ErrExpired):
			b.metrics.CodeConsumed(TierFallback, verdictLabel(ferr))
			return ferr
		case !isVerdict(ferr):
			b.log.Debug().Err(ferr).Msg("respaldo no disponible al verificar, se mantiene el veredicto del primario")
		}
		b.metrics.CodeConsumed(TierPrimary, verdictLabel(perr))
		return perr
	}

	b.log.Warn().Err(perr).Str("scenario", string(scenario)).Msg("almacén primario no disponible al verificar, usando respaldo")
	b.metrics.StoreFailover("consume")
	if b.fallback == nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, perr)
	}
	ferr := b.fallback.Consume(ctx, principal, scenario, code, now)
	switch {
	case ferr == nil:
		b.metrics.CodeConsumed(TierFallback, "ok")
		return nil
	case isVerdict(ferr):
		b.metrics.CodeConsumed(TierFallback, verdictLabel(ferr))
		return ferr
	default:
		b.log.Error().Err(ferr).Str("scenario", string(scenario)).Msg("respaldo de códigos no disponible")
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, errors.Join(perr, ferr))
	}
}

// Purge elimina los códigos de todos los escenarios del principal en ambos niveles.
func (b *Broker) Purge(ctx context.Context, principal string) error {
	principal = entity.NormalizeEmail(principal)
	var errs []error
	for _, sc := range entity.Scenarios {
		perr := b.primary.Delete(ctx, principal, sc)
		var ferr error
		if b.fallback != nil {
			ferr = b.fallback.Delete(ctx, principal, sc)
		}
		if perr != nil && (b.fallback == nil || ferr != nil) {
			errs = append(errs, errors.Join(perr, ferr))
			continue
		}
		if perr != nil || ferr != nil {
			b.log.Warn().Err(errors.Join(perr, ferr)).Str("scenario", string(sc)).Msg("limpieza parcial de códigos")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, errors.Join(errs...))
	}
	return nil
}

func isVerdict(err error) bool {
	return errors.Is(err, domain.ErrInvalidCode) || errors.Is(err, domain.ErrExpired)
}

func verdictLabel(err error) string {
	if errors.Is(err, domain.ErrExpired) {
		return "expired"
	}
	return "invalid"
}

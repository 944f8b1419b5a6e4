package verification

import (
	"context"
	"time"

	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

// CodeStore almacenamiento de códigos de un solo uso, con clave (principal, escenario).
//
// Consume debe ser atómico (comparar y borrar en una sola operación): devuelve
// domain.ErrInvalidCode si no hay código o no coincide y domain.ErrExpired si venció.
// Cualquier otro error se interpreta como almacén no disponible.
type CodeStore interface {
	Save(ctx context.Context, code *entity.VerificationCode) error
	Consume(ctx context.Context, principal string, scenario entity.Scenario, code string, now time.Time) error
	Delete(ctx context.Context, principal string, scenario entity.Scenario) error
}

// Notifier entrega el código al usuario (correo). Es best-effort.
type Notifier interface {
	NotifyCode(ctx context.Context, principal string, scenario entity.Scenario, code string) error
}

// Metrics contadores de emisión y consumo de códigos.
type Metrics interface {
	CodeIssued(scenario, tier string)
	CodeConsumed(tier, result string)
	StoreFailover(op string)
}

type nopMetrics struct{}

func (nopMetrics) CodeIssued(string, string)   {}
func (nopMetrics) CodeConsumed(string, string) {}
func (nopMetrics) StoreFailover(string)        {}

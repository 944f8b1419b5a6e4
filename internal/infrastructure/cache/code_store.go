package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Stoq-api/internal/application/verification"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

// KeyPrefix espacio de nombres de las claves de códigos.
const KeyPrefix = "verification_code"

// consumeScript borra la clave solo si el valor coincide (GET y DEL en una sola operación).
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ verification.CodeStore = (*CodeStore)(nil)

// CodeStore nivel primario de códigos sobre Redis. La expiración la hace Redis (TTL de la clave).
type CodeStore struct {
	client redis.UniversalClient
}

// NewCodeStore construye el almacén primario.
func NewCodeStore(client redis.UniversalClient) *CodeStore {
	return &CodeStore{client: client}
}

// Key arma la clave verification_code:<ESCENARIO>:<principal>.
func Key(principal string, scenario entity.Scenario) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, scenario, principal)
}

// Save escribe el código con TTL igual a la ventana de validez, reemplazando el anterior.
func (s *CodeStore) Save(ctx context.Context, code *entity.VerificationCode) error {
	ttl := code.TTL()
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl de código no positivo", domain.ErrInvalidInput)
	}
	if err := s.client.Set(ctx, Key(code.Principal, code.Scenario), code.Code, ttl).Err(); err != nil {
		return fmt.Errorf("redis set code: %w", err)
	}
	return nil
}

// Consume canjea el código con el script de comparar y borrar. Una clave vencida ya no existe.
func (s *CodeStore) Consume(ctx context.Context, principal string, scenario entity.Scenario, code string, _ time.Time) error {
	n, err := consumeScript.Run(ctx, s.client, []string{Key(principal, scenario)}, code).Int()
	if err != nil {
		return fmt.Errorf("redis consume code: %w", err)
	}
	if n == 0 {
		return domain.ErrInvalidCode
	}
	return nil
}

// Delete elimina el código de (principal, escenario).
func (s *CodeStore) Delete(ctx context.Context, principal string, scenario entity.Scenario) error {
	if err := s.client.Del(ctx, Key(principal, scenario)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis delete code: %w", err)
	}
	return nil
}

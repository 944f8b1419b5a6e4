package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Stoq-api/internal/domain"
)

// Scenario propósito de un código de verificación.
type Scenario string

const (
	ScenarioRegister      Scenario = "REGISTER"
	ScenarioResetPassword Scenario = "RESET_PASSWORD"
)

// Scenarios lista cerrada de escenarios conocidos.
var Scenarios = []Scenario{ScenarioRegister, ScenarioResetPassword}

// IsValid informa si el escenario es conocido.
func (s Scenario) IsValid() bool {
	switch s {
	case ScenarioRegister, ScenarioResetPassword:
		return true
	default:
		return false
	}
}

// ParseScenario valida el escenario recibido en el borde.
func ParseScenario(s string) (Scenario, error) {
	sc := Scenario(strings.ToUpper(strings.TrimSpace(s)))
	if !sc.IsValid() {
		return "", fmt.Errorf("%w: escenario desconocido %q", domain.ErrInvalidInput, s)
	}
	return sc, nil
}

// CodeLength cantidad de dígitos de un código.
const CodeLength = 6

// VerificationCode secreto de un solo uso. Como mucho uno vivo por (Principal, Scenario).
type VerificationCode struct {
	Principal string
	Scenario  Scenario
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TTL ventana de validez del código.
func (c *VerificationCode) TTL() time.Duration {
	return c.ExpiresAt.Sub(c.CreatedAt)
}

// IsExpired un código vence en el instante ExpiresAt.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsWellFormedCode comprueba que el código tenga seis dígitos ASCII.
func IsWellFormedCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

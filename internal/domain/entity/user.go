package entity

import (
	"strings"
	"time"
)

// User representa una cuenta registrada. El email es el principal de la sesión.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail forma canónica del principal (sin espacios, minúsculas).
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

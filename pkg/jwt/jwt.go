package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL vigencia de un token cuando la configuración no indica otra.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalidToken firma incorrecta, formato inválido o token vencido.
	ErrInvalidToken = errors.New("token inválido")
	// ErrTokenExpired se devuelve junto a ErrInvalidToken cuando el token ya venció.
	ErrTokenExpired = errors.New("token expirado")
)

// Claims del token de sesión: el principal viaja en Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Config parámetros del emisor de tokens.
type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Option ajusta un Manager.
type Option func(*Manager)

// WithClock reemplaza el reloj (tests de expiración).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager emite, valida y renueva tokens de sesión firmados con HS512.
// No guarda estado: cada token es autocontenido.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewManager construye el emisor. El secreto es obligatorio.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("jwt: secret vacío")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL devuelve la vigencia configurada.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue firma un token nuevo para el principal con iat=ahora y exp=ahora+TTL.
// Devuelve también el exp tal como quedó firmado (truncado al segundo).
func (m *Manager) Issue(principal string) (string, time.Time, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return "", time.Time{}, fmt.Errorf("jwt: principal vacío")
	}
	now := m.now()
	exp := jwt.NewNumericDate(now.Add(m.ttl))
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   principal,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: firmar token: %w", err)
	}
	return signed, exp.Time, nil
}

// Validate verifica firma y vigencia y devuelve el principal.
// Un token cuyo exp es igual al instante actual ya se considera vencido.
// Ante cualquier fallo no se devuelve información del token.
func (m *Manager) Validate(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Refresh emite un token nuevo para el mismo principal. El token original
// sigue siendo válido hasta su propio vencimiento (no hay revocación).
func (m *Manager) Refresh(tokenString string) (string, time.Time, error) {
	principal, err := m.Validate(tokenString)
	if err != nil {
		return "", time.Time{}, err
	}
	return m.Issue(principal)
}

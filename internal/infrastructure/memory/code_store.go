package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
)

type codeKey struct {
	principal string
	scenario  entity.Scenario
}

// CodeStore almacén de códigos en proceso. Consume compara y borra bajo el mismo lock.
type CodeStore struct {
	mu    sync.Mutex
	codes map[codeKey]entity.VerificationCode
}

// NewCodeStore crea un almacén vacío.
func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[codeKey]entity.VerificationCode)}
}

// Save reemplaza el código vivo de (principal, escenario).
func (s *CodeStore) Save(_ context.Context, code *entity.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[codeKey{code.Principal, code.Scenario}] = *code
	return nil
}

// Consume canjea el código si coincide y no venció. Un código que no coincide se conserva.
func (s *CodeStore) Consume(_ context.Context, principal string, scenario entity.Scenario, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey{principal, scenario}
	stored, ok := s.codes[key]
	if !ok {
		return domain.ErrInvalidCode
	}
	if stored.IsExpired(now) {
		delete(s.codes, key)
		return domain.ErrExpired
	}
	if stored.Code != code {
		return domain.ErrInvalidCode
	}
	delete(s.codes, key)
	return nil
}

// Delete elimina el código de (principal, escenario), si existe.
func (s *CodeStore) Delete(_ context.Context, principal string, scenario entity.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, codeKey{principal, scenario})
	return nil
}

// Len cantidad de códigos almacenados, vencidos incluidos.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

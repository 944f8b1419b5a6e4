package membership

import (
	"context"

	"github.com/jhoicas/Stoq-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD.
// RunLocked además bloquea la fila de la unidad hasta el commit, serializando
// las mutaciones de membresías de esa unidad. Devuelve domain.ErrNotFound si la unidad no existe.
type TxRunner interface {
	Run(ctx context.Context, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error
	RunLocked(ctx context.Context, unitID string, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error
}

// PrincipalDirectory responde si un principal está registrado.
type PrincipalDirectory interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

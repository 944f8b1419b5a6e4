package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Stoq-api/internal/application/dto"
	"github.com/jhoicas/Stoq-api/internal/application/membership"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
	"github.com/jhoicas/Stoq-api/pkg/logger"
)

// UnitUseCase alta y baja de unidades organizativas.
type UnitUseCase struct {
	tx  membership.TxRunner
	log *logger.Logger
	now func() time.Time
}

// NewUnitUseCase construye el caso de uso con el runner transaccional.
func NewUnitUseCase(tx membership.TxRunner, log *logger.Logger) *UnitUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UnitUseCase{
		tx:  tx,
		log: log.WithComponent("units"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create crea la unidad y la membresía (owner, ADMIN) en la misma transacción.
func (uc *UnitUseCase) Create(ctx context.Context, in dto.CreateUnitRequest, owner string) (*dto.UnitResponse, error) {
	owner = entity.NormalizeEmail(owner)
	if owner == "" {
		return nil, domain.ErrUnauthorized
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	kind, err := entity.ParseUnitKind(in.Kind)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	unit := &entity.Unit{
		ID:         uuid.New().String(),
		Name:       name,
		Kind:       kind,
		OwnerEmail: owner,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = uc.tx.Run(ctx, func(units repository.UnitRepository, members repository.MembershipRepository) error {
		if err := units.Create(ctx, unit); err != nil {
			return err
		}
		return members.Create(ctx, &entity.Membership{
			ID:        uuid.New().String(),
			UnitID:    unit.ID,
			Principal: owner,
			Role:      entity.RoleAdmin,
			JoinedAt:  now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("unit_id", unit.ID).Str("owner", owner).Str("kind", string(kind)).Msg("unidad creada")
	resp := dto.ToUnitResponse(unit)
	return &resp, nil
}

// Delete elimina la unidad y todas sus membresías. Requiere operador ADMIN.
func (uc *UnitUseCase) Delete(ctx context.Context, unitID, operator string) error {
	err := uc.tx.RunLocked(ctx, unitID, func(units repository.UnitRepository, members repository.MembershipRepository) error {
		if err := membership.EnsureAdmin(ctx, members, unitID, operator); err != nil {
			return err
		}
		if err := members.DeleteByUnit(ctx, unitID); err != nil {
			return err
		}
		return units.Delete(ctx, unitID)
	})
	if err != nil {
		return err
	}
	uc.log.Info().Str("unit_id", unitID).Str("operator", operator).Msg("unidad eliminada")
	return nil
}

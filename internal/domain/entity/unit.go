package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Stoq-api/internal/domain"
)

// UnitKind tipo de unidad organizativa.
type UnitKind string

const (
	UnitKindCluster UnitKind = "CLUSTER"
	UnitKindTeam    UnitKind = "TEAM"
)

// ParseUnitKind valida el tipo recibido en el borde. Vacío equivale a CLUSTER.
func ParseUnitKind(s string) (UnitKind, error) {
	switch k := UnitKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case "":
		return UnitKindCluster, nil
	case UnitKindCluster, UnitKindTeam:
		return k, nil
	default:
		return "", fmt.Errorf("%w: tipo de unidad desconocido %q", domain.ErrInvalidInput, s)
	}
}

// Unit unidad organizativa (cluster o equipo) dueña de membresías.
type Unit struct {
	ID         string
	Name       string
	Kind       UnitKind
	OwnerEmail string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Package profile defines the typed baseline descriptors monitored entities
// are evaluated against, their identity, and their lifecycle.
package profile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"scouter/pkg/apperror"
)

// DriftType discriminates the family a Profile belongs to.
type DriftType string

const (
	DriftSPC    DriftType = "spc"
	DriftPSI    DriftType = "psi"
	DriftCustom DriftType = "custom"
	DriftLLM    DriftType = "llm"
)

// Valid reports whether d is one of the recognized drift type discriminators.
func (d DriftType) Valid() bool {
	switch d {
	case DriftSPC, DriftPSI, DriftCustom, DriftLLM:
		return true
	default:
		return false
	}
}

// Entity identifies a monitored model, service, or pipeline version. The
// triple (Space, Name, Version) plus DriftType is unique; EntityID is a
// stable surrogate assigned on first registration and never reused.
type Entity struct {
	EntityID  string    `json:"entity_id"`
	Space     string    `json:"space"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	DriftType DriftType `json:"drift_type"`
}

// Key returns the natural identity string used for entity lookups and
// caching. Two entities with the same Key refer to the same row.
func (e Entity) Key() string {
	return strings.Join([]string{e.Space, e.Name, e.Version, string(e.DriftType)}, "/")
}

// NewEntity validates the identity triple and drift type and assigns a new
// surrogate id. Callers that already know the surrogate id (re-hydrating
// from storage) should construct Entity directly.
func NewEntity(space, name, version string, driftType DriftType) (Entity, error) {
	if space == "" || name == "" || version == "" {
		return Entity{}, apperror.ErrMissingEntity
	}
	if !driftType.Valid() {
		return Entity{}, apperror.NewWithField(apperror.CodeInvalidDriftType,
			fmt.Sprintf("unknown drift type %q", driftType), "drift_type")
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Entity{
		EntityID:  id.String(),
		Space:     space,
		Name:      name,
		Version:   version,
		DriftType: driftType,
	}, nil
}

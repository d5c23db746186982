package evaluator

import (
	"context"
	"time"

	"scouter/profile"
)

// Alert is one fired drift verdict, ready to be persisted and handed to a
// Dispatcher. Kind carries the SPC alert kind for SPC profiles, or
// "above"/"below"/"outside" for Custom; PSI alerts always carry
// "psi_threshold_exceeded".
type Alert struct {
	EntityID  string
	DriftType profile.DriftType
	Feature   string
	Kind      string
	Value     float64
	CreatedAt time.Time
}

// Dispatcher notifies an external channel about a fired Alert. Dispatch
// failures are logged by the caller but never roll back the metric write
// that already happened.
type Dispatcher interface {
	Dispatch(ctx context.Context, a Alert) error
}

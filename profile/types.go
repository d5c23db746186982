package profile

import "time"

// Status is the evaluation lifecycle state of a Profile.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Profile is the polymorphic baseline descriptor a client registers and the
// scheduler (package evaluator) periodically evaluates. Exactly one of the
// variant fields is populated, selected by DriftType.
type Profile struct {
	UID            string    `json:"uid"`
	EntityID       string    `json:"entity_id"`
	DriftType      DriftType `json:"drift_type"`
	ScouterVersion string    `json:"scouter_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Active         bool      `json:"active"`

	Schedule     string     `json:"schedule"`
	NextRun      time.Time  `json:"next_run"`
	PreviousRun  time.Time  `json:"previous_run"`
	Status       Status     `json:"status"`
	ProcessingAt *time.Time `json:"processing_started_at,omitempty"`

	SPC    *SPCProfile    `json:"spc,omitempty"`
	PSI    *PSIProfile    `json:"psi,omitempty"`
	Custom *CustomProfile `json:"custom,omitempty"`
	LLM    *LLMProfile    `json:"llm,omitempty"`
}

// ThresholdMode selects how a PSI feature's alert threshold is derived.
type ThresholdMode string

const (
	ThresholdNormal    ThresholdMode = "normal"
	ThresholdChiSquare ThresholdMode = "chi_square"
	ThresholdFixed     ThresholdMode = "fixed"
)

// ThresholdSelector picks the PSI critical-value strategy for a feature set.
// ChiSquare is the default per the kernel's documented behavior.
type ThresholdSelector struct {
	Mode  ThresholdMode `json:"mode"`
	Alpha float64       `json:"alpha,omitempty"`
	Fixed float64       `json:"fixed,omitempty"`
}

// AlertCondition is a Custom-profile comparison against a baseline value.
type AlertCondition string

const (
	ConditionAbove   AlertCondition = "above"
	ConditionBelow   AlertCondition = "below"
	ConditionOutside AlertCondition = "outside"
)

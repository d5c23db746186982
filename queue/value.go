// Package queue implements the client-side accumulation layer between a
// registered profile and its transport producer: per-feature buffers that
// fill as samples are inserted and flush into wire.Record batches either on
// a size threshold or on a timer.
package queue

import "scouter/pkg/apperror"

// Value is a single feature observation. Exactly one of the numeric or
// string representations is populated, covering the int/float/string/
// categorical value types a feature sample can carry.
type Value struct {
	Number     float64
	Text       string
	IsCategory bool
}

// NumberValue wraps a numeric observation (int and float both flow through
// float64, mirroring the drift kernels).
func NumberValue(v float64) Value { return Value{Number: v} }

// CategoryValue wraps a string/categorical observation.
func CategoryValue(v string) Value { return Value{Text: v, IsCategory: true} }

// Features is a single sample keyed by feature name, as inserted against an
// SPC or PSI profile.
type Features map[string]Value

// Metrics is a single sample keyed by metric name, as inserted against a
// Custom profile.
type Metrics map[string]float64

// LlmRecord is one candidate LLM interaction offered to the queue; whether
// it is materialized into a wire record is decided by the sample-rate
// counter.
type LlmRecord struct {
	Context map[string]any
	Prompt  any
}

func requireNumber(v Value, feature string) (float64, error) {
	if v.IsCategory {
		return 0, apperror.NewWithField(apperror.CodeInvalidFeatureConfig,
			"feature requires a numeric value", feature)
	}
	return v.Number, nil
}

package profile

import "scouter/pkg/apperror"

// CustomMetric is a single named metric with a baseline value and the
// comparison rule that decides whether a new observation is alarming.
type CustomMetric struct {
	Name            string         `json:"name"`
	Baseline        float64        `json:"baseline"`
	AlertThreshold  AlertCondition `json:"alert_threshold"`
	ThresholdValue  *float64       `json:"threshold_value,omitempty"`
}

// CustomProfile is a flat list of independently-thresholded metrics, the
// simplest of the four drift families.
type CustomProfile struct {
	Metrics []CustomMetric `json:"metrics"`
}

// NewCustomProfile validates that every metric has a name and a recognized
// alert condition.
func NewCustomProfile(metrics []CustomMetric) (*CustomProfile, error) {
	if len(metrics) == 0 {
		return nil, apperror.New(apperror.CodeInvalidFeatureConfig, "custom profile requires at least one metric")
	}
	seen := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		if m.Name == "" {
			return nil, apperror.New(apperror.CodeInvalidFeatureConfig, "custom metric name is required")
		}
		if seen[m.Name] {
			return nil, apperror.NewWithField(apperror.CodeInvalidFeatureConfig, "duplicate custom metric name", m.Name)
		}
		seen[m.Name] = true
		switch m.AlertThreshold {
		case ConditionAbove, ConditionBelow, ConditionOutside:
		default:
			return nil, apperror.NewWithField(apperror.CodeInvalidFeatureConfig, "unknown alert condition", m.Name)
		}
	}
	return &CustomProfile{Metrics: metrics}, nil
}

package profile

import (
	"math"
	"time"

	"scouter/pkg/apperror"
)

// SPCFeature holds the control-chart baseline for a single feature: the
// center line, standard deviation, and the three two-sided control limits
// derived from it. Limits satisfy ThreeLCL < TwoLCL < OneLCL < Center <
// OneUCL < TwoUCL < ThreeUCL.
type SPCFeature struct {
	Center      float64   `json:"center"`
	Sigma       float64   `json:"sigma"`
	OneLCL      float64   `json:"one_lcl"`
	OneUCL      float64   `json:"one_ucl"`
	TwoLCL      float64   `json:"two_lcl"`
	TwoUCL      float64   `json:"two_ucl"`
	ThreeLCL    float64   `json:"three_lcl"`
	ThreeUCL    float64   `json:"three_ucl"`
	LastUpdated time.Time `json:"last_updated"`
	SampleSize  int       `json:"sample_size"`
}

// SPCProfile is the Statistical Process Control baseline: a per-feature
// control chart plus the alert rule governing which zone patterns fire.
type SPCProfile struct {
	Features  map[string]SPCFeature `json:"features"`
	AlertRule string                `json:"alert_rule"`
}

// NewSPCFeature derives the six control limits from a baseline sample for
// one feature. A degenerate sample (sigma == 0, e.g. all-identical values)
// is rejected: a control chart with zero width cannot ever signal drift.
func NewSPCFeature(samples []float64) (SPCFeature, error) {
	if len(samples) == 0 {
		return SPCFeature{}, apperror.New(apperror.CodeInsufficientSamples, "spc baseline requires at least one sample")
	}
	for _, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SPCFeature{}, apperror.New(apperror.CodeInvalidFeatureConfig, "spc baseline contains NaN or infinite value")
		}
	}

	mean := 0.0
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, v := range samples {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	sigma := math.Sqrt(variance)

	if sigma == 0 {
		return SPCFeature{}, apperror.New(apperror.CodeInvalidFeatureConfig, "spc baseline is degenerate: sigma is zero")
	}

	return SPCFeature{
		Center:      mean,
		Sigma:       sigma,
		OneLCL:      mean - sigma,
		OneUCL:      mean + sigma,
		TwoLCL:      mean - 2*sigma,
		TwoUCL:      mean + 2*sigma,
		ThreeLCL:    mean - 3*sigma,
		ThreeUCL:    mean + 3*sigma,
		SampleSize:  len(samples),
		LastUpdated: time.Now(),
	}, nil
}

// DefaultSPCAlertRule is the default 8-digit encoding: consecutive-in-zone
// run lengths of 8, 16, 4 and 8 for zones 1 through 4, a trend length of 2,
// an alternating length of 4, and the two reserved digits set to 1. See
// drift.ParseSPCRule for the digit-position mapping.
const DefaultSPCAlertRule = "8 16 4 8 2 4 1 1"

// NewSPCProfile builds a baseline for every named feature's sample window,
// rejecting the whole profile if any single feature is degenerate or
// non-numeric.
func NewSPCProfile(samples map[string][]float64, alertRule string) (*SPCProfile, error) {
	if len(samples) == 0 {
		return nil, apperror.New(apperror.CodeInvalidFeatureConfig, "spc profile requires at least one feature")
	}
	if alertRule == "" {
		alertRule = DefaultSPCAlertRule
	}
	features := make(map[string]SPCFeature, len(samples))
	for name, values := range samples {
		feature, err := NewSPCFeature(values)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "feature "+name+" rejected").WithField(name)
		}
		features[name] = feature
	}
	return &SPCProfile{Features: features, AlertRule: alertRule}, nil
}

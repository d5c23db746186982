package profile

import (
	"sort"

	"scouter/pkg/apperror"
)

// BinType distinguishes numeric (edge-based) from categorical (label-based)
// PSI features.
type BinType string

const (
	BinNumeric  BinType = "numeric"
	BinCategory BinType = "category"
)

// BinStrategy names the edge-construction rule used for a numeric feature's
// bins. Quantile reproduces Hyndman & Fan's Type 7 estimator; Manual takes
// caller-supplied bins; the rest are equal-width rules that differ only in
// how many bins they pick.
type BinStrategy string

const (
	StrategyQuantile          BinStrategy = "quantile"
	StrategyManual            BinStrategy = "manual"
	StrategySquareRoot        BinStrategy = "square_root"
	StrategySturges           BinStrategy = "sturges"
	StrategyRice              BinStrategy = "rice"
	StrategyDoane             BinStrategy = "doane"
	StrategyScott             BinStrategy = "scott"
	StrategyTerrellScott      BinStrategy = "terrell_scott"
	StrategyFreedmanDiaconis  BinStrategy = "freedman_diaconis"
)

func (s BinStrategy) valid() bool {
	switch s {
	case StrategyQuantile, StrategyManual, StrategySquareRoot, StrategySturges, StrategyRice,
		StrategyDoane, StrategyScott, StrategyTerrellScott, StrategyFreedmanDiaconis:
		return true
	default:
		return false
	}
}

// Bin is one discretization interval (numeric, Upper nil means +inf) or
// category bucket (Category non-empty), with its baseline proportion.
type Bin struct {
	ID         int      `json:"id"`
	Lower      *float64 `json:"lower,omitempty"`
	Upper      *float64 `json:"upper,omitempty"`
	Category   string   `json:"category,omitempty"`
	Proportion float64  `json:"proportion"`
}

// PSIFeature is one feature's baseline binning, ready to be scored against
// a new window by drift.PSI.
type PSIFeature struct {
	BinType  BinType     `json:"bin_type"`
	Strategy BinStrategy `json:"strategy,omitempty"`
	Bins     []Bin       `json:"bins"`
}

// PSIProfile is the Population Stability Index baseline: binned baseline
// distributions per feature plus the threshold strategy used to decide
// whether an observed PSI value is alarming.
type PSIProfile struct {
	Features  map[string]PSIFeature `json:"features"`
	Threshold ThresholdSelector     `json:"threshold"`
}

// validateProportions enforces invariant 3.2.3: bin proportions sum to
// 1 within 1e-6 and IDs are contiguous starting at 0.
func validateProportions(bins []Bin) error {
	sorted := make([]Bin, len(bins))
	copy(sorted, bins)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	sum := 0.0
	for i, b := range sorted {
		if b.ID != i {
			return apperror.New(apperror.CodeInvalidFeatureConfig, "psi bin ids must be contiguous starting at 0")
		}
		sum += b.Proportion
	}
	if diff := sum - 1.0; diff > 1e-6 || diff < -1e-6 {
		return apperror.New(apperror.CodeInvalidFeatureConfig, "psi bin proportions must sum to 1")
	}
	return nil
}

// NewPSIFeatureFromCounts builds a baseline PSIFeature from observed
// per-bin counts, computing Proportion = count/total for each bin.
func NewPSIFeatureFromCounts(binType BinType, strategy BinStrategy, edges []Bin, counts []int) (PSIFeature, error) {
	if len(edges) != len(counts) {
		return PSIFeature{}, apperror.New(apperror.CodeInvalidFeatureConfig, "bin edges and counts length mismatch")
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return PSIFeature{}, apperror.New(apperror.CodeInsufficientSamples, "psi baseline has zero observations")
	}
	bins := make([]Bin, len(edges))
	for i, e := range edges {
		e.Proportion = float64(counts[i]) / float64(total)
		bins[i] = e
	}
	if err := validateProportions(bins); err != nil {
		return PSIFeature{}, err
	}
	return PSIFeature{BinType: binType, Strategy: strategy, Bins: bins}, nil
}

// NewPSIProfile assembles a full PSI baseline. Each feature carries its own
// BinType; an empty threshold mode defaults to ChiSquare.
func NewPSIProfile(features map[string]PSIFeature, threshold ThresholdSelector) (*PSIProfile, error) {
	if len(features) == 0 {
		return nil, apperror.New(apperror.CodeInvalidFeatureConfig, "psi profile requires at least one feature")
	}
	switch threshold.Mode {
	case ThresholdNormal, ThresholdChiSquare, ThresholdFixed:
	case "":
		threshold.Mode = ThresholdChiSquare
	default:
		return nil, apperror.NewWithField(apperror.CodeInvalidThresholdMode, "unknown psi threshold mode", "threshold.mode")
	}
	for name, f := range features {
		if f.BinType == BinNumeric && f.Strategy != "" && !f.Strategy.valid() {
			return nil, apperror.NewWithField(apperror.CodeInvalidBinStrategy, "unknown binning strategy for feature "+name, name)
		}
		if err := validateProportions(f.Bins); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "feature "+name+" rejected").WithField(name)
		}
	}
	return &PSIProfile{Features: features, Threshold: threshold}, nil
}

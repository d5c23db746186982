package queue

import (
	"sort"

	"scouter/pkg/apperror"
	"scouter/profile"
)

// locateBin finds which baseline bin an observed value falls into, so the
// queue can accumulate (bin_id, count) pairs locally instead of shipping
// raw values for PSI features. Numeric bins are treated as half-open
// [Lower, Upper) intervals except the last, which is closed on the right;
// a nil Lower/Upper bound stands for -Inf/+Inf.
func locateBin(feature profile.PSIFeature, v Value) (int, error) {
	switch feature.BinType {
	case profile.BinCategory:
		for _, b := range feature.Bins {
			if b.Category == v.Text {
				return b.ID, nil
			}
		}
		return 0, apperror.New(apperror.CodeInvalidFeatureConfig, "observed category has no matching baseline bin")
	case profile.BinNumeric:
		if v.IsCategory {
			return 0, apperror.New(apperror.CodeInvalidFeatureConfig, "numeric feature received a categorical value")
		}
		bins := make([]profile.Bin, len(feature.Bins))
		copy(bins, feature.Bins)
		sort.Slice(bins, func(i, j int) bool { return bins[i].ID < bins[j].ID })
		for i, b := range bins {
			lowOK := b.Lower == nil || v.Number >= *b.Lower
			var highOK bool
			if b.Upper == nil {
				highOK = true
			} else if i == len(bins)-1 {
				highOK = v.Number <= *b.Upper
			} else {
				highOK = v.Number < *b.Upper
			}
			if lowOK && highOK {
				return b.ID, nil
			}
		}
		return 0, apperror.New(apperror.CodeInvalidFeatureConfig, "observed value falls outside all baseline bins")
	default:
		return 0, apperror.New(apperror.CodeInvalidFeatureConfig, "unknown psi bin type")
	}
}

package drift

import (
	"math"
	"sort"

	"scouter/pkg/apperror"
	"scouter/profile"
)

// psiEpsilon smooths zero proportions on either side of the PSI formula so
// a never-observed baseline or current bin does not produce ln(0).
// Resolves the open question of what to do with a zero-proportion bin:
// ε = 10⁻⁴, applied symmetrically to baseline and observed proportions.
const psiEpsilon = 1e-4

// PSI scores a feature's current window (already binned against the
// baseline's edges, as observedCounts keyed by bin ID) against its
// baseline distribution.
func PSI(baseline profile.PSIFeature, observedCounts map[int]int, selector profile.ThresholdSelector) (PSIResult, error) {
	if len(baseline.Bins) == 0 {
		return PSIResult{}, apperror.ErrBaselineMissing
	}

	total := 0
	for _, c := range observedCounts {
		total += c
	}
	if total == 0 {
		return PSIResult{}, apperror.New(apperror.CodeInsufficientSamples, "psi window has zero observations")
	}
	n := float64(total)
	b := len(baseline.Bins)

	if b == 1 {
		// A single bin cannot diverge from itself; no divergence is possible.
		return PSIResult{Value: 0, Threshold: 0, Fired: false, Bins: []BinObservation{{BinID: baseline.Bins[0].ID, Baseline: 1, Observed: 1}}}, nil
	}

	value := 0.0
	obs := make([]BinObservation, 0, b)
	for _, bin := range baseline.Bins {
		p := smooth(bin.Proportion)
		q := smooth(float64(observedCounts[bin.ID]) / n)
		contribution := (q - p) * math.Log(q/p)
		value += contribution
		obs = append(obs, BinObservation{BinID: bin.ID, Baseline: bin.Proportion, Observed: float64(observedCounts[bin.ID]) / n, Contribution: contribution})
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].BinID < obs[j].BinID })

	threshold, err := criticalValue(selector, b, n)
	if err != nil {
		return PSIResult{}, err
	}

	return PSIResult{
		Value:     value,
		Threshold: threshold,
		Fired:     value >= threshold,
		Bins:      obs,
	}, nil
}

func smooth(p float64) float64 {
	if p <= 0 {
		return psiEpsilon
	}
	if p >= 1 {
		return 1 - psiEpsilon
	}
	return p
}

// criticalValue computes the PSI alerting threshold for the selected
// strategy. B is the bin count, N the current window's sample count.
func criticalValue(selector profile.ThresholdSelector, b int, n float64) (float64, error) {
	if b < 2 {
		return 0, apperror.New(apperror.CodeInvalidFeatureConfig, "psi requires at least 2 bins")
	}
	df := float64(b - 1)

	switch selector.Mode {
	case profile.ThresholdFixed:
		return selector.Fixed, nil

	case profile.ThresholdNormal:
		alpha := selector.Alpha
		if alpha <= 0 {
			alpha = 0.05
		}
		sigma := math.Sqrt(2 * df / n)
		return normalQuantile(1-alpha) * sigma, nil

	case profile.ThresholdChiSquare, "":
		alpha := selector.Alpha
		if alpha <= 0 {
			alpha = 0.05
		}
		return chiSquareQuantile(1-alpha, df) / (2 * n), nil

	default:
		return 0, apperror.NewWithField(apperror.CodeInvalidThresholdMode, "unknown psi threshold mode", "threshold.mode")
	}
}

// normalQuantile returns the standard normal inverse CDF at p.
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// chiSquareQuantile approximates the inverse CDF of a chi-square
// distribution with k degrees of freedom at probability p using the
// Wilson-Hilferty cube-root approximation, accurate to within ~0.1% for
// k >= 2 which covers every realistic PSI bin count.
func chiSquareQuantile(p, k float64) float64 {
	z := normalQuantile(p)
	term := 1 - 2/(9*k) + z*math.Sqrt(2/(9*k))
	return k * term * term * term
}

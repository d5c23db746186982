package drift

import (
	"math"
	"sort"

	"scouter/pkg/apperror"
	"scouter/profile"
)

// BinCount returns the number of bins a named equal-width strategy would
// choose for n samples. Quantile and Manual strategies are not covered
// here: Quantile computes edges directly in QuantileEdges, and Manual bin
// counts come from the caller.
func BinCount(strategy profile.BinStrategy, n int, samples []float64) (int, error) {
	if n <= 0 {
		return 0, apperror.New(apperror.CodeInsufficientSamples, "cannot bin zero samples")
	}
	nf := float64(n)
	switch strategy {
	case profile.StrategySquareRoot:
		return int(math.Ceil(math.Sqrt(nf))), nil
	case profile.StrategySturges:
		return int(math.Ceil(math.Log2(nf) + 1)), nil
	case profile.StrategyRice:
		return int(math.Ceil(2 * math.Cbrt(nf))), nil
	case profile.StrategyTerrellScott:
		return int(math.Ceil(math.Cbrt(2 * nf))), nil
	case profile.StrategyDoane:
		return doaneBinCount(samples), nil
	case profile.StrategyScott:
		return scottBinCount(samples), nil
	case profile.StrategyFreedmanDiaconis:
		return freedmanDiaconisBinCount(samples), nil
	default:
		return 0, apperror.NewWithField(apperror.CodeInvalidBinStrategy, "strategy does not produce an automatic bin count", string(strategy))
	}
}

func doaneBinCount(samples []float64) int {
	n := float64(len(samples))
	if n < 3 {
		return 1
	}
	mean, sigma := meanStdDev(samples)
	if sigma == 0 {
		return 1
	}
	skew := 0.0
	for _, v := range samples {
		skew += math.Pow((v-mean)/sigma, 3)
	}
	skew /= n
	sigmaG1 := math.Sqrt(6 * (n - 2) / ((n + 1) * (n + 3)))
	bins := 1 + math.Log2(n) + math.Log2(1+math.Abs(skew)/sigmaG1)
	return int(math.Ceil(bins))
}

func scottBinCount(samples []float64) int {
	n := float64(len(samples))
	_, sigma := meanStdDev(samples)
	if sigma == 0 || n == 0 {
		return 1
	}
	width := 3.49 * sigma / math.Cbrt(n)
	return widthToCount(samples, width)
}

func freedmanDiaconisBinCount(samples []float64) int {
	n := float64(len(samples))
	if n == 0 {
		return 1
	}
	iqr := interquartileRange(samples)
	if iqr == 0 {
		return 1
	}
	width := 2 * iqr / math.Cbrt(n)
	return widthToCount(samples, width)
}

func widthToCount(samples []float64, width float64) int {
	if width <= 0 {
		return 1
	}
	lo, hi := minMax(samples)
	count := int(math.Ceil((hi - lo) / width))
	if count < 1 {
		count = 1
	}
	return count
}

func meanStdDev(samples []float64) (mean, sigma float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}
	for _, v := range samples {
		mean += v
	}
	mean /= n
	for _, v := range samples {
		d := v - mean
		sigma += d * d
	}
	sigma = math.Sqrt(sigma / n)
	return mean, sigma
}

func minMax(samples []float64) (lo, hi float64) {
	lo, hi = samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func interquartileRange(samples []float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	q1 := quantileType7(sorted, 0.25)
	q3 := quantileType7(sorted, 0.75)
	return q3 - q1
}

// quantileType7 implements the Hyndman & Fan Type 7 estimator (R's
// default), used for PSI quantile binning.
func quantileType7(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := (float64(n) - 1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if hi >= n {
		hi = n - 1
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// QuantileEdges partitions samples into k equal-probability bins using the
// Type 7 quantile estimator, returning k-1 interior edges (the outer
// boundaries are unbounded, matching Bin.Lower/Upper == nil at the ends).
func QuantileEdges(samples []float64, k int) ([]float64, error) {
	if k < 1 {
		return nil, apperror.New(apperror.CodeInvalidBinStrategy, "bin count must be at least 1")
	}
	if len(samples) == 0 {
		return nil, apperror.New(apperror.CodeInsufficientSamples, "cannot compute quantile edges from zero samples")
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	edges := make([]float64, 0, k-1)
	for i := 1; i < k; i++ {
		edges = append(edges, quantileType7(sorted, float64(i)/float64(k)))
	}
	return edges, nil
}

// EqualWidthEdges partitions the observed range into k equal-width bins,
// returning k-1 interior edges.
func EqualWidthEdges(samples []float64, k int) ([]float64, error) {
	if k < 1 {
		return nil, apperror.New(apperror.CodeInvalidBinStrategy, "bin count must be at least 1")
	}
	if len(samples) == 0 {
		return nil, apperror.New(apperror.CodeInsufficientSamples, "cannot compute bin edges from zero samples")
	}
	lo, hi := minMax(samples)
	width := (hi - lo) / float64(k)
	if width <= 0 {
		return nil, nil
	}
	edges := make([]float64, 0, k-1)
	for i := 1; i < k; i++ {
		edges = append(edges, lo+width*float64(i))
	}
	return edges, nil
}

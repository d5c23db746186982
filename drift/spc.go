package drift

import (
	"scouter/pkg/apperror"
	"scouter/profile"
)

// zoneOf classifies a z-score into a Shewhart zone: 1 within 1 sigma, 2
// within 2, 3 within 3, 4 beyond.
func zoneOf(z float64) int {
	abs := z
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs <= 1:
		return 1
	case abs <= 2:
		return 2
	case abs <= 3:
		return 3
	default:
		return 4
	}
}

// SPC evaluates one feature's new sample window against its control-chart
// baseline, returning the fired alert kind (if any) per the tie-break
// OutOfBounds > Trend > Consecutive > Alternating.
func SPC(baseline profile.SPCFeature, window []float64, rule string) (SPCResult, error) {
	if baseline.Sigma == 0 {
		return SPCResult{}, apperror.ErrBaselineMissing
	}
	if len(window) == 0 {
		return SPCResult{Feature: "", Kind: KindAllGood, Zone: 0}, nil
	}

	cfg, err := ParseSPCRule(rule)
	if err != nil {
		return SPCResult{}, err
	}

	zscores := make([]float64, len(window))
	zones := make([]int, len(window))
	maxZone := 0
	mean := 0.0
	for i, v := range window {
		z := (v - baseline.Center) / baseline.Sigma
		zscores[i] = z
		zones[i] = zoneOf(z)
		if zones[i] > maxZone {
			maxZone = zones[i]
		}
		mean += v
	}
	mean /= float64(len(window))

	candidates := map[AlertKind]bool{}

	for i := range zscores {
		if zoneOf(zscores[i]) == 4 {
			candidates[KindOutOfBounds] = true
			break
		}
	}

	if hasMonotonicRun(zscores, cfg.TrendLength) {
		candidates[KindTrend] = true
	}

	for zone := 1; zone <= 4; zone++ {
		if hasConsecutiveZoneRun(zscores, zone, cfg.ZoneConsecutive[zone-1]) {
			candidates[KindConsecutive] = true
			break
		}
	}

	if hasAlternatingRun(zscores, cfg.AlternatingLength) {
		candidates[KindAlternating] = true
	}

	kind := KindAllGood
	best := kindPriority[KindAllGood]
	for k := range candidates {
		if p := kindPriority[k]; p < best {
			best = p
			kind = k
		}
	}

	return SPCResult{Kind: kind, Zone: maxZone, ZScores: zscores, Mean: mean}, nil
}

// hasMonotonicRun reports whether any run of length >= n is strictly
// increasing or strictly decreasing.
func hasMonotonicRun(z []float64, n int) bool {
	if n <= 1 || len(z) < n {
		return false
	}
	incRun, decRun := 1, 1
	for i := 1; i < len(z); i++ {
		if z[i] > z[i-1] {
			incRun++
			decRun = 1
		} else if z[i] < z[i-1] {
			decRun++
			incRun = 1
		} else {
			incRun, decRun = 1, 1
		}
		if incRun >= n || decRun >= n {
			return true
		}
	}
	return false
}

// hasConsecutiveZoneRun reports whether any run of length >= n consists of
// samples on the same side of the centerline, all at or beyond the given
// zone.
func hasConsecutiveZoneRun(z []float64, zone, n int) bool {
	if n <= 0 || len(z) < n {
		return false
	}
	posRun, negRun := 0, 0
	for _, v := range z {
		if zoneOf(v) >= zone && v >= 0 {
			posRun++
		} else {
			posRun = 0
		}
		if zoneOf(v) >= zone && v < 0 {
			negRun++
		} else {
			negRun = 0
		}
		if posRun >= n || negRun >= n {
			return true
		}
	}
	return false
}

// hasAlternatingRun reports whether any run of length >= n alternates sign
// from one sample to the next.
func hasAlternatingRun(z []float64, n int) bool {
	if n <= 1 || len(z) < n {
		return false
	}
	run := 1
	for i := 1; i < len(z); i++ {
		sameSign := (z[i] >= 0) == (z[i-1] >= 0)
		if !sameSign {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

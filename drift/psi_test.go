package drift

import (
	"math"
	"testing"

	"scouter/profile"
)

func uniformBaseline(n int) profile.PSIFeature {
	bins := make([]profile.Bin, n)
	for i := range bins {
		bins[i] = profile.Bin{ID: i, Proportion: 1.0 / float64(n)}
	}
	return profile.PSIFeature{BinType: profile.BinNumeric, Bins: bins}
}

func TestPSI_ChiSquareScenario(t *testing.T) {
	baseline := uniformBaseline(10)
	counts := map[int]int{}
	for i := 0; i < 9; i++ {
		counts[i] = 50
	}
	counts[9] = 550

	result, err := PSI(baseline, counts, profile.ThresholdSelector{Mode: profile.ThresholdChiSquare, Alpha: 0.05})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(result.Value-1.61) > 0.01 {
		t.Errorf("expected PSI ~1.61, got %v", result.Value)
	}
	if math.Abs(result.Threshold-0.00846) > 1e-3 {
		t.Errorf("expected threshold ~0.00846, got %v", result.Threshold)
	}
	if !result.Fired {
		t.Error("expected alert to fire")
	}
}

func TestPSI_SingleBinIsZero(t *testing.T) {
	baseline := profile.PSIFeature{BinType: profile.BinNumeric, Bins: []profile.Bin{{ID: 0, Proportion: 1}}}
	result, err := PSI(baseline, map[int]int{0: 100}, profile.ThresholdSelector{Mode: profile.ThresholdFixed, Fixed: 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Value != 0 || result.Fired {
		t.Errorf("expected single-bin PSI to be zero and non-firing, got %+v", result)
	}
}

func TestPSI_FixedThreshold(t *testing.T) {
	baseline := uniformBaseline(4)
	counts := map[int]int{0: 25, 1: 25, 2: 25, 3: 25}
	result, err := PSI(baseline, counts, profile.ThresholdSelector{Mode: profile.ThresholdFixed, Fixed: 0.01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Value > 0.001 {
		t.Errorf("expected near-zero PSI for identical distributions, got %v", result.Value)
	}
	if result.Fired {
		t.Error("did not expect identical distributions to fire")
	}
}

func TestPSI_ZeroObservations(t *testing.T) {
	baseline := uniformBaseline(4)
	if _, err := PSI(baseline, map[int]int{}, profile.ThresholdSelector{Mode: profile.ThresholdFixed, Fixed: 0.1}); err == nil {
		t.Fatal("expected error for zero observations")
	}
}

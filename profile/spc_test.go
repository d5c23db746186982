package profile

import (
	"math"
	"testing"

	"scouter/pkg/apperror"
)

func TestNewSPCFeature_Degenerate(t *testing.T) {
	_, err := NewSPCFeature([]float64{0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected degenerate baseline to be rejected")
	}
	if apperror.Code(err) != apperror.CodeInvalidFeatureConfig {
		t.Errorf("expected CodeInvalidFeatureConfig, got %v", apperror.Code(err))
	}
}

func TestNewSPCFeature_Limits(t *testing.T) {
	f, err := NewSPCFeature([]float64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(f.Center-3) > 1e-9 {
		t.Errorf("expected center 3, got %v", f.Center)
	}
	if math.Abs(f.Sigma-math.Sqrt(2)) > 1e-9 {
		t.Errorf("expected sigma sqrt(2), got %v", f.Sigma)
	}
	if !(f.ThreeLCL < f.TwoLCL && f.TwoLCL < f.OneLCL && f.OneLCL < f.Center &&
		f.Center < f.OneUCL && f.OneUCL < f.TwoUCL && f.TwoUCL < f.ThreeUCL) {
		t.Error("control limits are not strictly ordered")
	}
}

func TestNewSPCFeature_RejectsNaN(t *testing.T) {
	_, err := NewSPCFeature([]float64{1, math.NaN(), 3})
	if err == nil {
		t.Fatal("expected NaN sample to be rejected")
	}
}

func TestNewSPCProfile(t *testing.T) {
	p, err := NewSPCProfile(map[string][]float64{
		"latency_ms": {10, 12, 11, 13, 9},
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AlertRule != DefaultSPCAlertRule {
		t.Errorf("expected default alert rule, got %q", p.AlertRule)
	}
	if _, ok := p.Features["latency_ms"]; !ok {
		t.Error("expected latency_ms feature to be present")
	}
}

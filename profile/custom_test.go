package profile

import "testing"

func TestNewCustomProfile_Valid(t *testing.T) {
	p, err := NewCustomProfile([]CustomMetric{
		{Name: "accuracy", Baseline: 0.9, AlertThreshold: ConditionBelow},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Metrics) != 1 {
		t.Errorf("expected 1 metric, got %d", len(p.Metrics))
	}
}

func TestNewCustomProfile_DuplicateName(t *testing.T) {
	_, err := NewCustomProfile([]CustomMetric{
		{Name: "accuracy", AlertThreshold: ConditionAbove},
		{Name: "accuracy", AlertThreshold: ConditionBelow},
	})
	if err == nil {
		t.Fatal("expected duplicate metric name to be rejected")
	}
}

func TestNewCustomProfile_UnknownCondition(t *testing.T) {
	_, err := NewCustomProfile([]CustomMetric{{Name: "x", AlertThreshold: AlertCondition("weird")}})
	if err == nil {
		t.Fatal("expected unknown alert condition to be rejected")
	}
}

package profile

import "testing"

func TestNewLLMProfile_Valid(t *testing.T) {
	p, err := NewLLMProfile([]LLMMetric{{Name: "final", Baseline: 1, Threshold: 0.5}}, sampleWorkflow(), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SampleRate != 4 {
		t.Errorf("expected sample rate 4, got %d", p.SampleRate)
	}
}

func TestNewLLMProfile_NoMetrics(t *testing.T) {
	_, err := NewLLMProfile(nil, sampleWorkflow(), 1)
	if err == nil {
		t.Fatal("expected workflow without metrics to be rejected")
	}
}

func TestNewLLMProfile_MetricNotTerminal(t *testing.T) {
	_, err := NewLLMProfile([]LLMMetric{{Name: "relevance"}}, sampleWorkflow(), 1)
	if err == nil {
		t.Fatal("expected metric naming a non-terminal task to be rejected")
	}
}

func TestNewLLMProfile_DefaultSampleRate(t *testing.T) {
	p, err := NewLLMProfile([]LLMMetric{{Name: "final"}}, sampleWorkflow(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SampleRate != 1 {
		t.Errorf("expected default sample rate 1, got %d", p.SampleRate)
	}
}

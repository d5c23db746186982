package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"scouter/profile"
	"scouter/wire"
)

type captureSink struct {
	mu      sync.Mutex
	records []wire.Record
	calls   int
}

func (s *captureSink) Send(ctx context.Context, records []wire.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	s.calls++
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func testEntity(t *testing.T, driftType profile.DriftType) profile.Entity {
	t.Helper()
	e, err := profile.NewEntity("fraud", "scorer", "1.0.0", driftType)
	if err != nil {
		t.Fatalf("unexpected error building entity: %v", err)
	}
	return e
}

func spcTestProfile(t *testing.T) *profile.Profile {
	t.Helper()
	spc, err := profile.NewSPCProfile(map[string][]float64{"latency_ms": {1, 2, 3, 4, 5}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &profile.Profile{DriftType: profile.DriftSPC, SPC: spc}
}

func TestQueue_InsertFeatures_FlushesOnThreshold(t *testing.T) {
	entity := testEntity(t, profile.DriftSPC)
	prof := spcTestProfile(t)
	sink := &captureSink{}

	q, err := New(entity, prof, sink, WithFlushThreshold(2), WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer q.Shutdown(context.Background())

	if err := q.InsertFeatures(context.Background(), Features{"latency_ms": NumberValue(10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.InsertFeatures(context.Background(), Features{"latency_ms": NumberValue(11)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(); got != 2 {
		t.Errorf("expected 2 records delivered after threshold flush, got %d", got)
	}
}

func TestQueue_InsertFeatures_RejectsUnknownFeature(t *testing.T) {
	entity := testEntity(t, profile.DriftSPC)
	prof := spcTestProfile(t)
	sink := &captureSink{}
	q, err := New(entity, prof, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer q.Shutdown(context.Background())

	if err := q.InsertFeatures(context.Background(), Features{"unknown": NumberValue(1)}); err == nil {
		t.Fatal("expected error for feature outside the baseline")
	}
}

func TestQueue_AsyncMode_ReturnsErrQueueFull(t *testing.T) {
	entity := testEntity(t, profile.DriftSPC)
	prof := spcTestProfile(t)
	sink := &blockingSink{release: make(chan struct{})}

	q, err := New(entity, prof, sink,
		WithMode(ModeAsync), WithCapacity(1), WithFlushThreshold(1), WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer q.Shutdown(context.Background())
	defer close(sink.release)

	if err := q.InsertFeatures(context.Background(), Features{"latency_ms": NumberValue(1)}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	// give the sender goroutine a chance to pull the first batch out of the
	// outbox and block inside Send, freeing room for exactly one more record.
	time.Sleep(50 * time.Millisecond)
	if err := q.InsertFeatures(context.Background(), Features{"latency_ms": NumberValue(2)}); err != nil {
		t.Fatalf("unexpected error on second insert: %v", err)
	}
	if err := q.InsertFeatures(context.Background(), Features{"latency_ms": NumberValue(3)}); err == nil {
		t.Fatal("expected ErrQueueFull once capacity is exhausted")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Send(ctx context.Context, records []wire.Record) error {
	<-s.release
	return nil
}

func TestQueue_InsertMetrics_CustomProfile(t *testing.T) {
	entity := testEntity(t, profile.DriftCustom)
	custom, err := profile.NewCustomProfile([]profile.CustomMetric{
		{Name: "accuracy", Baseline: 0.9, AlertThreshold: profile.ConditionBelow},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prof := &profile.Profile{DriftType: profile.DriftCustom, Custom: custom}
	sink := &captureSink{}
	q, err := New(entity, prof, sink, WithFlushThreshold(1), WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer q.Shutdown(context.Background())

	if err := q.InsertMetrics(context.Background(), Metrics{"accuracy": 0.8}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.InsertMetrics(context.Background(), Metrics{"unknown_metric": 1}); err == nil {
		t.Fatal("expected error for metric outside the baseline")
	}
}

func TestQueue_InsertLLM_SamplesAtRate(t *testing.T) {
	entity := testEntity(t, profile.DriftLLM)
	wf := profile.Workflow{Tasks: []profile.Task{
		{ID: "score", Params: []profile.PromptParam{{Name: "x", Source: profile.SourceInput}}, ResponseType: profile.ResponseScore},
	}}
	llm, err := profile.NewLLMProfile([]profile.LLMMetric{{Name: "score", Baseline: 1, Threshold: 0.5}}, wf, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prof := &profile.Profile{DriftType: profile.DriftLLM, LLM: llm}
	sink := &captureSink{}
	q, err := New(entity, prof, sink, WithFlushThreshold(1), WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer q.Shutdown(context.Background())

	for i := 0; i < 4; i++ {
		if err := q.InsertLLM(context.Background(), LlmRecord{Context: map[string]any{"i": i}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(); got != 2 {
		t.Errorf("expected 2 of 4 records sampled at rate 2, got %d", got)
	}
}

func TestQueue_Shutdown_DrainsOutbox(t *testing.T) {
	entity := testEntity(t, profile.DriftSPC)
	prof := spcTestProfile(t)
	sink := &captureSink{}
	q, err := New(entity, prof, sink, WithFlushThreshold(1), WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.InsertFeatures(context.Background(), Features{"latency_ms": NumberValue(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("expected 1 record drained on shutdown, got %d", got)
	}
}

package queue

import (
	"context"
	"testing"
	"time"

	"scouter/profile"
)

func TestManager_RegisterGetShutdown(t *testing.T) {
	m := NewManager()
	entity := testEntity(t, profile.DriftSPC)
	prof := spcTestProfile(t)
	sink := &captureSink{}

	q, err := m.Register(entity, prof, sink, WithFlushThreshold(1), WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := m.Get(entity.Key()); !ok || got != q {
		t.Fatal("expected Get to return the registered queue")
	}

	if err := q.InsertFeatures(context.Background(), Features{"latency_ms": NumberValue(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if _, ok := m.Get(entity.Key()); ok {
		t.Error("expected queue to be untracked after shutdown")
	}
	if got := sink.count(); got != 1 {
		t.Errorf("expected 1 record drained through shutdown, got %d", got)
	}
}

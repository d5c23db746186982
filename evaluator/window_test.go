package evaluator

import (
	"testing"
	"time"
)

func TestReadSPCWindow_ReturnsValuesInOrder(t *testing.T) {
	db := &fakeDB{queryRows: [][]fakeRow{{{values: []any{1.0}}, {values: []any{2.0}}}}}
	got, err := readSPCWindow(t.Context(), db, "entity-1", "x", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 1.0 || got[1] != 2.0 {
		t.Errorf("unexpected window: %v", got)
	}
}

func TestReadPSIWindow_GroupsByBinID(t *testing.T) {
	db := &fakeDB{queryRows: [][]fakeRow{{{values: []any{0, 5}}, {values: []any{1, 3}}}}}
	got, err := readPSIWindow(t.Context(), db, "entity-1", "x", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 5 || got[1] != 3 {
		t.Errorf("unexpected counts: %v", got)
	}
}

func TestReadCustomWindow_NullAverageMeansNoObservations(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{values: []any{nil}}}}
	_, ok, err := readCustomWindow(t.Context(), db, "entity-1", "latency_p95", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a NULL average")
	}
}

func TestReadCustomWindow_ReturnsAverage(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{values: []any{5.5}}}}
	value, ok, err := readCustomWindow(t.Context(), db, "entity-1", "latency_p95", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || value != 5.5 {
		t.Errorf("expected ok=true value=5.5, got ok=%v value=%v", ok, value)
	}
}

package ingest

import (
	"strings"
	"testing"
	"time"

	"scouter/wire"
)

func TestWriter_Write_RoutesByRecordKind(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(db)

	now := time.Now()
	resolved := []resolvedRecord{
		{entityID: "e1", record: wire.NewSPCRecord("s", "n", "v1", now, "x", 1.5)},
		{entityID: "e1", record: wire.NewPSIRecord("s", "n", "v1", now, "x", 2, 7)},
		{entityID: "e2", record: wire.NewCustomRecord("s", "n", "v1", now, "latency_ms", 42)},
	}

	if err := w.Write(t.Context(), resolved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 3 {
		t.Fatalf("expected 3 exec calls, got %d", len(db.execs))
	}

	var sawSPC, sawPSI, sawCustom bool
	for _, e := range db.execs {
		switch {
		case strings.Contains(e.sql, "spc_sample"):
			sawSPC = true
		case strings.Contains(e.sql, "psi_sample"):
			sawPSI = true
		case strings.Contains(e.sql, "custom_sample"):
			sawCustom = true
		}
	}
	if !sawSPC || !sawPSI || !sawCustom {
		t.Errorf("expected all three tables to be written, got spc=%v psi=%v custom=%v", sawSPC, sawPSI, sawCustom)
	}
}

func TestWriter_Write_LLMEnqueuesDriftRecord(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(db)

	resolved := []resolvedRecord{
		{entityID: "e1", record: wire.NewLLMRecord("s", "n", "v1", time.Now(), map[string]any{"k": "v"}, "hello")},
	}
	if err := w.Write(t.Context(), resolved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 2 {
		t.Fatalf("expected 2 exec calls (sample + drift record), got %d", len(db.execs))
	}
	if !strings.Contains(db.execs[0].sql, "llm_sample") {
		t.Errorf("expected first exec to insert llm_sample, got %q", db.execs[0].sql)
	}
	if !strings.Contains(db.execs[1].sql, "llm_drift_record") {
		t.Errorf("expected second exec to enqueue llm_drift_record, got %q", db.execs[1].sql)
	}
}

func TestWriter_Write_EmptyBatchIsNoop(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(db)
	if err := w.Write(t.Context(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 0 {
		t.Errorf("expected no exec calls for an empty batch, got %d", len(db.execs))
	}
}

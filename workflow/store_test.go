package workflow

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"scouter/profile"
)

func TestClaimRecord_SucceedsWhenRowAffected(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	claimed, err := claimRecord(t.Context(), db, "uid-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Error("expected claim to succeed")
	}
}

func TestClaimRecord_LosesRaceWhenNoRowAffected(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 0")}
	claimed, err := claimRecord(t.Context(), db, "uid-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Error("expected claim to lose the race")
	}
}

func TestFetchPending_ReturnsQueuedRecords(t *testing.T) {
	now := time.Now()
	db := &fakeDB{queryRows: [][]fakeRow{{
		{values: []any{"uid-1", "entity-1", now}},
	}}}
	records, err := fetchPending(t.Context(), db, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].UID != "uid-1" || records[0].EntityID != "entity-1" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestFinishRecord_WritesTerminalStatus(t *testing.T) {
	db := &fakeDB{}
	if err := finishRecord(t.Context(), db, "uid-1", "completed", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "UPDATE llm_drift_record") {
		t.Fatalf("expected one record status update, got %+v", db.execs)
	}
}

func TestLoadLLMProfile_DecodesWorkflow(t *testing.T) {
	llm, _ := json.Marshal(profile.LLMProfile{
		Metrics: []profile.LLMMetric{{Name: "final", Baseline: 0.8, Threshold: 0.1}},
		Workflow: profile.Workflow{Tasks: []profile.Task{
			{ID: "final", ResponseType: profile.ResponseScore, Params: []profile.PromptParam{{Name: "x", Source: profile.SourceInput}}},
		}},
		SampleRate: 1,
	})
	db := &fakeDB{rows: []fakeRow{{values: []any{"uid-1", llm}}}}

	p, err := loadLLMProfile(t.Context(), db, "entity-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LLM == nil || len(p.LLM.Workflow.Tasks) != 1 {
		t.Errorf("expected a decoded workflow, got %+v", p.LLM)
	}
}

func TestLoadSampleContext_DecodesContextMap(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{"input": "Q", "response": "A"})
	db := &fakeDB{rows: []fakeRow{{values: []any{raw}}}}

	ctx, err := loadSampleContext(t.Context(), db, "entity-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx["input"] != "Q" || ctx["response"] != "A" {
		t.Errorf("unexpected context: %+v", ctx)
	}
}

func TestPersistMetric_InsertsLLMDriftRow(t *testing.T) {
	db := &fakeDB{}
	if err := persistMetric(t.Context(), db, "entity-1", "final", 1.0, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "INSERT INTO llm_drift") {
		t.Fatalf("expected one llm_drift insert, got %+v", db.execs)
	}
}

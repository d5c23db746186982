package workflow

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"scouter/pkg/config"
	"scouter/profile"
)

// stubJudge returns a fixed score for every task, recording every prompt
// it was asked to evaluate.
type stubJudge struct {
	score    int
	err      error
	prompts  []string
}

func (j *stubJudge) Run(_ context.Context, prompt string, _ profile.ResponseType) (AgentResponse, error) {
	j.prompts = append(j.prompts, prompt)
	if j.err != nil {
		return AgentResponse{}, j.err
	}
	return AgentResponse{Score: &profile.Score{Score: j.score, Reason: "stub"}}, nil
}

func singleTaskWorkflow() profile.Workflow {
	return profile.Workflow{Tasks: []profile.Task{
		{ID: "final", ResponseType: profile.ResponseScore, Prompt: "score {{input}}",
			Params: []profile.PromptParam{{Name: "input", Source: profile.SourceInput}}},
	}}
}

func llmProfileRow(t *testing.T, w profile.Workflow) fakeRow {
	t.Helper()
	llm, err := json.Marshal(profile.LLMProfile{
		Metrics:    []profile.LLMMetric{{Name: "final", Baseline: 1, Threshold: 0.5}},
		Workflow:   w,
		SampleRate: 1,
	})
	if err != nil {
		t.Fatalf("failed to marshal llm profile: %v", err)
	}
	return fakeRow{values: []any{"profile-uid", llm}}
}

func sampleContextRow(t *testing.T) fakeRow {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"input": "Q", "response": "A"})
	if err != nil {
		t.Fatalf("failed to marshal sample context: %v", err)
	}
	return fakeRow{values: []any{raw}}
}

func TestExecute_TerminalTaskPersistsMetric(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{llmProfileRow(t, singleTaskWorkflow()), sampleContextRow(t)}}
	e := NewExecutor(db, &stubJudge{score: 1}, nil, config.WorkflowConfig{})

	record := pendingRecord{UID: "uid-1", EntityID: "entity-1", CreatedAt: time.Now()}
	if err := e.execute(t.Context(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawMetric bool
	for _, ex := range db.execs {
		if strings.Contains(ex.sql, "INSERT INTO llm_drift") {
			sawMetric = true
		}
	}
	if !sawMetric {
		t.Errorf("expected the terminal task's score to be persisted, execs=%+v", db.execs)
	}
}

func TestExecute_JudgeFailureStopsExecutionAndIsReported(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{llmProfileRow(t, singleTaskWorkflow()), sampleContextRow(t)}}
	e := NewExecutor(db, &stubJudge{err: errTestJudge}, nil, config.WorkflowConfig{})

	record := pendingRecord{UID: "uid-1", EntityID: "entity-1", CreatedAt: time.Now()}
	if err := e.execute(t.Context(), record); err == nil {
		t.Fatal("expected the judge failure to surface")
	}
	for _, ex := range db.execs {
		if strings.Contains(ex.sql, "INSERT INTO llm_drift") {
			t.Error("expected no metric to be persisted when the judge fails")
		}
	}
}

func TestRunOne_SkipsWhenClaimLost(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 0")}
	e := NewExecutor(db, &stubJudge{score: 1}, nil, config.WorkflowConfig{})

	e.runOne(t.Context(), pendingRecord{UID: "uid-1", EntityID: "entity-1", CreatedAt: time.Now()})

	if len(db.execs) != 1 {
		t.Fatalf("expected only the failed claim attempt, got %d execs", len(db.execs))
	}
}

func TestTick_NoRecordsIsNoop(t *testing.T) {
	db := &fakeDB{}
	e := NewExecutor(db, &stubJudge{score: 1}, nil, config.WorkflowConfig{})
	if err := e.tick(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewExecutor_DefaultsEveryKnob(t *testing.T) {
	e := NewExecutor(&fakeDB{}, &stubJudge{}, nil, config.WorkflowConfig{})
	if e.concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", e.concurrency)
	}
	if e.taskCap != 4 {
		t.Errorf("expected default task cap 4, got %d", e.taskCap)
	}
	if e.taskTimeout != 60*time.Second {
		t.Errorf("expected default task timeout 60s, got %s", e.taskTimeout)
	}
}

var errTestJudge = &judgeStubError{}

type judgeStubError struct{}

func (e *judgeStubError) Error() string { return "judge stub failure" }

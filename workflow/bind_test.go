package workflow

import (
	"testing"

	"scouter/profile"
)

func TestBindParams_ResolvesInputAndResponse(t *testing.T) {
	task := profile.Task{ID: "relevance", Params: []profile.PromptParam{
		{Name: "q", Source: profile.SourceInput},
		{Name: "a", Source: profile.SourceResponse},
	}}
	sampleContext := map[string]any{"input": "Q", "response": "A"}

	bound, err := bindParams(task, sampleContext, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bound["q"] != "Q" || bound["a"] != "A" {
		t.Errorf("unexpected bindings: %+v", bound)
	}
}

func TestBindParams_ResolvesUpstreamTaskOutput(t *testing.T) {
	task := profile.Task{ID: "final", Params: []profile.PromptParam{
		{Name: "r", Source: profile.SourceTask, TaskRef: "relevance"},
	}}
	upstream := map[string]string{"relevance": "5"}

	bound, err := bindParams(task, nil, upstream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bound["r"] != "5" {
		t.Errorf("expected upstream output 5, got %q", bound["r"])
	}
}

func TestBindParams_MissingInputFieldFails(t *testing.T) {
	task := profile.Task{ID: "relevance", Params: []profile.PromptParam{{Name: "q", Source: profile.SourceInput}}}
	if _, err := bindParams(task, map[string]any{}, nil); err == nil {
		t.Fatal("expected an error for a missing input field")
	}
}

func TestBindParams_MissingUpstreamOutputFails(t *testing.T) {
	task := profile.Task{ID: "final", Params: []profile.PromptParam{{Name: "r", Source: profile.SourceTask, TaskRef: "relevance"}}}
	if _, err := bindParams(task, nil, map[string]string{}); err == nil {
		t.Fatal("expected an error for an unresolved upstream reference")
	}
}

func TestRenderPrompt_SubstitutesEveryPlaceholder(t *testing.T) {
	got := renderPrompt("rate {{response}} given {{input}}", map[string]string{"response": "A", "input": "Q"})
	want := "rate A given Q"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTaskOutput_PrefersScoreOverText(t *testing.T) {
	out := taskOutput(AgentResponse{Text: "ignored", Score: &profile.Score{Score: 1, Reason: "ok"}})
	if out != "1" {
		t.Errorf("expected score-derived output \"1\", got %q", out)
	}
}

func TestTaskOutput_FallsBackToText(t *testing.T) {
	out := taskOutput(AgentResponse{Text: "raw text"})
	if out != "raw text" {
		t.Errorf("expected raw text fallback, got %q", out)
	}
}

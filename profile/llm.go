package profile

import "scouter/pkg/apperror"

// LLMMetric is a named derived metric an LLM workflow's terminal task
// produces, with the baseline and threshold used to judge drift.
type LLMMetric struct {
	Name      string  `json:"name"`
	Baseline  float64 `json:"baseline"`
	Threshold float64 `json:"threshold"`
}

// LLMProfile pairs a prompt-evaluation Workflow with the metrics its
// terminal tasks are expected to emit, plus a 1-in-SampleRate ingestion
// sampling rate for pending records.
type LLMProfile struct {
	Metrics    []LLMMetric `json:"metrics"`
	Workflow   Workflow    `json:"workflow"`
	SampleRate int         `json:"sample_rate"`
}

// NewLLMProfile enforces 4.A's LLM construction rule: the workflow must be
// valid, a workflow without any declared metrics is rejected, and the
// metric name set must equal the workflow's terminal task IDs exactly.
func NewLLMProfile(metrics []LLMMetric, workflow Workflow, sampleRate int) (*LLMProfile, error) {
	if len(metrics) == 0 {
		return nil, apperror.New(apperror.CodeWorkflowMismatch, "llm profile requires at least one metric")
	}
	if err := workflow.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		sampleRate = 1
	}

	terminal := make(map[string]bool, len(workflow.Tasks))
	for _, id := range workflow.TerminalTaskIDs() {
		terminal[id] = true
	}

	named := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		if m.Name == "" {
			return nil, apperror.New(apperror.CodeInvalidFeatureConfig, "llm metric name is required")
		}
		if !terminal[m.Name] {
			return nil, apperror.NewWithField(apperror.CodeWorkflowMismatch,
				"metric name does not match a terminal task id", m.Name)
		}
		named[m.Name] = true
	}
	for id := range terminal {
		if !named[id] {
			return nil, apperror.NewWithField(apperror.CodeWorkflowMismatch,
				"terminal task has no corresponding metric", id)
		}
	}

	return &LLMProfile{Metrics: metrics, Workflow: workflow, SampleRate: sampleRate}, nil
}

package profile

import "scouter/pkg/apperror"

// ParamSource names where a prompt parameter's value is bound from.
type ParamSource string

const (
	SourceInput    ParamSource = "input"
	SourceResponse ParamSource = "response"
	SourceContext  ParamSource = "context"
	SourceTask     ParamSource = "task" // upstream task output, qualified by TaskRef
)

// PromptParam binds one named template variable in a task's prompt to a
// value available at execution time.
type PromptParam struct {
	Name    string      `json:"name"`
	Source  ParamSource `json:"source"`
	TaskRef string      `json:"task_ref,omitempty"` // required when Source == SourceTask
}

// ResponseType names the shape a judge is expected to return for a task.
type ResponseType string

const (
	ResponseScore ResponseType = "score"
	ResponseText  ResponseType = "text"
	ResponseJSON  ResponseType = "json"
)

// Score is the structured judgment a terminal task must produce.
type Score struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Task is one node of a Workflow's prompt-evaluation DAG.
type Task struct {
	ID           string        `json:"id"`
	DependsOn    []string      `json:"depends_on,omitempty"`
	Prompt       string        `json:"prompt"`
	Params       []PromptParam `json:"params"`
	ResponseType ResponseType  `json:"response_type"`
}

// Workflow is a dependency-ordered set of prompt-evaluation tasks. Terminal
// tasks (nothing depends on them) must return Score; their IDs become the
// metric names an owning LLMProfile reports.
type Workflow struct {
	Tasks []Task `json:"tasks"`
}

// TaskByID returns the task with the given id, or false if absent.
func (w *Workflow) TaskByID(id string) (Task, bool) {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// TerminalTaskIDs returns the IDs of tasks that no other task depends on.
func (w *Workflow) TerminalTaskIDs() []string {
	dependedOn := make(map[string]bool, len(w.Tasks))
	for _, t := range w.Tasks {
		for _, d := range t.DependsOn {
			dependedOn[d] = true
		}
	}
	var terminal []string
	for _, t := range w.Tasks {
		if !dependedOn[t.ID] {
			terminal = append(terminal, t.ID)
		}
	}
	return terminal
}

// Validate checks structural well-formedness: non-empty, unique task IDs,
// no self-edges, no dangling edges, acyclic (via Kahn's algorithm), every
// task has at least one bound parameter, and every terminal task declares
// ResponseScore.
func (w *Workflow) Validate() error {
	if len(w.Tasks) == 0 {
		return apperror.ErrWorkflowEmpty
	}

	byID := make(map[string]Task, len(w.Tasks))
	for _, t := range w.Tasks {
		if _, dup := byID[t.ID]; dup {
			return apperror.NewWithField(apperror.CodeDuplicateTaskName, "duplicate task id", t.ID)
		}
		byID[t.ID] = t
	}

	indegree := make(map[string]int, len(w.Tasks))
	adjacency := make(map[string][]string, len(w.Tasks))
	for _, t := range w.Tasks {
		if len(t.Params) == 0 {
			return apperror.NewWithField(apperror.CodeInvalidAlertRule, "task declares no bound parameters", t.ID)
		}
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return apperror.NewWithField(apperror.CodeWorkflowCycle, "task depends on itself", t.ID)
			}
			if _, ok := byID[dep]; !ok {
				return apperror.NewWithField(apperror.CodeWorkflowDanglingEdge, "task depends on unknown task "+dep, t.ID)
			}
			adjacency[dep] = append(adjacency[dep], t.ID)
			indegree[t.ID]++
		}
	}

	queue := make([]string, 0, len(w.Tasks))
	for _, t := range w.Tasks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(w.Tasks) {
		return apperror.ErrWorkflowCycle
	}

	for _, id := range w.TerminalTaskIDs() {
		if byID[id].ResponseType != ResponseScore {
			return apperror.NewWithField(apperror.CodeWorkflowMismatch, "terminal task must return a score", id)
		}
	}
	return nil
}

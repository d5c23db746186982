package workflow

import (
	"sort"

	"scouter/profile"
)

// DAG is a layered view of a profile.Workflow: Layers[i] holds task IDs
// whose dependencies are all satisfied by tasks in earlier layers. Tasks
// within a layer have no dependency relationship to one another and are
// safe to run concurrently.
type DAG struct {
	workflow *profile.Workflow
	Layers   [][]string
}

// NewDAG validates w and arranges its tasks into dependency layers using
// Kahn's algorithm, the same acyclicity check profile.Workflow.Validate
// already performs, reused here to additionally produce the layering.
func NewDAG(w *profile.Workflow) (*DAG, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(w.Tasks))
	adjacency := make(map[string][]string, len(w.Tasks))
	for _, t := range w.Tasks {
		remaining[t.ID] = len(t.DependsOn)
		for _, dep := range t.DependsOn {
			adjacency[dep] = append(adjacency[dep], t.ID)
		}
	}

	var layers [][]string
	for len(remaining) > 0 {
		var layer []string
		for id, degree := range remaining {
			if degree == 0 {
				layer = append(layer, id)
			}
		}
		sort.Strings(layer)
		for _, id := range layer {
			delete(remaining, id)
			for _, next := range adjacency[id] {
				remaining[next]--
			}
		}
		layers = append(layers, layer)
	}
	return &DAG{workflow: w, Layers: layers}, nil
}

// Task returns the task with the given id.
func (d *DAG) Task(id string) (profile.Task, bool) {
	return d.workflow.TaskByID(id)
}

// TerminalTaskIDs returns the IDs of tasks nothing else depends on; these
// are the ones a run must collect a Score from.
func (d *DAG) TerminalTaskIDs() []string {
	return d.workflow.TerminalTaskIDs()
}

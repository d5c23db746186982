package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"scouter/pkg/apperror"
	"scouter/profile"
)

// bindParams resolves every declared parameter of task against the
// record's sampled context and the text already emitted by upstream
// tasks, per the four sources a prompt parameter may name.
func bindParams(task profile.Task, sampleContext map[string]any, upstream map[string]string) (map[string]string, error) {
	bound := make(map[string]string, len(task.Params))
	for _, p := range task.Params {
		switch p.Source {
		case profile.SourceInput:
			v, ok := sampleContext["input"]
			if !ok {
				return nil, apperror.NewWithField(apperror.CodeBindingUnresolved, "sampled context has no \"input\" field", p.Name)
			}
			bound[p.Name] = fmt.Sprint(v)

		case profile.SourceResponse:
			v, ok := sampleContext["response"]
			if !ok {
				return nil, apperror.NewWithField(apperror.CodeBindingUnresolved, "sampled context has no \"response\" field", p.Name)
			}
			bound[p.Name] = fmt.Sprint(v)

		case profile.SourceContext:
			data, err := json.Marshal(sampleContext)
			if err != nil {
				return nil, apperror.Wrap(err, apperror.CodeBindingUnresolved, "failed to marshal sampled context")
			}
			bound[p.Name] = string(data)

		case profile.SourceTask:
			v, ok := upstream[p.TaskRef]
			if !ok {
				return nil, apperror.NewWithField(apperror.CodeBindingUnresolved, "upstream task output not available: "+p.TaskRef, task.ID)
			}
			bound[p.Name] = v

		default:
			return nil, apperror.NewWithField(apperror.CodeBindingUnresolved, "unknown parameter source: "+string(p.Source), p.Name)
		}
	}
	return bound, nil
}

// renderPrompt substitutes every {{name}} placeholder in task.Prompt with
// its bound value.
func renderPrompt(promptTemplate string, bound map[string]string) string {
	rendered := promptTemplate
	for name, value := range bound {
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	return rendered
}

// taskOutput reduces a judge's AgentResponse to the single string an
// upstream-referencing task can bind as its SourceTask parameter.
func taskOutput(resp AgentResponse) string {
	if resp.Score != nil {
		return strconv.Itoa(resp.Score.Score)
	}
	return resp.Text
}

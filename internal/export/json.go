// Package export renders lab results for sharing outside the API.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/orchestrator"
	"github.com/dusk-indust/vlab/internal/workflow"
)

// RunExport is the JSON export of a one-shot run.
type RunExport struct {
	ExportedAt      string                       `json:"exportedAt"`
	Status          orchestrator.Status          `json:"status"`
	Error           string                       `json:"error,omitempty"`
	Facts           agent.Facts                  `json:"facts"`
	Strategy        *agent.Strategy              `json:"strategy,omitempty"`
	AgentInsights   map[agent.Role]agent.Opinion `json:"agentInsights,omitempty"`
	WorkflowOptions *workflow.Options            `json:"workflowOptions,omitempty"`
	Diagram         string                       `json:"diagram,omitempty"`
	ProgressEvents  []orchestrator.Event         `json:"progressEvents"`
}

// ExportRun builds a RunExport from a one-shot run. The diagram covers the
// default workflow selection.
func ExportRun(res orchestrator.ProcessResult, now time.Time) *RunExport {
	out := &RunExport{
		ExportedAt:      now.UTC().Format(time.RFC3339),
		Status:          res.Status,
		Error:           res.Error,
		Facts:           res.ExtractedFacts,
		Strategy:        res.Strategy,
		AgentInsights:   res.AgentInsights,
		WorkflowOptions: res.WorkflowOptions,
		ProgressEvents:  res.Events,
	}
	if res.WorkflowOptions != nil {
		out.Diagram = WorkflowMermaid(res.WorkflowOptions.Steps)
	}
	return out
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

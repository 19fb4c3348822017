// Package session holds project sessions in memory and enforces the order
// of their checkpoints.
package session

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/orchestrator"
	"github.com/dusk-indust/vlab/internal/workflow"
)

// Phase is a session's position in the checkpoint workflow. Phases only move
// forward: Checkpoint1, Checkpoint2, Finalized.
type Phase string

const (
	PhaseCheckpoint1 Phase = "checkpoint_1"
	PhaseCheckpoint2 Phase = "checkpoint_2"
	PhaseFinalized   Phase = "finalized"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrPhaseMismatch is returned when an operation is attempted in the
	// wrong phase. Errors of type *PhaseError wrap it.
	ErrPhaseMismatch = errors.New("session phase mismatch")

	// ErrInvalidSelection is returned when finalization names unknown steps.
	ErrInvalidSelection = workflow.ErrInvalidSelection
)

// PhaseError reports an operation attempted out of order.
type PhaseError struct {
	ID       string
	Current  Phase
	Expected Phase
	// InProgress is set when the session is in the expected phase but another
	// request is already advancing it.
	InProgress bool
}

func (e *PhaseError) Error() string {
	if e.InProgress {
		return fmt.Sprintf("session %s: analysis already in progress", e.ID)
	}
	return fmt.Sprintf("session %s is in phase %s, expected %s", e.ID, e.Current, e.Expected)
}

func (e *PhaseError) Unwrap() error {
	return ErrPhaseMismatch
}

// Selections records the caller's choices at the workflow checkpoint.
type Selections struct {
	SelectedSteps []string       `json:"selected_steps"`
	Modifications map[string]any `json:"modifications,omitempty"`
	UserNotes     string         `json:"user_notes,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Session is the aggregate for one project brief.
type Session struct {
	ID           string `json:"project_id"`
	Filename     string `json:"filename"`
	OriginalText string `json:"original_text"`
	Phase        Phase  `json:"phase"`

	ExtractedFacts    agent.Facts          `json:"extracted_facts"`
	ConfirmedFacts    *agent.Facts         `json:"confirmed_facts,omitempty"`
	UserModified      bool                 `json:"user_modified"`
	Checkpoint1Events []orchestrator.Event `json:"checkpoint_1_events"`

	Strategy          *agent.Strategy              `json:"strategy,omitempty"`
	AgentInsights     map[agent.Role]agent.Opinion `json:"agent_insights,omitempty"`
	WorkflowOptions   *workflow.Options            `json:"workflow_options,omitempty"`
	Checkpoint2Events []orchestrator.Event         `json:"checkpoint_2_events,omitempty"`
	LastError         string                       `json:"last_error,omitempty"`

	Selections    *Selections     `json:"selections,omitempty"`
	FinalWorkflow []workflow.Step `json:"final_workflow,omitempty"`

	// Analyzing is set while a confirmation holds the session.
	Analyzing bool `json:"analyzing"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// clone returns a deep copy of s. Event details are shared; events are never
// mutated after they are logged.
func (s *Session) clone() *Session {
	dst := *s

	if s.ConfirmedFacts != nil {
		f := *s.ConfirmedFacts
		dst.ConfirmedFacts = &f
	}
	dst.Checkpoint1Events = slices.Clone(s.Checkpoint1Events)
	dst.Checkpoint2Events = slices.Clone(s.Checkpoint2Events)

	if s.Strategy != nil {
		st := cloneStrategy(*s.Strategy)
		dst.Strategy = &st
	}
	if s.AgentInsights != nil {
		dst.AgentInsights = make(map[agent.Role]agent.Opinion, len(s.AgentInsights))
		for role, op := range s.AgentInsights {
			op.Reasoning = slices.Clone(op.Reasoning)
			dst.AgentInsights[role] = op
		}
	}
	if s.WorkflowOptions != nil {
		o := *s.WorkflowOptions
		o.Steps = slices.Clone(o.Steps)
		if o.Constraints.WithinBudget != nil {
			w := *o.Constraints.WithinBudget
			o.Constraints.WithinBudget = &w
		}
		dst.WorkflowOptions = &o
	}
	if s.Selections != nil {
		sel := *s.Selections
		sel.SelectedSteps = slices.Clone(sel.SelectedSteps)
		sel.Modifications = maps.Clone(sel.Modifications)
		dst.Selections = &sel
	}
	dst.FinalWorkflow = slices.Clone(s.FinalWorkflow)

	if s.ConfirmedAt != nil {
		t := *s.ConfirmedAt
		dst.ConfirmedAt = &t
	}
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		dst.FinalizedAt = &t
	}
	return &dst
}

func cloneStrategy(s agent.Strategy) agent.Strategy {
	s.Rationale = slices.Clone(s.Rationale)
	s.Candidates = slices.Clone(s.Candidates)
	s.Alternatives = slices.Clone(s.Alternatives)
	return s
}

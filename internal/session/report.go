package session

import (
	"time"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/orchestrator"
	"github.com/dusk-indust/vlab/internal/workflow"
)

// Report is the audit trail of a session.
type Report struct {
	ProjectID   string      `json:"project_id"`
	Filename    string      `json:"filename"`
	CreatedAt   time.Time   `json:"created_at"`
	FinalizedAt *time.Time  `json:"finalized_at"`
	Checkpoint1 Checkpoint1 `json:"checkpoint_1"`
	Checkpoint2 Checkpoint2 `json:"checkpoint_2"`
	Timeline    Timeline    `json:"timeline"`
	Status      Phase       `json:"status"`
}

// Checkpoint1 is the understanding-confirmation part of a Report.
type Checkpoint1 struct {
	OriginalExtraction agent.Facts          `json:"original_extraction"`
	UserConfirmedData  agent.Facts          `json:"user_confirmed_data"`
	UserModified       bool                 `json:"user_modified"`
	ProgressEvents     []orchestrator.Event `json:"progress_events"`
}

// Checkpoint2 is the workflow-selection part of a Report.
type Checkpoint2 struct {
	StrategyRecommended      *agent.Strategy              `json:"strategy_recommended"`
	AgentInsights            map[agent.Role]agent.Opinion `json:"agent_insights,omitempty"`
	WorkflowOptionsPresented *workflow.Options            `json:"workflow_options_presented"`
	UserSelections           *Selections                  `json:"user_selections"`
	FinalWorkflow            []workflow.Step              `json:"final_workflow"`
	ProgressEvents           []orchestrator.Event         `json:"progress_events"`
}

// Timeline lists when each checkpoint was passed.
type Timeline struct {
	Uploaded               time.Time  `json:"uploaded"`
	UnderstandingConfirmed *time.Time `json:"understanding_confirmed"`
	WorkflowFinalized      *time.Time `json:"workflow_finalized"`
}

// Report projects the session into its audit trail. Until the facts are
// confirmed, the extracted facts stand in for the confirmed ones.
func (s *Session) Report() Report {
	c := s.clone()
	confirmed := c.ExtractedFacts
	if c.ConfirmedFacts != nil {
		confirmed = *c.ConfirmedFacts
	}
	return Report{
		ProjectID:   c.ID,
		Filename:    c.Filename,
		CreatedAt:   c.CreatedAt,
		FinalizedAt: c.FinalizedAt,
		Checkpoint1: Checkpoint1{
			OriginalExtraction: c.ExtractedFacts,
			UserConfirmedData:  confirmed,
			UserModified:       c.UserModified,
			ProgressEvents:     nonNil(c.Checkpoint1Events),
		},
		Checkpoint2: Checkpoint2{
			StrategyRecommended:      c.Strategy,
			AgentInsights:            c.AgentInsights,
			WorkflowOptionsPresented: c.WorkflowOptions,
			UserSelections:           c.Selections,
			FinalWorkflow:            c.FinalWorkflow,
			ProgressEvents:           nonNil(c.Checkpoint2Events),
		},
		Timeline: Timeline{
			Uploaded:               c.CreatedAt,
			UnderstandingConfirmed: c.ConfirmedAt,
			WorkflowFinalized:      c.FinalizedAt,
		},
		Status: c.Phase,
	}
}

// Status is the short progress summary of a session.
type Status struct {
	ProjectID   string      `json:"project_id"`
	Phase       Phase       `json:"phase"`
	Analyzing   bool        `json:"analyzing"`
	LastError   string      `json:"last_error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Checkpoints Checkpoints `json:"checkpoints"`
}

// Checkpoints reports which checkpoints a session has passed.
type Checkpoints struct {
	Checkpoint1Complete bool `json:"checkpoint_1_complete"`
	Checkpoint2Complete bool `json:"checkpoint_2_complete"`
}

// Status projects the session into its progress summary.
func (s *Session) Status() Status {
	return Status{
		ProjectID: s.ID,
		Phase:     s.Phase,
		Analyzing: s.Analyzing,
		LastError: s.LastError,
		UpdatedAt: s.UpdatedAt,
		Checkpoints: Checkpoints{
			Checkpoint1Complete: s.Phase == PhaseCheckpoint2 || s.Phase == PhaseFinalized,
			Checkpoint2Complete: s.Phase == PhaseFinalized,
		},
	}
}

func nonNil(events []orchestrator.Event) []orchestrator.Event {
	if events == nil {
		return []orchestrator.Event{}
	}
	return events
}

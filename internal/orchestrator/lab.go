package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/completion"
	"github.com/dusk-indust/vlab/internal/workflow"
)

// Status is the outcome of a phase.
type Status string

const (
	StatusAwaitingConfirmation      Status = "awaiting_confirmation"
	StatusAwaitingWorkflowSelection Status = "awaiting_workflow_selection"
	StatusComplete                  Status = "complete"
	StatusError                     Status = "error"
)

// Checkpoint names the caller decision a successful phase is waiting on.
type Checkpoint string

const (
	CheckpointUnderstanding     Checkpoint = "understanding_confirmation"
	CheckpointWorkflowSelection Checkpoint = "workflow_selection"
)

// BriefResult is returned by AnalyzeBrief.
type BriefResult struct {
	ExtractedFacts agent.Facts `json:"extracted_facts"`
	Status         Status      `json:"status"`
	Checkpoint     Checkpoint  `json:"checkpoint,omitempty"`
	Error          string      `json:"error,omitempty"`
	Events         []Event     `json:"progress_events"`
}

// AnalysisResult is returned by GenerateFullAnalysis. On failure Strategy,
// WorkflowOptions and AgentInsights are nil; opinions collected before the
// failure are only visible in Events.
type AnalysisResult struct {
	ExtractedFacts  agent.Facts                  `json:"extracted_facts"`
	Strategy        *agent.Strategy              `json:"strategy"`
	WorkflowOptions *workflow.Options            `json:"workflow_options,omitempty"`
	AgentInsights   map[agent.Role]agent.Opinion `json:"agent_insights,omitempty"`
	Status          Status                       `json:"status"`
	Checkpoint      Checkpoint                   `json:"checkpoint,omitempty"`
	Error           string                       `json:"error,omitempty"`
	Events          []Event                      `json:"progress_events"`
}

// ProcessResult is returned by ProcessProject.
type ProcessResult struct {
	ExtractedFacts  agent.Facts                  `json:"extracted_facts"`
	Strategy        *agent.Strategy              `json:"strategy"`
	WorkflowOptions *workflow.Options            `json:"workflow_options,omitempty"`
	AgentInsights   map[agent.Role]agent.Opinion `json:"agent_insights,omitempty"`
	Status          Status                       `json:"status"`
	Error           string                       `json:"error,omitempty"`
	Events          []Event                      `json:"progress_events"`
}

// Lab runs the virtual lab: fact extraction, the ordered expert panel, the
// Principal Investigator's synthesis and workflow generation. A Lab holds no
// per-session state and is safe for concurrent use.
type Lab struct {
	panel  []agent.Expert
	roles  []agent.Role
	pi     *agent.PrincipalInvestigator
	logger *slog.Logger
}

type labConfig struct {
	registry *agent.Registry
	parser   agent.Parser
	logger   *slog.Logger
}

// Option configures a Lab.
type Option func(*labConfig)

// WithLogger sets the logger for phase failures and fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(c *labConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegistry replaces the standard expert panel.
func WithRegistry(r *agent.Registry) Option {
	return func(c *labConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithParser replaces the heuristic response parser used by every expert.
func WithParser(p agent.Parser) Option {
	return func(c *labConfig) {
		if p != nil {
			c.parser = p
		}
	}
}

// NewLab creates a Lab whose agents all share client.
func NewLab(client completion.Client, opts ...Option) *Lab {
	cfg := labConfig{
		registry: agent.NewRegistry(),
		parser:   agent.HeuristicParser{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Lab{
		panel:  cfg.registry.Panel(client, cfg.parser),
		roles:  cfg.registry.Roles(),
		pi:     agent.NewPrincipalInvestigator(client, agent.WithLogger(cfg.logger)),
		logger: cfg.logger,
	}
}

// Panel returns the expert roles in the order they are consulted.
func (l *Lab) Panel() []agent.Role {
	return slices.Clone(l.roles)
}

// RunOption configures a single phase invocation.
type RunOption func(*runConfig)

type runConfig struct {
	log *EventLog
}

// WithEventLog makes the phase append to log instead of a fresh one. The
// caller owns log and closes it; the phase result still only carries the
// events this phase emitted.
func WithEventLog(log *EventLog) RunOption {
	return func(c *runConfig) {
		c.log = log
	}
}

// run tracks one phase invocation's slice of the event log.
type run struct {
	log      *EventLog
	owned    bool
	start    int
	progress float64
}

func newRun(opts []RunOption) *run {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &run{log: cfg.log}
	if r.log == nil {
		r.log = NewEventLog()
		r.owned = true
	}
	r.start = r.log.Len()
	return r
}

func (r *run) emit(e Event) {
	r.progress = e.Progress
	r.log.Append(e)
}

// fail records err as an Error event at the progress reached so far.
func (r *run) fail(step string, err error) {
	r.log.Append(Event{
		Type:     EventError,
		StepName: step,
		Progress: r.progress,
		Message:  err.Error(),
	})
}

// finish closes a log the run created and returns the run's events.
func (r *run) finish() []Event {
	events := r.log.Since(r.start)
	if r.owned {
		r.log.Close()
	}
	return events
}

// AnalyzeBrief is phase 1: extract facts from the brief for the caller to
// confirm. Failures are reported in the result, never returned.
func (l *Lab) AnalyzeBrief(ctx context.Context, text string, opts ...RunOption) BriefResult {
	r := newRun(opts)

	r.emit(Event{
		Type:     EventStepStart,
		StepName: "Analyzing Project Brief",
		Agent:    agent.RolePrincipalInvestigator,
		Progress: 0,
		Message:  "Extracting target, timeline, budget and goal",
	})

	facts, err := l.pi.ExtractFacts(ctx, text)
	if err != nil {
		l.logger.Error("phase failed", "phase", "analyze_brief", "error", err)
		r.fail("Brief Analysis", err)
		return BriefResult{
			Status: StatusError,
			Error:  err.Error(),
			Events: r.finish(),
		}
	}

	r.emit(Event{
		Type:     EventStepComplete,
		StepName: "Brief Analysis Complete",
		Agent:    agent.RolePrincipalInvestigator,
		Progress: 100,
		Message:  fmt.Sprintf("Identified target %q", facts.Target),
	})

	return BriefResult{
		ExtractedFacts: facts,
		Status:         StatusAwaitingConfirmation,
		Checkpoint:     CheckpointUnderstanding,
		Events:         r.finish(),
	}
}

// milestone is the progress reported when an expert starts and finishes.
type milestone struct {
	thinking float64
	done     float64
}

// panelSchedule is the progress schedule for the standard three-expert panel.
var panelSchedule = []milestone{{15, 30}, {35, 50}, {55, 70}}

const (
	progressFactsLoaded  = 5
	progressSynthesizing = 75
	progressDecision     = 90
	progressWorkflow     = 92
)

// scheduleFor returns the milestones for a panel of n experts. Panels other
// than the standard one are spread evenly over the same 5..75 window.
func scheduleFor(n int) []milestone {
	if n == len(panelSchedule) {
		return panelSchedule
	}
	out := make([]milestone, n)
	width := float64(progressSynthesizing-progressFactsLoaded) / float64(n)
	for i := range out {
		lo := progressFactsLoaded + width*float64(i)
		out[i] = milestone{thinking: lo + width/4, done: lo + width}
	}
	return out
}

// GenerateFullAnalysis is phase 2: each expert in turn gives an opinion that
// later experts can read, the Principal Investigator synthesizes a strategy
// and workflow options are priced. Confirmed facts are passed through
// unchanged. Failures are reported in the result, never returned.
func (l *Lab) GenerateFullAnalysis(ctx context.Context, text string, confirmed agent.Facts, opts ...RunOption) AnalysisResult {
	r := newRun(opts)
	failed := func(step string, err error) AnalysisResult {
		l.logger.Error("phase failed", "phase", "full_analysis", "step", step, "error", err)
		r.fail(step, err)
		return AnalysisResult{
			ExtractedFacts: confirmed,
			Status:         StatusError,
			Error:          err.Error(),
			Events:         r.finish(),
		}
	}

	r.emit(Event{
		Type:     EventStepStart,
		StepName: "Starting Full Analysis",
		Progress: 0,
		Message:  "Convening the virtual lab",
	})

	facts := confirmed
	actx := agent.Context{Brief: text, ConfirmedFacts: &facts}
	r.emit(Event{
		Type:     EventStepComplete,
		StepName: "Confirmed Facts Loaded",
		Progress: progressFactsLoaded,
		Message:  fmt.Sprintf("Target %s, timeline %s, budget %s", facts.Target, facts.Timeline, facts.Budget),
	})

	schedule := scheduleFor(len(l.panel))
	for i, expert := range l.panel {
		role := expert.Role()
		step := fmt.Sprintf("%s Analysis", role)

		r.emit(Event{
			Type:     EventAgentThinking,
			StepName: step,
			Agent:    role,
			Progress: schedule[i].thinking,
			Message:  fmt.Sprintf("%s is reviewing the brief and %d prior opinion(s)", role, len(actx.Prior)),
		})

		op, err := expert.ProvideOpinion(ctx, actx)
		if err != nil {
			return failed(step, err)
		}
		// Each stage sees an immutable snapshot of everything before it.
		actx.Prior = append(slices.Clip(actx.Prior), op)

		r.emit(Event{
			Type:     EventStepComplete,
			StepName: step + " Complete",
			Agent:    role,
			Progress: schedule[i].done,
			Message:  fmt.Sprintf("Recommends %s (confidence %g)", op.Recommendation, op.Confidence),
			Details: map[string]any{
				"recommendation": string(op.Recommendation),
				"confidence":     op.Confidence,
			},
		})
	}

	r.emit(Event{
		Type:     EventAgentThinking,
		StepName: "Synthesizing Strategy",
		Agent:    agent.RolePrincipalInvestigator,
		Progress: progressSynthesizing,
		Message:  fmt.Sprintf("Weighing %d expert opinion(s)", len(actx.Prior)),
	})

	strategy, err := l.pi.SynthesizeStrategy(ctx, actx.Prior, text)
	if err != nil {
		return failed("Synthesizing Strategy", err)
	}

	r.emit(Event{
		Type:     EventDecisionMade,
		StepName: "Strategy Selected",
		Agent:    agent.RolePrincipalInvestigator,
		Progress: progressDecision,
		Message:  string(strategy.Title),
		Details: map[string]any{
			"title":      string(strategy.Title),
			"confidence": strategy.Confidence,
		},
	})

	r.emit(Event{
		Type:     EventToolUsage,
		StepName: "Generating Workflow Options",
		Progress: progressWorkflow,
		Message:  "Pricing the workflow catalog against the confirmed budget",
	})
	options := workflow.BuildOptions(strategy, facts)

	r.emit(Event{
		Type:     EventStepComplete,
		StepName: "Analysis Complete",
		Progress: 100,
		Message:  fmt.Sprintf("%d workflow steps, estimated %s", len(options.Steps), options.TotalEstimatedCost),
	})

	insights := make(map[agent.Role]agent.Opinion, len(actx.Prior))
	for _, op := range actx.Prior {
		insights[op.Role] = op
	}

	return AnalysisResult{
		ExtractedFacts:  confirmed,
		Strategy:        &strategy,
		WorkflowOptions: &options,
		AgentInsights:   insights,
		Status:          StatusAwaitingWorkflowSelection,
		Checkpoint:      CheckpointWorkflowSelection,
		Events:          r.finish(),
	}
}

// ProcessProject runs both phases back to back, passing the extracted facts
// straight to phase 2 without a confirmation checkpoint. The events are those
// of the two phases in order.
func (l *Lab) ProcessProject(ctx context.Context, text string, opts ...RunOption) ProcessResult {
	r := newRun(opts)

	brief := l.AnalyzeBrief(ctx, text, WithEventLog(r.log))
	if brief.Status == StatusError {
		return ProcessResult{
			Status: StatusError,
			Error:  brief.Error,
			Events: r.finish(),
		}
	}

	analysis := l.GenerateFullAnalysis(ctx, text, brief.ExtractedFacts, WithEventLog(r.log))
	res := ProcessResult{
		ExtractedFacts:  brief.ExtractedFacts,
		Strategy:        analysis.Strategy,
		WorkflowOptions: analysis.WorkflowOptions,
		AgentInsights:   analysis.AgentInsights,
		Status:          StatusComplete,
		Error:           analysis.Error,
		Events:          r.finish(),
	}
	if analysis.Status == StatusError {
		res.Status = StatusError
	}
	return res
}

// Package project implements the two-checkpoint project workflow shared by
// the HTTP API and the MCP tools: upload a brief, confirm the extracted
// facts, then finalize the workflow.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/docparse"
	"github.com/dusk-indust/vlab/internal/orchestrator"
	"github.com/dusk-indust/vlab/internal/session"
	"github.com/dusk-indust/vlab/internal/workflow"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAnalysisFailed is returned when a lab phase reports an error.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// Service coordinates the Lab and the session Store.
type Service struct {
	lab      *orchestrator.Lab
	store    *session.Store
	logger   *slog.Logger
	minChars int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMinChars sets the minimum number of non-whitespace characters a brief
// must contain.
func WithMinChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minChars = n
		}
	}
}

// NewService creates a Service.
func NewService(lab *orchestrator.Lab, store *session.Store, opts ...Option) *Service {
	s := &Service{
		lab:      lab,
		store:    store,
		logger:   slog.Default(),
		minChars: docparse.MinChars,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadResult is returned once a brief has been analyzed.
type UploadResult struct {
	Success        bool                    `json:"success"`
	ProjectID      string                  `json:"project_id"`
	Filename       string                  `json:"filename"`
	ExtractedData  agent.Facts             `json:"extracted_data"`
	Status         orchestrator.Status     `json:"status"`
	Checkpoint     orchestrator.Checkpoint `json:"checkpoint"`
	ProgressEvents []orchestrator.Event    `json:"progress_events"`
	Message        string                  `json:"message"`
	ProcessedAt    time.Time               `json:"processed_at"`
}

// Upload extracts the text of an uploaded document and analyzes it.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	text, err := docparse.ExtractFile(filename, data)
	if err != nil {
		return nil, err
	}
	return s.SubmitText(ctx, filename, text)
}

// SubmitText analyzes a brief and opens a session at the first checkpoint.
func (s *Service) SubmitText(ctx context.Context, filename, text string) (*UploadResult, error) {
	if err := docparse.CheckLength(text, s.minChars); err != nil {
		return nil, err
	}

	res := s.lab.AnalyzeBrief(ctx, text)
	if res.Status == orchestrator.StatusError {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, res.Error)
	}

	sess := s.store.Create(filename, text, res.ExtractedFacts, res.Events)
	s.logger.Info("brief analyzed", "project_id", sess.ID, "filename", filename, "target", res.ExtractedFacts.Target)

	return &UploadResult{
		Success:        true,
		ProjectID:      sess.ID,
		Filename:       filename,
		ExtractedData:  res.ExtractedFacts,
		Status:         res.Status,
		Checkpoint:     res.Checkpoint,
		ProgressEvents: res.Events,
		Message:        "Please review and confirm the extracted information",
		ProcessedAt:    s.now().UTC(),
	}, nil
}

// ConfirmRequest carries the caller's confirmed (possibly edited) facts.
type ConfirmRequest struct {
	ProjectID     string      `json:"project_id"`
	ConfirmedData agent.Facts `json:"confirmed_data"`
	UserModified  bool        `json:"user_modified"`
}

// Validate checks the request before any session is claimed.
func (r ConfirmRequest) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidRequest)
	}
	if c := r.ConfirmedData.Confidence; math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %g is outside [0,1]", ErrInvalidRequest, c)
	}
	return nil
}

// ConfirmResult is the full analysis presented at the workflow checkpoint.
type ConfirmResult struct {
	Success         bool                         `json:"success"`
	ProjectID       string                       `json:"project_id"`
	Strategy        *agent.Strategy              `json:"strategy"`
	WorkflowOptions *workflow.Options            `json:"workflow_options"`
	AgentInsights   map[agent.Role]agent.Opinion `json:"agent_insights"`
	Status          orchestrator.Status          `json:"status"`
	Checkpoint      orchestrator.Checkpoint      `json:"checkpoint"`
	ProgressEvents  []orchestrator.Event         `json:"progress_events"`
	Message         string                       `json:"message"`
}

// Confirm runs the full analysis on a session at the first checkpoint.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sess, err := s.store.BeginConfirm(req.ProjectID)
	if err != nil {
		return nil, err
	}
	res := s.lab.GenerateFullAnalysis(ctx, sess.OriginalText, req.ConfirmedData)
	return s.completeConfirm(req, res)
}

// completeConfirm records the analysis outcome on the claimed session.
func (s *Service) completeConfirm(req ConfirmRequest, res orchestrator.AnalysisResult) (*ConfirmResult, error) {
	if res.Status == orchestrator.StatusError {
		if err := s.store.AbortConfirm(req.ProjectID, res.Error, res.Events); err != nil {
			s.logger.Error("release session", "project_id", req.ProjectID, "error", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, res.Error)
	}

	_, err := s.store.CompleteConfirm(req.ProjectID, session.Confirmation{
		Facts:        req.ConfirmedData,
		UserModified: req.UserModified,
		Strategy:     *res.Strategy,
		Insights:     res.AgentInsights,
		Options:      *res.WorkflowOptions,
		Events:       res.Events,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("analysis complete", "project_id", req.ProjectID, "strategy", res.Strategy.Title)

	return &ConfirmResult{
		Success:         true,
		ProjectID:       req.ProjectID,
		Strategy:        res.Strategy,
		WorkflowOptions: res.WorkflowOptions,
		AgentInsights:   res.AgentInsights,
		Status:          res.Status,
		Checkpoint:      res.Checkpoint,
		ProgressEvents:  res.Events,
		Message:         "Analysis complete! Please review the workflow options.",
	}, nil
}

// Stream message types.
const (
	MessageProgress = "progress"
	MessageComplete = "complete"
	MessageError    = "error"
)

// StreamMessage is one frame of a streamed confirmation.
type StreamMessage struct {
	Type  string              `json:"type"`
	Event *orchestrator.Event `json:"event,omitempty"`
	Data  *ConfirmResult      `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
}

// ConfirmStream runs Confirm while passing every progress event to send as it
// is emitted, followed by exactly one complete or error message. An error is
// returned without sending anything when the request is invalid or the
// session cannot be claimed, or
// when send fails. The analysis itself is not cancelled by ctx; it always
// runs to completion so the session is left consistent.
func (s *Service) ConfirmStream(ctx context.Context, req ConfirmRequest, send func(StreamMessage) error) error {
	if err := req.Validate(); err != nil {
		return err
	}
	sess, err := s.store.BeginConfirm(req.ProjectID)
	if err != nil {
		return err
	}

	log := orchestrator.NewEventLog()
	g, gctx := errgroup.WithContext(ctx)

	var (
		result *ConfirmResult
		failed error
	)
	g.Go(func() error {
		defer log.Close()
		res := s.lab.GenerateFullAnalysis(context.WithoutCancel(ctx), sess.OriginalText, req.ConfirmedData, orchestrator.WithEventLog(log))
		result, failed = s.completeConfirm(req, res)
		return nil
	})
	g.Go(func() error {
		for e := range log.Subscribe(gctx) {
			if err := send(StreamMessage{Type: MessageProgress, Event: &e}); err != nil {
				return fmt.Errorf("project: send progress: %w", err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if failed != nil {
		return send(StreamMessage{Type: MessageError, Error: failed.Error()})
	}
	return send(StreamMessage{Type: MessageComplete, Data: result})
}

// FinalizeRequest carries the caller's workflow selections.
type FinalizeRequest struct {
	ProjectID     string         `json:"project_id"`
	SelectedSteps []string       `json:"selected_steps"`
	Modifications map[string]any `json:"modifications,omitempty"`
	UserNotes     string         `json:"user_notes,omitempty"`
}

// FinalizeResult is the finalized workflow.
type FinalizeResult struct {
	Success            bool            `json:"success"`
	ProjectID          string          `json:"project_id"`
	Status             session.Phase   `json:"status"`
	Message            string          `json:"message"`
	FinalWorkflow      []workflow.Step `json:"final_workflow"`
	TotalEstimatedCost string          `json:"total_estimated_cost"`
	ShareURL           string          `json:"share_url"`
	FinalizedAt        time.Time       `json:"finalized_at"`
}

// Finalize records the workflow selections on a session at the second
// checkpoint.
func (s *Service) Finalize(_ context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	sess, err := s.store.Finalize(req.ProjectID, session.Selections{
		SelectedSteps: req.SelectedSteps,
		Modifications: req.Modifications,
		UserNotes:     req.UserNotes,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("workflow finalized", "project_id", sess.ID, "steps", len(sess.FinalWorkflow))

	return &FinalizeResult{
		Success:            true,
		ProjectID:          sess.ID,
		Status:             sess.Phase,
		Message:            "Workflow finalized and ready to share with team",
		FinalWorkflow:      sess.FinalWorkflow,
		TotalEstimatedCost: workflow.FormatCost(workflow.TotalCost(sess.FinalWorkflow)),
		ShareURL:           ReportPath(sess.ID),
		FinalizedAt:        *sess.FinalizedAt,
	}, nil
}

// ReportPath is the API path of a session's report.
func ReportPath(id string) string {
	return "/api/report/" + id
}

// Report returns the audit trail of a session.
func (s *Service) Report(_ context.Context, id string) (*session.Report, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	rep := sess.Report()
	return &rep, nil
}

// Sessions returns the number of open sessions.
func (s *Service) Sessions() int {
	return s.store.Len()
}

// Status returns the progress summary of a session.
func (s *Service) Status(_ context.Context, id string) (*session.Status, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	st := sess.Status()
	return &st, nil
}

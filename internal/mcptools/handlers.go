package mcptools

import (
	"context"
	"errors"
	"strings"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/project"
	"github.com/dusk-indust/vlab/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultFilename = "brief.txt"

// LabService handles MCP tool calls by delegating to a project.Service.
type LabService struct {
	svc *project.Service
}

// NewLabService creates a LabService backed by svc.
func NewLabService(svc *project.Service) *LabService {
	return &LabService{svc: svc}
}

// AnalyzeBrief analyzes a brief and opens a project at the understanding
// checkpoint.
func (s *LabService) AnalyzeBrief(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeBriefInput,
) (*mcp.CallToolResult, project.UploadResult, error) {
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		filename = defaultFilename
	}
	res, err := s.svc.SubmitText(ctx, filename, input.Text)
	if err != nil {
		return nil, project.UploadResult{}, err
	}
	return nil, *res, nil
}

// ConfirmFacts confirms the extracted facts and runs the full analysis.
func (s *LabService) ConfirmFacts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ConfirmFactsInput,
) (*mcp.CallToolResult, project.ConfirmResult, error) {
	if input.ProjectID == "" {
		return nil, project.ConfirmResult{}, errors.New("project_id is required")
	}
	res, err := s.svc.Confirm(ctx, project.ConfirmRequest{
		ProjectID: input.ProjectID,
		ConfirmedData: agent.Facts{
			Target:     input.Target,
			Timeline:   input.Timeline,
			Budget:     input.Budget,
			Goal:       input.Goal,
			Confidence: input.Confidence,
		},
		UserModified: input.UserModified,
	})
	if err != nil {
		return nil, project.ConfirmResult{}, err
	}
	return nil, *res, nil
}

// FinalizeWorkflow records the workflow selection of a project.
func (s *LabService) FinalizeWorkflow(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FinalizeWorkflowInput,
) (*mcp.CallToolResult, project.FinalizeResult, error) {
	res, err := s.svc.Finalize(ctx, project.FinalizeRequest{
		ProjectID:     input.ProjectID,
		SelectedSteps: input.SelectedSteps,
		UserNotes:     input.UserNotes,
	})
	if err != nil {
		return nil, project.FinalizeResult{}, err
	}
	return nil, *res, nil
}

// GetReport returns the audit trail of a project.
func (s *LabService) GetReport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, session.Report, error) {
	rep, err := s.svc.Report(ctx, input.ProjectID)
	if err != nil {
		return nil, session.Report{}, err
	}
	return nil, *rep, nil
}

// GetStatus returns which checkpoints a project has passed.
func (s *LabService) GetStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProjectInput,
) (*mcp.CallToolResult, session.Status, error) {
	st, err := s.svc.Status(ctx, input.ProjectID)
	if err != nil {
		return nil, session.Status{}, err
	}
	return nil, *st, nil
}

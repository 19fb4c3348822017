package server

import (
	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/project"
)

// FactsBody is the wire form of confirmed facts.
type FactsBody struct {
	Target     string  `json:"target" example:"SARS-CoV-2 spike RBD"`
	Timeline   string  `json:"timeline" example:"2 months"`
	Budget     string  `json:"budget" example:"$30,000"`
	Goal       string  `json:"goal" example:"therapeutic nanobody"`
	Confidence float64 `json:"confidence,omitempty" minimum:"0" maximum:"1"`
}

// ConfirmBody is the request body of the understanding confirmation.
type ConfirmBody struct {
	ProjectID     string    `json:"project_id" minLength:"1"`
	ConfirmedData FactsBody `json:"confirmed_data"`
	UserModified  bool      `json:"user_modified,omitempty"`
}

func (b ConfirmBody) request() project.ConfirmRequest {
	return project.ConfirmRequest{
		ProjectID: b.ProjectID,
		ConfirmedData: agent.Facts{
			Target:     b.ConfirmedData.Target,
			Timeline:   b.ConfirmedData.Timeline,
			Budget:     b.ConfirmedData.Budget,
			Goal:       b.ConfirmedData.Goal,
			Confidence: b.ConfirmedData.Confidence,
		},
		UserModified: b.UserModified,
	}
}

// FinalizeBody is the request body of the workflow selection.
type FinalizeBody struct {
	ProjectID     string         `json:"project_id" minLength:"1"`
	SelectedSteps []string       `json:"selected_steps" example:"[\"affinity_prediction\",\"structure_prediction\"]"`
	Modifications map[string]any `json:"modifications,omitempty"`
	UserNotes     string         `json:"user_notes,omitempty"`
}

func (b FinalizeBody) request() project.FinalizeRequest {
	return project.FinalizeRequest{
		ProjectID:     b.ProjectID,
		SelectedSteps: b.SelectedSteps,
		Modifications: b.Modifications,
		UserNotes:     b.UserNotes,
	}
}

// HealthBody is the health check response.
type HealthBody struct {
	Status               string `json:"status" example:"healthy"`
	CompletionConfigured bool   `json:"completion_configured"`
	Sessions             int    `json:"sessions"`
	Version              string `json:"version"`
}

// BannerBody is the root response.
type BannerBody struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

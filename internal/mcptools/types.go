package mcptools

// --- MCP Tool Types for the lab server mode (vlab mcp) ---
// Outputs reuse the project and session result types so MCP clients see the
// same JSON as the HTTP API.

// AnalyzeBriefInput is the input for the analyze_brief MCP tool.
type AnalyzeBriefInput struct {
	Text     string `json:"text" jsonschema:"full text of the project brief"`
	Filename string `json:"filename,omitempty" jsonschema:"name recorded for the brief (default: brief.txt)"`
}

// ConfirmFactsInput is the input for the confirm_facts MCP tool.
type ConfirmFactsInput struct {
	ProjectID    string  `json:"project_id" jsonschema:"project returned by analyze_brief"`
	Target       string  `json:"target" jsonschema:"confirmed biological target"`
	Timeline     string  `json:"timeline" jsonschema:"confirmed timeline, e.g. 2 months"`
	Budget       string  `json:"budget" jsonschema:"confirmed budget, e.g. $30,000"`
	Goal         string  `json:"goal" jsonschema:"confirmed project goal"`
	Confidence   float64 `json:"confidence,omitempty" jsonschema:"confidence in the facts (0-1)"`
	UserModified bool    `json:"user_modified,omitempty" jsonschema:"whether the facts were edited after extraction"`
}

// FinalizeWorkflowInput is the input for the finalize_workflow MCP tool.
type FinalizeWorkflowInput struct {
	ProjectID     string   `json:"project_id" jsonschema:"project at the workflow checkpoint"`
	SelectedSteps []string `json:"selected_steps" jsonschema:"ids of the optional steps to run; required steps are always included"`
	UserNotes     string   `json:"user_notes,omitempty" jsonschema:"free-form notes recorded with the selection"`
}

// ProjectInput is the input for the get_report and get_status MCP tools.
type ProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"project id"`
}

package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewLabMCPServer creates an MCP server with the five lab tools registered.
func NewLabMCPServer(svc *LabService, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "vlab",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_brief",
		Description: "Extract target, timeline, budget and goal from a project brief. Opens a project awaiting confirmation of the extracted facts.",
	}, svc.AnalyzeBrief)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "confirm_facts",
		Description: "Confirm (optionally edited) facts for a project and run the expert panel analysis. Returns the recommended strategy, expert insights and workflow options.",
	}, svc.ConfirmFacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "finalize_workflow",
		Description: "Select the workflow steps to run for an analyzed project. Required steps are always included.",
	}, svc.FinalizeWorkflow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_report",
		Description: "Return the audit trail of a project: extraction, confirmation, strategy, selections and progress events.",
	}, svc.GetReport)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Return the current phase of a project and which checkpoints it has passed.",
	}, svc.GetStatus)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

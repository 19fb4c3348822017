package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/vlab/internal/config"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// vlabMCPEntry is the MCP server configuration for the vlab binary.
var vlabMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "vlab",
  "args": ["mcp"]
}`)

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default vlab.yml and register the MCP server in .mcp.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd.OutOrStdout(), dir, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files and entries")
	return cmd
}

// runInit writes the default configuration and MCP registration into the
// target directory.
func runInit(w io.Writer, dir string, force bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}

	path, written, err := config.Write(abs, config.Default(), force)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(w, "  created %s\n", dotRelative(abs, path))
	} else {
		fmt.Fprintf(w, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(abs, path))
	}

	if err := mergeMCPConfig(w, filepath.Join(abs, ".mcp.json"), force); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nSetup complete. Set OPENAI_API_KEY, then run 'vlab serve' or connect an MCP client.")
	return nil
}

// mergeMCPConfig creates or merges the vlab entry into .mcp.json.
func mergeMCPConfig(w io.Writer, mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["vlab"]; exists && !force {
		fmt.Fprintln(w, "  skipped .mcp.json vlab entry (exists, use --force to overwrite)")
		return nil
	}

	cfg.MCPServers["vlab"] = vlabMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(w, "  %s .mcp.json with vlab MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to base, prefixed with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}

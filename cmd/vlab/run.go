package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/vlab/internal/agent"
	"github.com/dusk-indust/vlab/internal/docparse"
	"github.com/dusk-indust/vlab/internal/export"
	"github.com/dusk-indust/vlab/internal/orchestrator"
)

var (
	faintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	decisionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

func (a *app) runCmd() *cobra.Command {
	var (
		asJSON  bool
		diagram bool
	)
	cmd := &cobra.Command{
		Use:   "run <brief.pdf|brief.docx|brief.txt>",
		Short: "Analyze a brief end to end without checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}
			client, configured := a.completionClient(cfg)
			if !configured {
				return errNoAPIKey
			}

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read brief: %w", err)
			}
			text, err := docparse.ExtractFile(path, data)
			if err != nil {
				return err
			}
			if err := docparse.CheckLength(text, cfg.MinBriefChars); err != nil {
				return err
			}

			// Progress goes to stderr when stdout carries JSON.
			progressOut := cmd.OutOrStdout()
			if asJSON {
				progressOut = cmd.ErrOrStderr()
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg)
			lab, _ := wire(client, cfg, logger)
			fmt.Fprintln(progressOut, faintStyle.Render("Expert panel: "+panelNames(lab.Panel())))

			res, err := runWithProgress(cmd.Context(), lab, text, filepath.Base(path), progressOut)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				if err := export.WriteJSON(out, export.ExportRun(res, time.Now())); err != nil {
					return err
				}
			case diagram:
				if res.WorkflowOptions != nil {
					fmt.Fprint(out, export.WorkflowMermaid(res.WorkflowOptions.Steps))
				}
			default:
				printResult(out, res)
			}
			if res.Status == orchestrator.StatusError {
				return fmt.Errorf("analysis failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&diagram, "diagram", false, "print the workflow as a Mermaid diagram")
	cmd.MarkFlagsMutuallyExclusive("json", "diagram")
	return cmd
}

// runWithProgress runs both phases while printing every progress event as it
// is emitted.
func runWithProgress(ctx context.Context, lab *orchestrator.Lab, text, name string, w io.Writer) (orchestrator.ProcessResult, error) {
	log := orchestrator.NewEventLog()
	var res orchestrator.ProcessResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.Close()
		res = lab.ProcessProject(gctx, text, orchestrator.WithEventLog(log))
		return nil
	})
	g.Go(func() error {
		phase := 0
		for e := range log.Subscribe(gctx) {
			if e.Type == orchestrator.EventStepStart && e.Progress == 0 {
				phase++
				fmt.Fprintln(w, headerStyle.Render(orchestrator.FormatPhaseHeader(name, phase, e.StepName)))
			}
			fmt.Fprintln(w, styleFor(e).Render(orchestrator.FormatProgress(e)))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return orchestrator.ProcessResult{}, err
	}
	return res, nil
}

func panelNames(roles []agent.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func styleFor(e orchestrator.Event) lipgloss.Style {
	switch e.Type {
	case orchestrator.EventError:
		return errorStyle
	case orchestrator.EventDecisionMade:
		return decisionStyle
	default:
		return faintStyle
	}
}

func printResult(w io.Writer, res orchestrator.ProcessResult) {
	fmt.Fprintln(w)
	facts := table.NewWriter()
	facts.SetOutputMirror(w)
	facts.SetTitle("Project facts")
	facts.AppendHeader(table.Row{"Target", "Timeline", "Budget", "Goal", "Confidence"})
	f := res.ExtractedFacts
	facts.AppendRow(table.Row{f.Target, f.Timeline, f.Budget, f.Goal, fmt.Sprintf("%.0f%%", f.Confidence*100)})
	facts.Render()

	if len(res.AgentInsights) > 0 {
		fmt.Fprintln(w)
		insights := table.NewWriter()
		insights.SetOutputMirror(w)
		insights.SetTitle("Expert panel")
		insights.AppendHeader(table.Row{"Expert", "Recommendation", "Confidence", "Key point"})
		roles := make([]string, 0, len(res.AgentInsights))
		for role := range res.AgentInsights {
			roles = append(roles, string(role))
		}
		slices.Sort(roles)
		for _, role := range roles {
			op := res.AgentInsights[agent.Role(role)]
			point := ""
			if len(op.Reasoning) > 0 {
				point = op.Reasoning[0]
			}
			insights.AppendRow(table.Row{role, op.Recommendation, fmt.Sprintf("%.0f%%", op.Confidence*100), point})
		}
		insights.Render()
	}

	if s := res.Strategy; s != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, decisionStyle.Render(fmt.Sprintf("Strategy: %s (%.0f%% confidence)", s.Title, s.Confidence*100)))
		for _, p := range s.Rationale {
			fmt.Fprintf(w, "  %s %s: %s\n", p.Icon, p.Label, p.Description)
		}
		if len(s.Candidates) > 0 {
			fmt.Fprintf(w, "  Candidates: %s\n", strings.Join(s.Candidates, ", "))
		}
	}

	if o := res.WorkflowOptions; o != nil {
		fmt.Fprintln(w)
		steps := table.NewWriter()
		steps.SetOutputMirror(w)
		steps.SetTitle("Workflow options")
		steps.AppendHeader(table.Row{"Step", "Required", "Selected", "Time", "Cost"})
		for _, s := range o.Steps {
			steps.AppendRow(table.Row{s.Name, yesNo(s.Required), yesNo(s.Selected), s.EstimatedTime, s.EstimatedCost})
		}
		steps.AppendFooter(table.Row{"Total (selected)", "", "", o.TotalEstimatedTime, o.TotalEstimatedCost})
		steps.Render()
		if wb := o.Constraints.WithinBudget; wb != nil {
			verdict := "within"
			if !*wb {
				verdict = "over"
			}
			fmt.Fprintf(w, "Budget %s: %s\n", o.BudgetAvailable, verdict)
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package orchestrator

import "fmt"

// FormatProgress formats an Event as a human-readable status line.
func FormatProgress(e Event) string {
	who := e.StepName
	if e.Agent != "" && e.Type == EventAgentThinking {
		who = string(e.Agent)
	}

	switch e.Type {
	case EventStepStart:
		return fmt.Sprintf("  ○ %s %s", formatPercent(e.Progress), e.StepName)
	case EventAgentThinking:
		return fmt.Sprintf("  ● %s %s...", formatPercent(e.Progress), who)
	case EventStepComplete:
		return fmt.Sprintf("  ✓ %s %s", formatPercent(e.Progress), e.StepName)
	case EventToolUsage:
		return fmt.Sprintf("  ⚙ %s %s", formatPercent(e.Progress), e.StepName)
	case EventDecisionMade:
		return fmt.Sprintf("  ★ %s %s: %s", formatPercent(e.Progress), e.StepName, e.Message)
	case EventError:
		return fmt.Sprintf("  ✗ %s %s failed: %s", formatPercent(e.Progress), e.StepName, e.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown event %q)", e.StepName, e.Type)
	}
}

// FormatPhaseHeader formats a phase header for display.
// Returns: "[{name}] Phase {N}: {title}"
func FormatPhaseHeader(name string, phase int, title string) string {
	return fmt.Sprintf("[%s] Phase %d: %s", name, phase, title)
}

func formatPercent(p float64) string {
	return fmt.Sprintf("[%3.0f%%]", p)
}

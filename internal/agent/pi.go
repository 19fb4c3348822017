package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dusk-indust/vlab/internal/completion"
)

// PIExpertise is the Principal Investigator's declared area of expertise.
const PIExpertise = "project management, strategic decision making, team synthesis"

// PrincipalInvestigator extracts facts from a brief and synthesizes the
// team's opinions into a strategy. It does not give an opinion of its own.
//
// Both operations degrade to a fixed fallback when the reply is not the
// requested JSON; a completion client failure is returned to the caller.
type PrincipalInvestigator struct {
	client completion.Client
	logger *slog.Logger
}

// PIOption configures a PrincipalInvestigator.
type PIOption func(*PrincipalInvestigator)

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l *slog.Logger) PIOption {
	return func(pi *PrincipalInvestigator) {
		if l != nil {
			pi.logger = l
		}
	}
}

// NewPrincipalInvestigator creates a PrincipalInvestigator.
func NewPrincipalInvestigator(client completion.Client, opts ...PIOption) *PrincipalInvestigator {
	pi := &PrincipalInvestigator{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(pi)
	}
	return pi
}

// Role returns RolePrincipalInvestigator.
func (pi *PrincipalInvestigator) Role() Role {
	return RolePrincipalInvestigator
}

// ExtractFacts asks for the brief's target, timeline, budget, goal and a
// confidence score.
func (pi *PrincipalInvestigator) ExtractFacts(ctx context.Context, brief string) (Facts, error) {
	resp, err := pi.client.Complete(ctx, extractionPrompt(brief))
	if err != nil {
		return Facts{}, fmt.Errorf("fact extraction failed: %w", err)
	}

	facts, err := DecodeFacts(resp)
	if err != nil {
		pi.logger.Warn("using fallback facts", "role", RolePrincipalInvestigator, "error", err)
		return FallbackFacts(), nil
	}
	return facts, nil
}

// SynthesizeStrategy weighs every collected opinion and returns the final
// recommendation.
func (pi *PrincipalInvestigator) SynthesizeStrategy(ctx context.Context, opinions []Opinion, brief string) (Strategy, error) {
	resp, err := pi.client.Complete(ctx, synthesisPrompt(opinions, brief))
	if err != nil {
		return Strategy{}, fmt.Errorf("strategy synthesis failed: %w", err)
	}

	strategy, err := DecodeStrategy(resp)
	if err != nil {
		pi.logger.Warn("using fallback strategy", "role", RolePrincipalInvestigator, "error", err)
		return FallbackStrategy(), nil
	}
	return strategy, nil
}

func extractionPrompt(brief string) string {
	return fmt.Sprintf(`You are a Principal Investigator with expertise in %s.
Extract key project data from this brief:

%s

Return ONLY valid JSON, no other text:
{"target": "specific target protein/antigen", "timeline": "duration", "budget": "amount", "goal": "objective", "confidence": 0.9}

If information is missing, use "Not specified" but still provide your best guess based on context.
`, PIExpertise, brief)
}

func synthesisPrompt(opinions []Opinion, brief string) string {
	var team strings.Builder
	for i, op := range opinions {
		if i > 0 {
			team.WriteString("\n\n")
		}
		fmt.Fprintf(&team, "%s (confidence %g): %s\nReasoning: %s", op.Role, op.Confidence, op.Recommendation, op.Analysis)
	}

	return fmt.Sprintf(`As Principal Investigator, synthesize your team's input into a final strategy recommendation.

ORIGINAL PROJECT:
%s

TEAM RECOMMENDATIONS:
%s

Based on team input, make final decision and return ONLY valid JSON:
{
  "title": "%s" or "%s",
  "rationale": [
    {"icon": "Clock", "label": "Timeline Match", "description": "team-based reasoning"},
    {"icon": "TrendingUp", "label": "Success Rate", "description": "team-based reasoning"},
    {"icon": "DollarSign", "label": "Budget Aligned", "description": "team-based reasoning"}
  ],
  "candidates": ["Ty1", "H11-D4", "Nb21", "VHH-72"] or [],
  "confidence": 0.85,
  "alternatives": [{"title": "Alternative approach", "why": "explanation"}]
}

Consider team consensus and weigh expert opinions appropriately.
`, brief, team.String(), ModifyExisting, DeNovo)
}

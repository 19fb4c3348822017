package agent

import (
	"context"
	"fmt"

	"github.com/dusk-indust/vlab/internal/completion"
)

// Compile-time interface check.
var _ Expert = (*BaseAgent)(nil)

// PromptFunc builds the role-specific prompt for one opinion request.
type PromptFunc func(a *BaseAgent, c Context) string

// BaseAgent provides the shared opinion flow for specialist agents: build the
// prompt, call the completion client once, parse the reply. Specialists
// differ only in role, expertise and prompt.
type BaseAgent struct {
	client    completion.Client
	parser    Parser
	role      Role
	expertise string
	prompt    PromptFunc
}

// NewBaseAgent creates a BaseAgent. A nil parser selects HeuristicParser.
func NewBaseAgent(client completion.Client, parser Parser, role Role, expertise string, prompt PromptFunc) *BaseAgent {
	if parser == nil {
		parser = HeuristicParser{}
	}
	return &BaseAgent{
		client:    client,
		parser:    parser,
		role:      role,
		expertise: expertise,
		prompt:    prompt,
	}
}

// Role returns the agent's lab role.
func (b *BaseAgent) Role() Role {
	return b.role
}

// Expertise returns the agent's declared area of expertise.
func (b *BaseAgent) Expertise() string {
	return b.expertise
}

// Prompt renders the prompt this agent would send for c.
func (b *BaseAgent) Prompt(c Context) string {
	return b.prompt(b, c)
}

// ProvideOpinion asks the completion client for this agent's analysis and
// parses the reply. A client failure is returned as is; there is no retry and
// no fallback opinion.
func (b *BaseAgent) ProvideOpinion(ctx context.Context, c Context) (Opinion, error) {
	resp, err := b.client.Complete(ctx, b.Prompt(c))
	if err != nil {
		return Opinion{}, fmt.Errorf("%s analysis failed: %w", b.role, err)
	}

	frag := b.parser.Parse(resp)
	return Opinion{
		Role:           b.role,
		Analysis:       resp,
		Recommendation: frag.Recommendation,
		Confidence:     frag.Confidence,
		Reasoning:      frag.Reasoning,
	}, nil
}

package agent

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies a member of the virtual lab.
type Role string

const (
	RolePrincipalInvestigator Role = "Principal Investigator"
	RoleImmunologist          Role = "Immunologist"
	RoleMLSpecialist          Role = "ML Specialist"
	RoleCompBiologist         Role = "Computational Biologist"
)

// Recommendation is the strategic direction an opinion or strategy argues for.
type Recommendation string

const (
	ModifyExisting Recommendation = "Modify Existing Nanobodies"
	DeNovo         Recommendation = "De Novo Design"
)

// Valid reports whether r is one of the two known recommendations.
func (r Recommendation) Valid() bool {
	return r == ModifyExisting || r == DeNovo
}

// Opinion is one expert's structured assessment of a brief. Analysis holds
// the raw completion text verbatim.
type Opinion struct {
	Role           Role           `json:"agent"`
	Analysis       string         `json:"analysis"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Reasoning      []string       `json:"reasoning"`
}

// Context is everything an expert sees when forming an opinion. Prior holds
// the opinions already collected in this session, in collection order.
type Context struct {
	Brief          string
	Prior          []Opinion
	ConfirmedFacts *Facts
}

// Expert is implemented by every opinion-giving agent.
type Expert interface {
	// Role returns the agent's lab role.
	Role() Role

	// Expertise describes the agent's declared area of expertise.
	Expertise() string

	// ProvideOpinion issues exactly one completion call and parses it.
	ProvideOpinion(ctx context.Context, c Context) (Opinion, error)
}

// renderPrior renders earlier opinions so later agents can read them.
func renderPrior(prior []Opinion) string {
	if len(prior) == 0 {
		return "(no prior discussion)"
	}
	var b strings.Builder
	for i, op := range prior {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s (recommends %s): %s", op.Role, op.Recommendation, op.Analysis)
	}
	return b.String()
}

// renderFacts renders confirmed facts for inclusion in a prompt.
func renderFacts(f *Facts) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("CONFIRMED PROJECT FACTS:\n- Target: %s\n- Timeline: %s\n- Budget: %s\n- Goal: %s\n",
		f.Target, f.Timeline, f.Budget, f.Goal)
}

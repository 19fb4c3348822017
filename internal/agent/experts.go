package agent

import (
	"fmt"

	"github.com/dusk-indust/vlab/internal/completion"
)

// Declared areas of expertise, embedded verbatim in each prompt.
const (
	ImmunologistExpertise  = "antibody biology, immune responses, target druggability, nanobody engineering"
	MLSpecialistExpertise  = "protein language models (ESM), structure prediction (AlphaFold), computational protein design"
	CompBiologistExpertise = "protein design workflows, molecular dynamics, Rosetta, experimental validation"
)

// NewImmunologist creates the agent that judges target biology and whether
// usable nanobodies already exist.
func NewImmunologist(client completion.Client, parser Parser) *BaseAgent {
	return NewBaseAgent(client, parser, RoleImmunologist, ImmunologistExpertise, immunologistPrompt)
}

// NewMLSpecialist creates the agent that judges computational feasibility.
func NewMLSpecialist(client completion.Client, parser Parser) *BaseAgent {
	return NewBaseAgent(client, parser, RoleMLSpecialist, MLSpecialistExpertise, mlSpecialistPrompt)
}

// NewCompBiologist creates the agent that judges practical implementation.
func NewCompBiologist(client completion.Client, parser Parser) *BaseAgent {
	return NewBaseAgent(client, parser, RoleCompBiologist, CompBiologistExpertise, compBiologistPrompt)
}

func immunologistPrompt(a *BaseAgent, c Context) string {
	return fmt.Sprintf(`You are an Immunologist with expertise in %s.

PROJECT BRIEF:
%s

%s
PREVIOUS TEAM DISCUSSION:
%s

From your immunology perspective, analyze:
1. Target biology and druggability
2. Likelihood existing nanobodies exist for this target
3. Therapeutic vs research tool considerations
4. Your recommendation: "%s" or "%s"

Format your response with:
- Clear analysis of the immunology aspects
- Your recommendation with reasoning
- Confidence level (0.0-1.0), written as "Confidence: <value>"
- Key considerations for the team, one per line starting with "- "
`, a.Expertise(), c.Brief, renderFacts(c.ConfirmedFacts), renderPrior(c.Prior), ModifyExisting, DeNovo)
}

func mlSpecialistPrompt(a *BaseAgent, c Context) string {
	return fmt.Sprintf(`You are an ML Specialist with expertise in %s.

PROJECT BRIEF:
%s

%s
PREVIOUS TEAM DISCUSSION:
%s

From your ML/computational perspective, analyze:
1. Computational feasibility given timeline and budget
2. Available tools (ESM, AlphaFold, Rosetta) suitability
3. Data requirements and availability
4. Your recommendation: "%s" or "%s"

Consider that modification requires existing scaffolds while de novo needs more compute.
State "Confidence: <value between 0.0 and 1.0>" and list key points as lines starting with "- ".
`, a.Expertise(), c.Brief, renderFacts(c.ConfirmedFacts), renderPrior(c.Prior), ModifyExisting, DeNovo)
}

func compBiologistPrompt(a *BaseAgent, c Context) string {
	return fmt.Sprintf(`You are a Computational Biologist with expertise in %s.

PROJECT BRIEF:
%s

%s
PREVIOUS TEAM DISCUSSION:
%s

From your computational implementation perspective, analyze:
1. Workflow design and implementation feasibility
2. Resource requirements (compute, time, expertise)
3. Expected success rates for different approaches
4. Your recommendation: "%s" or "%s"

Focus on practical implementation and what's actually achievable.
State "Confidence: <value between 0.0 and 1.0>" and list key points as lines starting with "- ".
`, a.Expertise(), c.Brief, renderFacts(c.ConfirmedFacts), renderPrior(c.Prior), ModifyExisting, DeNovo)
}

// Package workflow turns a synthesized strategy and the confirmed project
// facts into a priced, selectable list of execution steps.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/vlab/internal/agent"
)

// ErrInvalidSelection is returned when a selection names a step that is not
// in the catalog.
var ErrInvalidSelection = errors.New("invalid workflow selection")

// Step is one selectable unit of downstream work.
type Step struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Required      bool   `json:"required"`
	Selected      bool   `json:"selected"`
	EstimatedTime string `json:"estimated_time"`
	EstimatedCost string `json:"estimated_cost"`
	Rounds        int    `json:"rounds,omitempty"`
}

// Constraints echoes the confirmed facts the options were priced against.
// WithinBudget is set only when the budget text could be parsed.
type Constraints struct {
	Timeline     string `json:"timeline"`
	Budget       string `json:"budget"`
	Target       string `json:"target"`
	WithinBudget *bool  `json:"within_budget,omitempty"`
}

// Options is the generator's output, presented to the caller at the workflow
// selection checkpoint.
type Options struct {
	Steps              []Step      `json:"steps"`
	TotalEstimatedCost string      `json:"total_estimated_cost"`
	TotalEstimatedTime string      `json:"total_estimated_time"`
	BudgetAvailable    string      `json:"budget_available"`
	Constraints        Constraints `json:"constraints"`
}

// Catalog returns the fixed, ordered step catalog with its default
// selections. Only in-vitro validation is opt-in.
func Catalog() []Step {
	return []Step{
		{
			ID:            "fetch_candidates",
			Name:          "Fetch Candidate Nanobodies",
			Description:   "Retrieve known binders for the target from structural databases and literature",
			Required:      true,
			Selected:      true,
			EstimatedTime: "5 min",
			EstimatedCost: "$0",
		},
		{
			ID:            "filter_candidates",
			Name:          "Filter Candidates",
			Description:   "Filter by epitope overlap, developability and sequence liabilities",
			Required:      true,
			Selected:      true,
			EstimatedTime: "2 min",
			EstimatedCost: "$0",
		},
		{
			ID:            "affinity_prediction",
			Name:          "Affinity Prediction",
			Description:   "Score binding affinity with protein language model embeddings",
			Selected:      true,
			EstimatedTime: "30 min",
			EstimatedCost: "$50",
		},
		{
			ID:            "structure_prediction",
			Name:          "Structure Prediction",
			Description:   "Predict nanobody-antigen complexes with AlphaFold",
			Selected:      true,
			EstimatedTime: "2 hours",
			EstimatedCost: "$200",
		},
		{
			ID:            "affinity_maturation",
			Name:          "Affinity Maturation",
			Description:   "Run in silico mutation rounds and re-score with Rosetta",
			Selected:      true,
			EstimatedTime: "4 hours",
			EstimatedCost: "$100",
			Rounds:        3,
		},
		{
			ID:            "in_vitro_validation",
			Name:          "In Vitro Validation",
			Description:   "Express the top binders and measure affinity in the lab",
			Selected:      false,
			EstimatedTime: "2-3 weeks",
			EstimatedCost: "$5,000",
		},
	}
}

// BuildOptions prices the catalog against the confirmed facts. The strategy
// does not currently change which steps are offered or their defaults.
func BuildOptions(_ agent.Strategy, facts agent.Facts) Options {
	steps := Catalog()
	total := TotalCost(steps)

	c := Constraints{
		Timeline: facts.Timeline,
		Budget:   facts.Budget,
		Target:   facts.Target,
	}
	if budget, ok := ParseBudget(facts.Budget); ok {
		within := float64(total) <= budget
		c.WithinBudget = &within
	}

	return Options{
		Steps:              steps,
		TotalEstimatedCost: FormatCost(total),
		TotalEstimatedTime: TotalTime(steps),
		BudgetAvailable:    facts.Budget,
		Constraints:        c,
	}
}

// Finalize keeps the catalog steps named in selected plus every required
// step, in catalog order, and marks them all selected. Unknown ids fail with
// ErrInvalidSelection.
func Finalize(steps []Step, selected []string) ([]Step, error) {
	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}

	want := make(map[string]bool, len(selected))
	var unknown []string
	for _, id := range selected {
		if !known[id] {
			unknown = append(unknown, id)
			continue
		}
		want[id] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown step(s) %s", ErrInvalidSelection, strings.Join(unknown, ", "))
	}

	final := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s.Required || want[s.ID] {
			s.Selected = true
			final = append(final, s)
		}
	}
	return final, nil
}

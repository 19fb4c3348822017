package agent

import (
	"sync"

	"github.com/dusk-indust/vlab/internal/completion"
)

// ExpertFactory is a constructor that creates an Expert.
type ExpertFactory func(client completion.Client, parser Parser) Expert

// Registry maps expert roles to their constructors and remembers the order in
// which the panel speaks. Each expert sees the opinions of everyone before it,
// so the order is part of the contract.
type Registry struct {
	mu        sync.Mutex
	factories map[Role]ExpertFactory
	order     []Role
}

// NewRegistry creates a Registry pre-registered with the standard panel:
// Immunologist, ML Specialist, Computational Biologist.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[Role]ExpertFactory),
	}
	r.Register(RoleImmunologist, func(c completion.Client, p Parser) Expert { return NewImmunologist(c, p) })
	r.Register(RoleMLSpecialist, func(c completion.Client, p Parser) Expert { return NewMLSpecialist(c, p) })
	r.Register(RoleCompBiologist, func(c completion.Client, p Parser) Expert { return NewCompBiologist(c, p) })
	return r
}

// Register adds or replaces the factory for role. New roles speak last.
func (r *Registry) Register(role Role, factory ExpertFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[role]; !ok {
		r.order = append(r.order, role)
	}
	r.factories[role] = factory
}

// Roles returns the registered roles in speaking order.
func (r *Registry) Roles() []Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Role(nil), r.order...)
}

// Panel creates every registered expert in speaking order.
func (r *Registry) Panel(client completion.Client, parser Parser) []Expert {
	r.mu.Lock()
	defer r.mu.Unlock()

	panel := make([]Expert, 0, len(r.order))
	for _, role := range r.order {
		panel = append(panel, r.factories[role](client, parser))
	}
	return panel
}

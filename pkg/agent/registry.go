package agent

import "fmt"

// Registry holds the analyzers and the predictor for one orchestrator
// instance. Registration happens once at startup; after that the registry
// is read-only, so no locking.
//
// Insertion order is preserved: the collaboration_started agent list and
// the launch order follow registration order.
type Registry struct {
	analyzers []Analyzer
	byID      map[string]Analyzer
	predictor Predictor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Analyzer)}
}

// RegisterAnalyzer adds an analyzer. Duplicate ids are a wiring bug and fail.
func (r *Registry) RegisterAnalyzer(a Analyzer) error {
	if a == nil {
		return fmt.Errorf("analyzer must not be nil")
	}
	id := a.ID()
	if id == "" {
		return fmt.Errorf("analyzer id must not be empty")
	}
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("analyzer %q already registered", id)
	}
	r.byID[id] = a
	r.analyzers = append(r.analyzers, a)
	return nil
}

// SetPredictor installs the predictor. At most one predictor is supported.
func (r *Registry) SetPredictor(p Predictor) error {
	if p == nil {
		return fmt.Errorf("predictor must not be nil")
	}
	if r.predictor != nil {
		return fmt.Errorf("predictor %q already registered", r.predictor.ID())
	}
	r.predictor = p
	return nil
}

// Analyzers returns the registered analyzers in registration order.
// The returned slice must not be mutated.
func (r *Registry) Analyzers() []Analyzer {
	return r.analyzers
}

// Analyzer looks up one analyzer by id.
func (r *Registry) Analyzer(id string) (Analyzer, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// Predictor returns the installed predictor, or nil when none is wired.
func (r *Registry) Predictor() Predictor {
	return r.predictor
}

// AgentIDs lists analyzer ids plus the predictor id, in launch order.
// This is the agent roster announced in collaboration_started.
func (r *Registry) AgentIDs() []string {
	ids := make([]string, 0, len(r.analyzers)+1)
	for _, a := range r.analyzers {
		ids = append(ids, a.ID())
	}
	if r.predictor != nil {
		ids = append(ids, r.predictor.ID())
	}
	return ids
}

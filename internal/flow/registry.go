package flow

import "fmt"

// Registry holds the flow definitions available to the engine. It is built
// once at startup and never mutated afterwards, so reads need no locking.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry validates and indexes the given definitions. It panics on a
// malformed definition since flows are wired at startup.
func NewRegistry(defs ...*Definition) *Registry {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, def := range defs {
		if err := validateDefinition(def); err != nil {
			panic(fmt.Sprintf("flow: invalid definition: %v", err))
		}
		if _, dup := r.defs[def.ID]; dup {
			panic(fmt.Sprintf("flow: duplicate definition %q", def.ID))
		}
		r.defs[def.ID] = def
	}
	return r
}

// Get returns the definition for the given flow type.
func (r *Registry) Get(flowType string) (*Definition, bool) {
	def, ok := r.defs[flowType]
	return def, ok
}

func validateDefinition(def *Definition) error {
	if def == nil {
		return fmt.Errorf("nil definition")
	}
	if def.ID == "" {
		return fmt.Errorf("definition without id")
	}
	if def.Timeout <= 0 {
		return fmt.Errorf("%s: timeout must be positive", def.ID)
	}
	if _, ok := def.Steps[def.Entry]; !ok {
		return fmt.Errorf("%s: entry step %q not defined", def.ID, def.Entry)
	}
	for id, step := range def.Steps {
		if step.ID != id {
			return fmt.Errorf("%s: step key %q does not match step id %q", def.ID, id, step.ID)
		}
		if step.Prompt == nil {
			return fmt.Errorf("%s: step %q has no prompt", def.ID, id)
		}
	}
	return nil
}

package forge

import (
	"maps"
	"slices"
)

// ScenarioOverride is one entry of a scenario: a template reference and the
// partial attribute overrides applied to it.
type ScenarioOverride struct {
	Ref   Ref
	Attrs map[string]any
}

// Scenario is a named override composition over one or more templates. A
// scenario may inherit from parent scenarios via Extends; parents are
// resolved depth-first in declaration order and the child's overrides win
// key by key. Scenario definitions are immutable once registered; resolution
// produces a fresh flattened override set.
type Scenario struct {
	// Name identifies the scenario.
	Name string
	// Extends lists parent scenario names, applied in order before the
	// scenario's own overrides.
	Extends []string
	// Overrides is the ordered override list.
	Overrides []ScenarioOverride
}

func (s *Scenario) clone() *Scenario {
	c := &Scenario{
		Name:      s.Name,
		Extends:   slices.Clone(s.Extends),
		Overrides: make([]ScenarioOverride, len(s.Overrides)),
	}
	for i, o := range s.Overrides {
		c.Overrides[i] = ScenarioOverride{Ref: o.Ref, Attrs: maps.Clone(o.Attrs)}
	}
	return c
}

// RegisterScenarios registers scenario definitions. A scenario with a name
// already present replaces the previous definition. Registration invalidates
// memoized resolutions since flattened results may change.
func (s *Store) RegisterScenarios(scenarios ...*Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerScenariosLocked(scenarios)
}

func (s *Store) registerScenariosLocked(scenarios []*Scenario) {
	for _, sc := range scenarios {
		s.scenarios[sc.Name] = sc.clone()
	}
	if len(scenarios) > 0 {
		s.scache.Clear()
	}
}

// Scenario returns the registered scenario definition.
func (s *Store) Scenario(name string) (*Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[name]
	return sc, ok
}

// ResolveScenario flattens the named scenario with its inheritance applied:
// parents are resolved depth-first, the child's attribute overrides win key
// by key, templates referenced only by a parent are inherited verbatim.
// Every referenced template must exist in the store (after lazy discovery)
// or an UnknownScenarioReferenceError is returned. Results are memoized per
// scenario name until the store changes.
func (s *Store) ResolveScenario(name string) (*Overrides, error) {
	ov, err := s.resolveScenario(name, nil)
	if err != nil {
		return nil, err
	}
	return ov.Clone(), nil
}

func (s *Store) resolveScenario(name string, path []string) (*Overrides, error) {
	if i := slices.Index(path, name); i >= 0 {
		cycle := append(slices.Clone(path[i:]), name)
		return nil, NewCircularExtensionError(cycle)
	}
	if v, ok := s.scache.Get(name); ok {
		return v.(*Overrides), nil
	}
	sc, ok := s.Scenario(name)
	if !ok {
		return nil, NewUnknownScenarioError(name)
	}
	out := NewOverrides()
	path = append(path, name)
	for _, parent := range sc.Extends {
		pov, err := s.resolveScenario(parent, path)
		if err != nil {
			return nil, err
		}
		out.Merge(pov)
	}
	for _, o := range sc.Overrides {
		tpl, err := s.resolve(o.Ref)
		if err != nil {
			return nil, NewUnknownScenarioReferenceError(name, o.Ref.Kind, o.Ref.Name)
		}
		out.Set(tpl.Ref(), o.Attrs)
	}
	s.scache.Set(name, out)
	return out, nil
}

package forge

import (
	"log/slog"
	"sync"

	"github.com/syssam/forge/schema"
)

// DiscoverFunc lazily supplies definitions for a kind the store has not seen
// yet. It returns the templates and scenarios authored for that kind; both
// may be empty when the kind has no definitions.
type DiscoverFunc func(kind string) ([]*Template, []*Scenario, error)

// kindSet holds one kind's templates in registration order.
type kindSet struct {
	order  []string
	byName map[string]*Template
}

func newKindSet() *kindSet {
	return &kindSet{byName: make(map[string]*Template)}
}

func (ks *kindSet) clone() *kindSet {
	c := &kindSet{
		order:  make([]string, len(ks.order)),
		byName: make(map[string]*Template, len(ks.byName)),
	}
	copy(c.order, ks.order)
	for n, t := range ks.byName {
		c.byName[n] = t
	}
	return c
}

func (ks *kindSet) put(t *Template) {
	if _, ok := ks.byName[t.Name]; !ok {
		ks.order = append(ks.order, t.Name)
	}
	ks.byName[t.Name] = t
}

// Store owns the mapping of (Kind, Name) to template definitions. It is an
// explicit, injectable value: independent stores never share state, so test
// runs can isolate their registries completely. All mutation is serialized
// behind a single mutex; runs that only read may proceed concurrently.
type Store struct {
	mu         sync.RWMutex
	provider   schema.Provider
	discover   DiscoverFunc
	logger     *slog.Logger
	kinds      map[string]*kindSet
	kindOrder  []string
	scenarios  map[string]*Scenario
	scache     Cache
	discovered map[string]bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDiscovery installs a lazy discovery hook. When a lookup names a kind
// that has never been registered, the store invokes the hook for that kind
// and for every sibling kind sharing its schema group, and registers
// whatever definitions come back.
func WithDiscovery(fn DiscoverFunc) StoreOption {
	return func(s *Store) { s.discover = fn }
}

// WithScenarioCache replaces the default scenario memoization cache.
func WithScenarioCache(c Cache) StoreOption {
	return func(s *Store) { s.scache = c }
}

// WithStoreLogger sets the logger used for registration and discovery
// events. Defaults to slog.Default.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore returns an empty Store describing its host schema through
// provider.
func NewStore(provider schema.Provider, opts ...StoreOption) *Store {
	s := &Store{
		provider:   provider,
		logger:     slog.Default(),
		kinds:      make(map[string]*kindSet),
		scenarios:  make(map[string]*Scenario),
		scache:     NewCache(),
		discovered: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the host schema provider.
func (s *Store) Provider() schema.Provider {
	return s.provider
}

// Register merges the given templates into the store, then checks the entire
// updated dependency graph for cycles. If a cycle is found the whole batch
// is rejected and the store is left unchanged; the returned
// CircularDependencyError carries the full cycle path.
func (s *Store) Register(templates ...*Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(templates)
}

func (s *Store) registerLocked(templates []*Template) error {
	// Build the candidate state first; nothing is committed until the
	// cycle check over the whole updated graph passes.
	candidate := make(map[string]*kindSet, len(s.kinds))
	for k, ks := range s.kinds {
		candidate[k] = ks
	}
	order := append([]string(nil), s.kindOrder...)
	for _, t := range templates {
		ks, ok := candidate[t.Kind]
		if !ok {
			ks = newKindSet()
			candidate[t.Kind] = ks
			order = append(order, t.Kind)
		} else if ks == s.kinds[t.Kind] {
			ks = ks.clone()
			candidate[t.Kind] = ks
		}
		ks.put(t.clone())
	}
	if err := detectCycles(s.stateNodes(candidate, order), s.stateEdges(candidate)); err != nil {
		return err
	}
	s.kinds = candidate
	s.kindOrder = order
	s.scache.Clear()
	s.logger.Debug("forge: templates registered", "count", len(templates))
	return nil
}

// stateNodes returns every reference in the candidate state, in kind then
// name registration order.
func (s *Store) stateNodes(state map[string]*kindSet, order []string) []Ref {
	var refs []Ref
	for _, kind := range order {
		ks := state[kind]
		for _, name := range ks.order {
			refs = append(refs, Ref{Kind: kind, Name: name})
		}
	}
	return refs
}

// stateEdges returns the dependency-edge function over a candidate state.
// Edges are derived by scanning template attributes against the host
// schema's relation set: an explicit Ref value always forms an edge, a bare
// string forms an edge only when a template with that name exists for the
// relation's destination kind, so literals that happen to look like
// references stay inert.
func (s *Store) stateEdges(state map[string]*kindSet) func(Ref) []Ref {
	return func(r Ref) []Ref {
		ks, ok := state[r.Kind]
		if !ok {
			return nil
		}
		t, ok := ks.byName[r.Name]
		if !ok {
			return nil
		}
		return templateEdges(s.provider, t, nil, func(kind, name string) bool {
			ks, ok := state[kind]
			if !ok {
				return false
			}
			_, ok = ks.byName[name]
			return ok
		})
	}
}

// templateEdges derives the dependency edges of a template, with override
// attributes (if any) taking the place of base values and override-only keys
// appended in lexical order. exists answers whether a (kind, name) template
// is registered, for the bare-string case.
func templateEdges(provider schema.Provider, t *Template, override map[string]any, exists func(kind, name string) bool) []Ref {
	kind, ok := provider.Kind(t.Kind)
	if !ok {
		return nil
	}
	var edges []Ref
	seen := make(map[string]bool, len(t.Attrs))
	addEdge := func(key string, value any) {
		rel, ok := kind.Relation(key)
		if !ok {
			return
		}
		switch v := value.(type) {
		case Ref:
			target := v.Kind
			if target == "" {
				target = rel.Target
			}
			edges = append(edges, Ref{Kind: target, Name: v.Name})
		case string:
			if exists(rel.Target, v) {
				edges = append(edges, Ref{Kind: rel.Target, Name: v})
			}
		}
	}
	for _, a := range t.Attrs {
		seen[a.Key] = true
		value := a.Value
		if ov, ok := override[a.Key]; ok {
			value = ov
		}
		addEdge(a.Key, value)
	}
	for _, key := range sortedKeys(override) {
		if !seen[key] {
			addEdge(key, override[key])
		}
	}
	return edges
}

// Get returns the template registered under (kind, name).
//
// Two fallbacks apply on a miss. First, if the kind has never been seen and
// a discovery hook is installed, the store discovers the kind together with
// every sibling kind in its schema group, so cross-kind references resolve
// without explicit pre-registration. Second, if the name exists under
// exactly one other kind the reference is rebound to it; with the name
// present under several kinds the first registered kind wins, which is a
// documented best-effort convenience, not a guarantee.
func (s *Store) Get(kind, name string) (*Template, error) {
	s.mu.RLock()
	t, ok := s.lookupLocked(kind, name)
	s.mu.RUnlock()
	if ok {
		return t, nil
	}
	return s.getSlow(kind, name)
}

func (s *Store) lookupLocked(kind, name string) (*Template, bool) {
	if ks, ok := s.kinds[kind]; ok {
		if t, ok := ks.byName[name]; ok {
			return t, true
		}
	}
	return nil, false
}

func (s *Store) getSlow(kind, name string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.lookupLocked(kind, name); ok {
		return t, nil
	}
	if err := s.discoverLocked(kind); err != nil {
		return nil, err
	}
	if t, ok := s.lookupLocked(kind, name); ok {
		return t, nil
	}
	// Cross-kind rebinding: first registered kind defining the name wins.
	for _, k := range s.kindOrder {
		if t, ok := s.kinds[k].byName[name]; ok {
			return t, nil
		}
	}
	return nil, NewTemplateNotFoundError(kind, name, s.knownLocked())
}

// discoverLocked runs the lazy discovery hook for kind and its schema-group
// siblings. Each kind is attempted at most once per store lifetime.
func (s *Store) discoverLocked(kind string) error {
	if s.discover == nil {
		return nil
	}
	names := []string{kind}
	if k, ok := s.provider.Kind(kind); ok && k.Group != "" {
		for _, sibling := range s.provider.Group(k.Group) {
			if sibling.Name != kind {
				names = append(names, sibling.Name)
			}
		}
	}
	for _, n := range names {
		if s.discovered[n] {
			continue
		}
		s.discovered[n] = true
		templates, scenarios, err := s.discover(n)
		if err != nil {
			return err
		}
		if len(templates) > 0 {
			if err := s.registerLocked(templates); err != nil {
				return err
			}
		}
		s.registerScenariosLocked(scenarios)
		if len(templates) > 0 || len(scenarios) > 0 {
			s.logger.Debug("forge: kind discovered", "kind", n,
				"templates", len(templates), "scenarios", len(scenarios))
		}
	}
	return nil
}

// resolve returns the template for a reference. A reference with an empty
// kind is resolved purely by name across all registered kinds.
func (s *Store) resolve(ref Ref) (*Template, error) {
	if ref.Kind != "" {
		return s.Get(ref.Kind, ref.Name)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.kindOrder {
		if t, ok := s.kinds[k].byName[ref.Name]; ok {
			return t, nil
		}
	}
	return nil, NewTemplateNotFoundError(ref.Kind, ref.Name, s.knownLocked())
}

// has reports whether (kind, name) is registered, without triggering
// discovery.
func (s *Store) has(kind, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookupLocked(kind, name)
	return ok
}

// List returns the kind's templates in registration order.
func (s *Store) List(kind string) []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ks, ok := s.kinds[kind]
	if !ok {
		return nil
	}
	templates := make([]*Template, 0, len(ks.order))
	for _, name := range ks.order {
		templates = append(templates, ks.byName[name])
	}
	return templates
}

// Refs returns every registered reference in registration order.
func (s *Store) Refs() []Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.knownLocked()
}

func (s *Store) knownLocked() []Ref {
	return s.stateNodes(s.kinds, s.kindOrder)
}

// Clear removes every template and scenario and forgets discovery state.
// It is used between isolated test runs.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = make(map[string]*kindSet)
	s.kindOrder = nil
	s.scenarios = make(map[string]*Scenario)
	s.discovered = make(map[string]bool)
	s.scache.Clear()
}

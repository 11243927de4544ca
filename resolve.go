package forge

import (
	"sync"

	"github.com/syssam/forge/schema"
)

// Resolved is the final attribute set of one creation step: the template's
// base attributes overlaid with the composed overrides, references
// substituted and generators evaluated. It distinguishes keys explicitly
// overridden to nil from keys never mentioned, so downstream validation can
// tell "must be absent" apart from "left at default".
type Resolved struct {
	kind    string
	name    string
	order   []string
	values  map[string]any
	nils    map[string]bool
	virtual map[string]bool
}

// Kind returns the kind being created.
func (r *Resolved) Kind() string { return r.kind }

// Name returns the template name being created.
func (r *Resolved) Name() string { return r.name }

// Keys returns every attribute key in resolution order, including keys
// explicitly set to nil.
func (r *Resolved) Keys() []string { return r.order }

// Value returns the attribute value. Explicitly nil keys report ok=true
// with a nil value.
func (r *Resolved) Value(key string) (any, bool) {
	if r.nils[key] {
		return nil, true
	}
	v, ok := r.values[key]
	return v, ok
}

// ExplicitNil reports whether the key was explicitly overridden to nil,
// which is observably different from the key not being mentioned.
func (r *Resolved) ExplicitNil(key string) bool { return r.nils[key] }

// Virtual reports whether the key bypasses host schema checks.
func (r *Resolved) Virtual(key string) bool { return r.virtual[key] }

// Set stores or replaces an attribute value. Setting a key clears its
// explicit-nil mark.
func (r *Resolved) Set(key string, v any) {
	if _, ok := r.values[key]; !ok && !r.nils[key] {
		r.order = append(r.order, key)
	}
	delete(r.nils, key)
	r.values[key] = v
}

// Delete removes an attribute entirely.
func (r *Resolved) Delete(key string) {
	delete(r.values, key)
	delete(r.nils, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Map returns the attributes as a plain map in no particular order,
// excluding explicitly nil keys. It is the payload handed to creation
// operations.
func (r *Resolved) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

func (r *Resolved) setNil(key string) {
	if _, ok := r.values[key]; !ok && !r.nils[key] {
		r.order = append(r.order, key)
	}
	delete(r.values, key)
	r.nils[key] = true
}

// seqKey keys a generator sequence counter.
type seqKey struct {
	kind string
	name string
	attr string
}

// sequences hands out per-(Kind, Name, Attr) monotonic indexes: 0, 1, 2...
// Counters survive across runs of the same engine and reset only on an
// explicit call.
type sequences struct {
	mu       sync.Mutex
	counters map[seqKey]int
}

func newSequences() *sequences {
	return &sequences{counters: make(map[seqKey]int)}
}

func (s *sequences) next(k seqKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counters[k]
	s.counters[k] = n + 1
	return n
}

func (s *sequences) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[seqKey]int)
}

// createdSet accumulates the entities created during one run, in plan
// order. Entities are indexed by the template reference that produced them
// and, when a custom creation function returns a value reporting a
// different concrete kind, under that kind as well.
type createdSet struct {
	order    []Ref
	entities map[Ref]any
}

// Kinder is implemented by entity values that know their own kind. A custom
// creation function may return an entity of a different concrete kind than
// the template requested; implementing Kinder makes the entity addressable
// under the actual kind too.
type Kinder interface {
	Kind() string
}

func newCreatedSet() *createdSet {
	return &createdSet{entities: make(map[Ref]any)}
}

func (c *createdSet) add(ref Ref, entity any) {
	if _, ok := c.entities[ref]; !ok {
		c.order = append(c.order, ref)
	}
	c.entities[ref] = entity
	if k, ok := entity.(Kinder); ok && k.Kind() != ref.Kind {
		alias := Ref{Kind: k.Kind(), Name: ref.Name}
		if _, ok := c.entities[alias]; !ok {
			c.order = append(c.order, alias)
		}
		c.entities[alias] = entity
	}
}

func (c *createdSet) get(ref Ref) (any, bool) {
	e, ok := c.entities[ref]
	return e, ok
}

// byName returns the first created entity (in plan order) whose reference
// carries the given name, regardless of kind. Used as a best-effort
// fallback after cross-kind rebinding.
func (c *createdSet) byName(name string) (Ref, any, bool) {
	for _, r := range c.order {
		if r.Name == name {
			return r, c.entities[r], true
		}
	}
	return Ref{}, nil, false
}

func (c *createdSet) result() map[Ref]any {
	m := make(map[Ref]any, len(c.entities))
	for r, e := range c.entities {
		m[r] = e
	}
	return m
}

// resolveStep builds the Resolved attribute set for one template: overlay
// the composed override on the base map, evaluate generators, and
// substitute references against the created set.
//
// Substitution is hardened: only attributes the host schema declares as
// relations are ever rewritten, and a reference-shaped value whose target
// has not been created in this run is left unchanged. That keeps literal
// enum-like strings that collide with reference syntax intact and prevents
// accidental type coercion on non-relation attributes.
func resolveStep(kind *schema.Kind, t *Template, override map[string]any, created *createdSet, seqs *sequences, handle func(kindName string, entity any) any) *Resolved {
	r := &Resolved{
		kind:    t.Kind,
		name:    t.Name,
		values:  make(map[string]any, len(t.Attrs)+len(override)),
		nils:    make(map[string]bool),
		virtual: make(map[string]bool, len(t.Virtual)),
	}
	for _, k := range t.Virtual {
		r.virtual[k] = true
	}
	assign := func(key string, v any) {
		if v == nil {
			r.setNil(key)
		} else {
			r.Set(key, v)
		}
	}
	seen := make(map[string]bool, len(t.Attrs))
	for _, a := range t.Attrs {
		seen[a.Key] = true
		if ov, ok := override[a.Key]; ok {
			assign(a.Key, ov)
		} else {
			r.Set(a.Key, a.Value)
		}
	}
	for _, key := range sortedKeys(override) {
		if !seen[key] {
			assign(key, override[key])
		}
	}
	for _, key := range r.Keys() {
		v, ok := r.Value(key)
		if !ok || v == nil {
			continue
		}
		if g, ok := v.(Generator); ok {
			v = evalGenerator(g, t, key, seqs)
			r.Set(key, v)
		}
		rel, isRel := relationOf(kind, key)
		if !isRel {
			continue
		}
		if sub, ok := substitute(v, rel, created, handle); ok {
			r.Set(key, sub)
		}
	}
	return r
}

func relationOf(kind *schema.Kind, attr string) (schema.Relation, bool) {
	if kind == nil {
		return schema.Relation{}, false
	}
	return kind.Relation(attr)
}

// substitute resolves a reference-shaped value on a relation attribute
// against the created set, returning the strategy's resolution handle.
func substitute(v any, rel schema.Relation, created *createdSet, handle func(kindName string, entity any) any) (any, bool) {
	var target Ref
	switch ref := v.(type) {
	case Ref:
		target = ref
		if target.Kind == "" {
			target.Kind = rel.Target
		}
	case string:
		target = Ref{Kind: rel.Target, Name: ref}
	default:
		return nil, false
	}
	if e, ok := created.get(target); ok {
		return handle(target.Kind, e), true
	}
	// Best effort after cross-kind rebinding: the entity may have been
	// created under another kind.
	if r, e, ok := created.byName(target.Name); ok {
		return handle(r.Kind, e), true
	}
	return nil, false
}

// evalGenerator runs a computed-value descriptor with its sequence index and
// call context.
func evalGenerator(g Generator, t *Template, attr string, seqs *sequences) any {
	if g.Fn == nil {
		return nil
	}
	return g.Fn(Call{
		Kind: t.Kind,
		Name: t.Name,
		Attr: attr,
		Seq:  seqs.next(seqKey{kind: t.Kind, name: t.Name, attr: attr}),
		Args: g.Args,
	})
}

package forge

import (
	"maps"
	"sort"
)

// Overrides maps template references to partial attribute overrides. It
// preserves the order references were first added in, which keeps expansion
// and scheduling deterministic. The zero value is not usable; construct with
// NewOverrides.
type Overrides struct {
	order []Ref
	attrs map[Ref]map[string]any
}

// NewOverrides returns an empty override set.
func NewOverrides() *Overrides {
	return &Overrides{attrs: make(map[Ref]map[string]any)}
}

// Set merges the given attribute overrides for ref, key by key, with the
// incoming values winning. A key explicitly set to nil is kept and recorded
// as an explicit nil at resolution time; that is different from the key not
// being mentioned at all.
func (o *Overrides) Set(ref Ref, attrs map[string]any) {
	existing, ok := o.attrs[ref]
	if !ok {
		o.order = append(o.order, ref)
		existing = make(map[string]any, len(attrs))
		o.attrs[ref] = existing
	}
	maps.Copy(existing, attrs)
}

// Get returns the composed overrides for ref.
func (o *Overrides) Get(ref Ref) (map[string]any, bool) {
	m, ok := o.attrs[ref]
	return m, ok
}

// Refs returns the referenced templates in first-added order.
func (o *Overrides) Refs() []Ref {
	return o.order
}

// Len returns the number of referenced templates.
func (o *Overrides) Len() int {
	return len(o.order)
}

// Merge merges other into o: for each template referenced by both, other's
// attribute overrides win key by key; templates referenced only by other are
// appended.
func (o *Overrides) Merge(other *Overrides) {
	if other == nil {
		return
	}
	for _, ref := range other.order {
		o.Set(ref, other.attrs[ref])
	}
}

// Clone returns a deep copy.
func (o *Overrides) Clone() *Overrides {
	c := &Overrides{
		order: make([]Ref, len(o.order)),
		attrs: make(map[Ref]map[string]any, len(o.attrs)),
	}
	copy(c.order, o.order)
	for ref, m := range o.attrs {
		c.attrs[ref] = maps.Clone(m)
	}
	return c
}

// sortedKeys returns the keys of an override map in lexical order. Override
// maps are unordered; sorting keeps appended attribute order reproducible.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

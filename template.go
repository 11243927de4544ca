package forge

import (
	"fmt"
	"strings"
)

// Ref is a symbolic reference to a template, identified by Kind and Name.
// The zero value is invalid.
type Ref struct {
	Kind string
	Name string
}

// NewRef returns a Ref for the given kind and name.
func NewRef(kind, name string) Ref {
	return Ref{Kind: kind, Name: name}
}

// ParseRef parses a "Kind.name" string into a Ref. A bare name with no dot
// yields a Ref with an empty Kind, which the store resolves across kinds.
func ParseRef(s string) Ref {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return Ref{Kind: s[:i], Name: s[i+1:]}
	}
	return Ref{Name: s}
}

// String returns the "Kind.name" form of the reference.
func (r Ref) String() string {
	if r.Kind == "" {
		return r.Name
	}
	return r.Kind + "." + r.Name
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.Name == ""
}

// Attr is one key/value pair of a template's ordered attribute map.
type Attr struct {
	Key   string
	Value any
}

// Attrs builds an ordered attribute list from alternating key/value pairs.
// It panics if given an odd number of arguments or a non-string key; it is
// intended for hand-written template literals in tests and seeds.
func Attrs(kv ...any) []Attr {
	if len(kv)%2 != 0 {
		panic("forge: Attrs requires an even number of arguments")
	}
	attrs := make([]Attr, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("forge: Attrs key %d is %T, want string", i/2, kv[i]))
		}
		attrs = append(attrs, Attr{Key: k, Value: kv[i+1]})
	}
	return attrs
}

// Template is a named, reusable attribute blueprint for creating one entity
// of a Kind. Templates are immutable once registered; overrides never modify
// them, they produce a new merged attribute set at resolution time.
type Template struct {
	// Kind is the entity type this template creates.
	Kind string
	// Name identifies the template within its Kind.
	Name string
	// Attrs is the ordered base attribute map. Values are literals, Refs,
	// or Generators.
	Attrs []Attr
	// Virtual lists attribute keys that bypass host schema checks and are
	// passed through to the creation step verbatim.
	Virtual []string
	// CreateOp names a registered host create operation that replaces the
	// default creation step for this template. Optional.
	CreateOp string
	// CreateFunc entirely replaces the creation step for this template.
	// Takes precedence over CreateOp. Optional.
	CreateFunc CreateFunc
}

// Ref returns the template's reference.
func (t *Template) Ref() Ref {
	return Ref{Kind: t.Kind, Name: t.Name}
}

// Attr returns the base value of the given attribute key.
func (t *Template) Attr(key string) (any, bool) {
	for _, a := range t.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return nil, false
}

// IsVirtual reports whether the key is flagged virtual.
func (t *Template) IsVirtual(key string) bool {
	for _, k := range t.Virtual {
		if k == key {
			return true
		}
	}
	return false
}

// clone returns a deep-enough copy for registry isolation: the attribute and
// virtual slices are copied, values are shared (they are treated as
// immutable).
func (t *Template) clone() *Template {
	c := *t
	c.Attrs = make([]Attr, len(t.Attrs))
	copy(c.Attrs, t.Attrs)
	c.Virtual = make([]string, len(t.Virtual))
	copy(c.Virtual, t.Virtual)
	return &c
}

// Call carries the invocation context of a Generator: the template being
// materialized, the attribute being computed, the per-attribute sequence
// index and the fixed extra arguments attached to the descriptor.
type Call struct {
	// Kind and Name identify the template being materialized.
	Kind string
	Name string
	// Attr is the attribute the generator computes.
	Attr string
	// Seq is the per-(Kind, Name, Attr) monotonic index: 0, 1, 2, ...
	// It resets only on an explicit Engine.ResetSequences call.
	Seq int
	// Args holds the fixed extra arguments given to Generate.
	Args []any
}

// GeneratorFunc computes an attribute value at creation time.
type GeneratorFunc func(Call) any

// Generator is a computed-value descriptor. It is evaluated when the
// template is materialized, not when it is registered, so successive runs
// observe successive sequence indexes.
type Generator struct {
	Fn   GeneratorFunc
	Args []any
}

// Generate returns a Generator invoking fn with the given fixed arguments.
func Generate(fn GeneratorFunc, args ...any) Generator {
	return Generator{Fn: fn, Args: args}
}

// Sequence returns a Generator producing fmt.Sprintf(format, seq) for the
// per-attribute sequence index. A format without a verb gets the index
// appended.
func Sequence(format string) Generator {
	if !strings.ContainsRune(format, '%') {
		format += "%d"
	}
	return Generate(func(c Call) any {
		return fmt.Sprintf(format, c.Seq)
	})
}

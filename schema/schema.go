package schema

import (
	"sync"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IDType describes how a Kind's primary identifier is generated when the
// caller does not supply one.
type IDType int

const (
	// StringID generates a random UUID string.
	StringID IDType = iota
	// IntID generates a monotonically increasing int64, starting at 1.
	IntID
)

// Relation declares that an attribute of a Kind points at another Kind.
// Only attributes declared as relations are ever rewritten by the engine's
// reference resolution; any other attribute holding a reference-shaped value
// is passed through verbatim.
type Relation struct {
	// Attr is the attribute name on the owning Kind (e.g. "blog_id").
	Attr string
	// Target is the destination Kind name (e.g. "Blog").
	Target string
}

// Kind describes one logical entity type of the host data layer.
type Kind struct {
	// Name is the Kind name, unique within a Provider (e.g. "Post").
	Name string
	// Group is the logical grouping used for lazy sibling discovery.
	// Kinds in the same group are registered together. Optional.
	Group string
	// Table is the storage table name. Defaults to the pluralized,
	// underscored form of Name (inflect.Tableize).
	Table string
	// ID is the primary identifier attribute name, or "" if the Kind has
	// no declared identifier.
	ID string
	// IDType selects how missing identifiers are generated.
	IDType IDType
	// PartitionKey is the attribute used for tenant segregation, or "".
	PartitionKey string
	// Timestamps lists attributes stamped with the creation time when the
	// caller does not supply them (e.g. "created_at", "updated_at").
	Timestamps []string
	// Attrs lists the declared non-relation attributes.
	Attrs []string
	// Relations lists the relation attributes.
	Relations []Relation
}

// Option configures a Kind built by New.
type Option func(*Kind)

// WithGroup sets the Kind's logical group.
func WithGroup(group string) Option {
	return func(k *Kind) { k.Group = group }
}

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(k *Kind) { k.Table = table }
}

// WithID declares the primary identifier attribute and its generation type.
func WithID(attr string, typ IDType) Option {
	return func(k *Kind) { k.ID = attr; k.IDType = typ }
}

// WithPartitionKey declares the tenant-segregation attribute.
func WithPartitionKey(attr string) Option {
	return func(k *Kind) { k.PartitionKey = attr }
}

// WithTimestamps declares auto-stamped timestamp attributes.
func WithTimestamps(attrs ...string) Option {
	return func(k *Kind) { k.Timestamps = append(k.Timestamps, attrs...) }
}

// WithAttrs declares plain attributes.
func WithAttrs(attrs ...string) Option {
	return func(k *Kind) { k.Attrs = append(k.Attrs, attrs...) }
}

// WithRelation declares a relation attribute and its destination Kind.
func WithRelation(attr, target string) Option {
	return func(k *Kind) {
		k.Relations = append(k.Relations, Relation{Attr: attr, Target: target})
	}
}

// New builds a Kind with the given options applied.
func New(name string, opts ...Option) *Kind {
	k := &Kind{Name: name}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Relation returns the relation declared on attr, if any.
func (k *Kind) Relation(attr string) (Relation, bool) {
	for _, r := range k.Relations {
		if r.Attr == attr {
			return r, true
		}
	}
	return Relation{}, false
}

// HasAttr reports whether attr is declared on the Kind, either as a plain
// attribute, a relation, the identifier, the partition key or a timestamp.
func (k *Kind) HasAttr(attr string) bool {
	if attr == "" {
		return false
	}
	if attr == k.ID || attr == k.PartitionKey {
		return true
	}
	for _, a := range k.Attrs {
		if a == attr {
			return true
		}
	}
	for _, t := range k.Timestamps {
		if t == attr {
			return true
		}
	}
	_, ok := k.Relation(attr)
	return ok
}

// TableName returns the declared table name, falling back to the tableized
// form of the Kind name (e.g. "BlogPost" -> "blog_posts").
func (k *Kind) TableName() string {
	if k.Table != "" {
		return k.Table
	}
	return inflect.Tableize(k.Name)
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Label returns the human-readable form of the Kind name used in error
// messages and generated documentation.
func (k *Kind) Label() string {
	return titleCaser.String(k.Name)
}

// Provider answers Kind lookups for the fixture engine.
type Provider interface {
	// Kind returns the descriptor for the named Kind.
	Kind(name string) (*Kind, bool)
	// Group returns every Kind in the named group, in declaration order.
	Group(name string) []*Kind
}

// MapProvider is an in-memory Provider backed by a plain map. It is safe for
// concurrent use.
type MapProvider struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
	order []string
}

// NewMapProvider returns a MapProvider holding the given Kinds.
func NewMapProvider(kinds ...*Kind) *MapProvider {
	p := &MapProvider{kinds: make(map[string]*Kind, len(kinds))}
	p.Add(kinds...)
	return p
}

// Add registers additional Kinds. A Kind with a name already present
// replaces the previous descriptor.
func (p *MapProvider) Add(kinds ...*Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range kinds {
		if _, ok := p.kinds[k.Name]; !ok {
			p.order = append(p.order, k.Name)
		}
		p.kinds[k.Name] = k
	}
}

// Kind implements Provider.
func (p *MapProvider) Kind(name string) (*Kind, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	k, ok := p.kinds[name]
	return k, ok
}

// Group implements Provider. Kinds are returned in the order they were
// added, which keeps discovery deterministic.
func (p *MapProvider) Group(name string) []*Kind {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var kinds []*Kind
	for _, n := range p.order {
		if k := p.kinds[n]; k.Group == name && k.Group != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

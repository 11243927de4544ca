package forge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/forge/schema"
)

// Memory is the in-memory creation strategy: entities are plain attribute
// maps built directly, with no host operation call, no transaction and
// nothing to roll back. A kind's declared identifier is generated when not
// supplied, and declared timestamp attributes are stamped with the strategy
// clock.
type Memory struct {
	provider schema.Provider
	clock    func() time.Time
	ops      *opset

	mu     sync.Mutex
	intIDs map[string]int64
}

// MemoryOption configures a Memory strategy.
type MemoryOption func(*Memory)

// WithClock replaces the timestamp clock; tests inject a fixed time.
func WithClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) { m.clock = clock }
}

// NewMemory returns an in-memory strategy for the given schema.
func NewMemory(provider schema.Provider, opts ...MemoryOption) *Memory {
	m := &Memory{
		provider: provider,
		clock:    time.Now,
		ops:      newOpset(),
		intIDs:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterOperation registers a named create operation, addressable from
// templates via CreateOp.
func (m *Memory) RegisterOperation(name string, fn CreateFunc) {
	m.ops.registerNamed(name, fn)
}

// RegisterKindFunc overrides the creation step for every template of a kind.
func (m *Memory) RegisterKindFunc(kind string, fn CreateFunc) {
	m.ops.registerKind(kind, fn)
}

// CreateEntity implements Strategy.
func (m *Memory) CreateEntity(ctx context.Context, step *Step, opts *CreateOptions) (any, error) {
	fn, err := m.ops.resolve(step.Template)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return safeCreate(ctx, fn, step.Attrs, opts)
	}
	entity := make(map[string]any, len(step.Attrs.Keys())+3)
	for _, key := range step.Attrs.Keys() {
		if step.Attrs.ExplicitNil(key) {
			continue
		}
		v, _ := step.Attrs.Value(key)
		entity[key] = cloneValue(v)
	}
	kind, ok := m.provider.Kind(step.Template.Kind)
	if !ok {
		return entity, nil
	}
	if kind.ID != "" {
		if _, ok := entity[kind.ID]; !ok {
			entity[kind.ID] = m.nextID(kind)
		}
	}
	now := m.clock()
	for _, ts := range kind.Timestamps {
		if _, ok := entity[ts]; !ok {
			entity[ts] = now
		}
	}
	return entity, nil
}

func (m *Memory) nextID(kind *schema.Kind) any {
	if kind.IDType == schema.IntID {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.intIDs[kind.Name]++
		return m.intIDs[kind.Name]
	}
	return uuid.NewString()
}

// Handle implements Strategy: dependents receive the created entity value
// itself.
func (m *Memory) Handle(_ string, entity any) any {
	return entity
}

// WrapRun implements Strategy: a passthrough, since there are no persisted
// side effects to roll back.
func (m *Memory) WrapRun(ctx context.Context, body func(ctx context.Context) (map[Ref]any, error)) (map[Ref]any, error) {
	return body(ctx)
}

// cloneValue isolates container values between the template and the created
// entity: maps and slices go through a msgpack round trip so later mutation
// of the entity cannot reach back into the registered template. Scalars are
// shared as-is.
func cloneValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return v
		}
		var out any
		if err := msgpack.Unmarshal(b, &out); err != nil {
			return v
		}
		return out
	default:
		return v
	}
}

var _ Strategy = (*Memory)(nil)

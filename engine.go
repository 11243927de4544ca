package forge

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Engine orchestrates a run: it expands the requested references into their
// transitive closure, schedules them topologically, composes overrides,
// resolves attributes step by step against the entities created so far, and
// hands each step to the strategy. A run is strictly sequential; the first
// error aborts it and is returned unchanged.
//
// Engines are safe for concurrent use: each run builds its own plan and
// created-entity set, and the store serializes its own mutation.
type Engine struct {
	store    *Store
	strategy Strategy
	logger   *slog.Logger
	seqs     *sequences
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStrategy selects the creation strategy. Defaults to an in-memory
// strategy over the store's schema provider.
func WithStrategy(s Strategy) EngineOption {
	return func(e *Engine) { e.strategy = s }
}

// WithLogger sets the logger for run progress, emitted at Debug level.
// Defaults to slog.Default.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// New returns an Engine over the given store.
func New(store *Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
		seqs:   newSequences(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategy == nil {
		e.strategy = NewMemory(store.Provider())
	}
	return e
}

// Store returns the engine's template store.
func (e *Engine) Store() *Store {
	return e.store
}

// ResetSequences resets every generator sequence counter to zero. Call it
// between independent runs that must observe identical sequences.
func (e *Engine) ResetSequences() {
	e.seqs.reset()
}

// Target names one template a run must materialize, with optional inline
// attribute overrides that win over every other override source.
type Target struct {
	Kind      string
	Name      string
	Overrides map[string]any
}

// T is shorthand for building a Target. The optional trailing map supplies
// inline overrides.
func T(kind, name string, overrides ...map[string]any) Target {
	t := Target{Kind: kind, Name: name}
	if len(overrides) > 0 {
		t.Overrides = overrides[0]
	}
	return t
}

type runConfig struct {
	overrides    *Overrides
	partitionKey any
	actor        any
}

// RunOption configures a single run.
type RunOption func(*runConfig)

// WithOverride adds attribute overrides for one template reference. A value
// explicitly set to nil marks the attribute as "must be absent", which is
// different from leaving it out.
func WithOverride(kind, name string, attrs map[string]any) RunOption {
	return func(c *runConfig) {
		c.overrides.Set(Ref{Kind: kind, Name: name}, attrs)
	}
}

// WithOverrides adds a whole override map keyed by template reference.
func WithOverrides(m map[Ref]map[string]any) RunOption {
	return func(c *runConfig) {
		for ref, attrs := range m {
			c.overrides.Set(ref, attrs)
		}
	}
}

// WithPartitionKey seeds the partition key of every creation step in the
// run. A partition-key attribute extracted from a step's own resolved
// attributes still wins for that step.
func WithPartitionKey(v any) RunOption {
	return func(c *runConfig) { c.partitionKey = v }
}

// WithActor sets the authorization context handed to creation operations.
// When given a Ref, the referenced template is pulled into the run and the
// created entity's resolution handle is passed as the actor instead.
func WithActor(v any) RunOption {
	return func(c *runConfig) { c.actor = v }
}

// Run materializes the given targets and everything they transitively
// reference, exactly once each, in dependency order. It returns the full
// created-entity set keyed by template reference. On error no partial
// result is returned; under the persisted strategy the transaction has been
// rolled back by the time Run returns.
func (e *Engine) Run(ctx context.Context, targets []Target, opts ...RunOption) (map[Ref]any, error) {
	cfg := e.newRunConfig(opts)
	return e.run(ctx, targets, nil, cfg)
}

// RunScenario materializes every template the named scenario references,
// with the scenario's flattened overrides applied. Run options compose on
// top: per-call overrides win over scenario overrides key by key.
func (e *Engine) RunScenario(ctx context.Context, name string, opts ...RunOption) (map[Ref]any, error) {
	cfg := e.newRunConfig(opts)
	base, err := e.store.ResolveScenario(name)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, base.Len())
	for _, ref := range base.Refs() {
		targets = append(targets, Target{Kind: ref.Kind, Name: ref.Name})
	}
	return e.run(ctx, targets, base, cfg)
}

// RunScenarios runs several scenarios concurrently, each with its own plan
// and created-entity set, and returns the results keyed by scenario name.
// The store is only read, so runs do not interfere; the first error cancels
// the remaining runs.
func (e *Engine) RunScenarios(ctx context.Context, names []string, opts ...RunOption) (map[string]map[Ref]any, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]map[Ref]any, len(names))
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			res, err := e.RunScenario(ctx, name, opts...)
			if err != nil {
				return err
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Plan computes the execution order for the given targets without creating
// anything. Useful for debugging and for asserting scheduling properties.
func (e *Engine) Plan(targets []Target, opts ...RunOption) ([]Ref, error) {
	cfg := e.newRunConfig(opts)
	_, order, _, err := e.plan(targets, nil, cfg)
	return order, err
}

func (e *Engine) newRunConfig(opts []RunOption) *runConfig {
	cfg := &runConfig{overrides: NewOverrides()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// plan composes the run's override set and computes the expansion and its
// topological order. base (scenario) overrides apply first, then run-level
// overrides, then inline target overrides, later sources winning key by key.
func (e *Engine) plan(targets []Target, base *Overrides, cfg *runConfig) (*expansion, []Ref, *Overrides, error) {
	composed := NewOverrides()
	if base != nil {
		composed.Merge(base)
	}
	for _, ref := range cfg.overrides.Refs() {
		canon, err := e.canonical(ref)
		if err != nil {
			// Keep the reference as given; overrides for templates a
			// run never materializes are inert.
			canon = ref
		}
		attrs, _ := cfg.overrides.Get(ref)
		composed.Set(canon, attrs)
	}
	refs := make([]Ref, 0, len(targets)+1)
	if aref, ok := cfg.actor.(Ref); ok {
		refs = append(refs, aref)
	}
	for _, t := range targets {
		ref := Ref{Kind: t.Kind, Name: t.Name}
		canon, err := e.canonical(ref)
		if err != nil {
			return nil, nil, nil, err
		}
		refs = append(refs, canon)
		if t.Overrides != nil {
			composed.Set(canon, t.Overrides)
		}
	}
	x, err := expand(e.store, refs, composed)
	if err != nil {
		return nil, nil, nil, err
	}
	order, err := schedule(x)
	if err != nil {
		return nil, nil, nil, err
	}
	return x, order, composed, nil
}

func (e *Engine) canonical(ref Ref) (Ref, error) {
	t, err := e.store.resolve(ref)
	if err != nil {
		return Ref{}, err
	}
	return t.Ref(), nil
}

func (e *Engine) run(ctx context.Context, targets []Target, base *Overrides, cfg *runConfig) (map[Ref]any, error) {
	x, order, composed, err := e.plan(targets, base, cfg)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("forge: run planned", "steps", len(order))
	return e.strategy.WrapRun(ctx, func(ctx context.Context) (map[Ref]any, error) {
		created := newCreatedSet()
		for _, ref := range order {
			t := x.templates[ref]
			override, _ := composed.Get(ref)
			kind, _ := e.store.Provider().Kind(t.Kind)
			attrs := resolveStep(kind, t, override, created, e.seqs, e.strategy.Handle)
			opts := &CreateOptions{
				PartitionKey: cfg.partitionKey,
				Actor:        e.actorValue(cfg.actor, created),
			}
			entity, err := e.strategy.CreateEntity(ctx, &Step{Template: t, Ref: ref, Attrs: attrs}, opts)
			if err != nil {
				return nil, NewCreationError(t.Kind, t.Name, err)
			}
			created.add(ref, entity)
			e.logger.Debug("forge: entity created", "kind", t.Kind, "name", t.Name)
		}
		return created.result(), nil
	})
}

// actorValue resolves the run's actor: a Ref actor becomes the created
// entity's resolution handle once that entity exists.
func (e *Engine) actorValue(actor any, created *createdSet) any {
	aref, ok := actor.(Ref)
	if !ok {
		return actor
	}
	canon, err := e.canonical(aref)
	if err != nil {
		return nil
	}
	if entity, ok := created.get(canon); ok {
		return e.strategy.Handle(canon.Kind, entity)
	}
	return nil
}

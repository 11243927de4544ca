package forge

import (
	"context"
	"fmt"
	"sync"
)

// CreateFunc creates a single entity from resolved attributes. It is the
// shape of host create operations and of caller-supplied creation overrides.
// Returning an error aborts the run; for the persisted strategy the
// enclosing transaction is rolled back.
type CreateFunc func(ctx context.Context, attrs *Resolved, opts *CreateOptions) (any, error)

// CreateOptions carries the execution options of one creation step.
type CreateOptions struct {
	// PartitionKey segregates the created entity by tenant or namespace.
	// For the persisted strategy it is extracted from the resolved
	// attributes when the kind declares a partition-key attribute, or
	// seeded from the run's partition-key hint.
	PartitionKey any
	// Actor is the authorization context the host may require. When a run
	// is given a template reference as its actor, the created entity's
	// resolution handle is placed here before each step.
	Actor any
}

// Step is one unit of a run: the template being materialized, its host
// schema descriptor (nil when the provider does not know the kind) and the
// resolved attributes.
type Step struct {
	Template *Template
	Ref      Ref
	Attrs    *Resolved
}

// Strategy turns resolved attributes into entities. Implementations decide
// where entities live (a database for Persist, plain values for Memory),
// what a reference resolves to once its target exists, and whether a whole
// run executes transactionally.
type Strategy interface {
	// CreateEntity materializes one step.
	CreateEntity(ctx context.Context, step *Step, opts *CreateOptions) (any, error)

	// Handle returns the value substituted into dependents' relation
	// attributes once the entity exists: a persisted identifier for
	// Persist, the entity value itself for Memory.
	Handle(kind string, entity any) any

	// WrapRun wraps the execution of a whole plan. Persist runs body in
	// one transaction covering every kind the run touches and rolls back
	// on the first error; Memory is a passthrough.
	WrapRun(ctx context.Context, body func(ctx context.Context) (map[Ref]any, error)) (map[Ref]any, error)
}

// opset is the shared registry of named create operations and per-kind
// creation overrides a strategy carries.
type opset struct {
	mu    sync.RWMutex
	named map[string]CreateFunc
	kinds map[string]CreateFunc
}

func newOpset() *opset {
	return &opset{
		named: make(map[string]CreateFunc),
		kinds: make(map[string]CreateFunc),
	}
}

func (o *opset) registerNamed(name string, fn CreateFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.named[name] = fn
}

func (o *opset) registerKind(kind string, fn CreateFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds[kind] = fn
}

// resolve returns the creation override for a step, if any: the template's
// own function wins, then the template's named operation, then the per-kind
// override. A nil function or an unregistered operation name is an
// InvalidCreateFuncError.
func (o *opset) resolve(t *Template) (CreateFunc, error) {
	if t.CreateFunc != nil {
		return t.CreateFunc, nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if t.CreateOp != "" {
		fn, ok := o.named[t.CreateOp]
		if !ok || fn == nil {
			return nil, NewInvalidCreateFuncError(fmt.Sprintf("operation %q is not registered", t.CreateOp))
		}
		return fn, nil
	}
	if fn, ok := o.kinds[t.Kind]; ok {
		if fn == nil {
			return nil, NewInvalidCreateFuncError(fmt.Sprintf("kind %q has a nil create function", t.Kind))
		}
		return fn, nil
	}
	return nil, nil
}

// safeCreate invokes a creation function, converting a panic inside it into
// a returned error so a misbehaving override cannot take down the run.
func safeCreate(ctx context.Context, fn CreateFunc, attrs *Resolved, opts *CreateOptions) (entity any, err error) {
	defer func() {
		if r := recover(); r != nil {
			entity = nil
			err = fmt.Errorf("create function panicked: %v", r)
		}
	}()
	return fn(ctx, attrs, opts)
}

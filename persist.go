package forge

import (
	"context"
	"fmt"

	"github.com/syssam/forge/dialect"
	sqld "github.com/syssam/forge/dialect/sql"
	"github.com/syssam/forge/schema"
)

// Persist is the persisted creation strategy: entities are created through a
// dialect.Driver, and a whole run executes inside a single transaction, so
// any failing step rolls back every entity created earlier in that run.
//
// The creation operation for a step is resolved as: the template's own
// CreateFunc, then the template's named CreateOp, then a per-kind override
// registered with RegisterKindFunc, then the default INSERT built from the
// kind's table name.
type Persist struct {
	drv      dialect.Driver
	provider schema.Provider
	ops      *opset
}

// NewPersist returns a persisted strategy creating entities through drv.
func NewPersist(drv dialect.Driver, provider schema.Provider) *Persist {
	return &Persist{drv: drv, provider: provider, ops: newOpset()}
}

// RegisterOperation registers a named host create operation, addressable
// from templates via CreateOp.
func (p *Persist) RegisterOperation(name string, fn CreateFunc) {
	p.ops.registerNamed(name, fn)
}

// RegisterKindFunc overrides the creation step for every template of a kind.
func (p *Persist) RegisterKindFunc(kind string, fn CreateFunc) {
	p.ops.registerKind(kind, fn)
}

type txCtxKey struct{}

// NewTxContext returns a context carrying the run's transaction. WrapRun
// installs it; creation steps and custom operations read it back with
// TxFromContext so their statements join the run's transaction.
func NewTxContext(ctx context.Context, tx dialect.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// TxFromContext returns the run transaction, if the context carries one.
func TxFromContext(ctx context.Context) (dialect.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(dialect.Tx)
	return tx, ok
}

// conn returns the ExecQuerier statements should go through: the run
// transaction when present, the bare driver otherwise.
func (p *Persist) conn(ctx context.Context) dialect.ExecQuerier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return p.drv
}

// CreateEntity implements Strategy. The kind's partition-key attribute, when
// declared and present, is removed from the payload and passed through the
// execution options instead.
func (p *Persist) CreateEntity(ctx context.Context, step *Step, opts *CreateOptions) (any, error) {
	kind := p.kindOf(step.Template.Kind)
	if pk := kind.PartitionKey; pk != "" {
		if v, ok := step.Attrs.Value(pk); ok && !step.Attrs.ExplicitNil(pk) {
			opts.PartitionKey = v
			step.Attrs.Delete(pk)
		}
	}
	fn, err := p.ops.resolve(step.Template)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return safeCreate(ctx, fn, step.Attrs, opts)
	}
	return p.insert(ctx, kind, step.Attrs)
}

// insert is the default create operation: a single-row INSERT into the
// kind's table, reading the generated identifier back via RETURNING on
// dialects that support it and LastInsertId otherwise.
func (p *Persist) insert(ctx context.Context, kind *schema.Kind, attrs *Resolved) (any, error) {
	b := sqld.Insert(kind.TableName()).Dialect(p.drv.Dialect())
	entity := make(map[string]any, len(attrs.Keys())+1)
	for _, key := range attrs.Keys() {
		if attrs.ExplicitNil(key) {
			continue
		}
		v, _ := attrs.Value(key)
		b.Set(key, v)
		entity[key] = v
	}
	_, hasID := entity[kind.ID]
	wantID := kind.ID != "" && !hasID
	if wantID && b.SupportsReturning() {
		b.Returning(kind.ID)
		query, args, err := b.Query()
		if err != nil {
			return nil, err
		}
		var rows sqld.Rows
		if err := p.conn(ctx).Query(ctx, query, args, &rows); err != nil {
			return nil, err
		}
		defer rows.Close()
		if !rows.Next() {
			return nil, fmt.Errorf("forge: insert into %q returned no rows", kind.TableName())
		}
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		entity[kind.ID] = id
		return entity, rows.Err()
	}
	query, args, err := b.Query()
	if err != nil {
		return nil, err
	}
	var res sqld.Result
	if err := p.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	if wantID {
		if id, err := res.LastInsertId(); err == nil {
			entity[kind.ID] = id
		}
	}
	return entity, nil
}

// Handle implements Strategy: a dependent's relation attribute receives the
// persisted identifier of the created entity.
func (p *Persist) Handle(kind string, entity any) any {
	k := p.kindOf(kind)
	if k.ID == "" {
		return entity
	}
	if m, ok := entity.(map[string]any); ok {
		if id, ok := m[k.ID]; ok {
			return id
		}
	}
	return entity
}

// WrapRun implements Strategy: the whole plan executes in one transaction
// scoped to every kind the run touches. The first error rolls it back.
func (p *Persist) WrapRun(ctx context.Context, body func(ctx context.Context) (map[Ref]any, error)) (map[Ref]any, error) {
	tx, err := p.drv.Tx(ctx)
	if err != nil {
		return nil, err
	}
	result, err := body(NewTxContext(ctx, tx))
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// kindOf returns the schema descriptor for a kind, or a minimal synthetic
// descriptor when the provider does not know it.
func (p *Persist) kindOf(name string) *schema.Kind {
	if k, ok := p.provider.Kind(name); ok {
		return k
	}
	return schema.New(name)
}

var _ Strategy = (*Persist)(nil)

// Package dialect provides the database abstraction the persisted fixture
// strategy creates entities through.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The Driver interface covers everything the engine needs: executing
// statements, running queries and starting transactions:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface adds Commit and Rollback on top of ExecQuerier. One
// transaction wraps a whole fixture run, so a failing creation step rolls
// back every entity created earlier in the same run.
//
// # Usage
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// The dialect/sql sub-package implements Driver on top of database/sql and
// provides the INSERT builder used by the default create operation.
package dialect

package dialect

import (
	"context"
)

// Dialect names the engine supports out of the box.
const (
	// MySQL is the MySQL/MariaDB dialect.
	MySQL = "mysql"
	// SQLite is the SQLite dialect.
	SQLite = "sqlite"
	// Postgres is the PostgreSQL dialect.
	Postgres = "postgres"
)

// ExecQuerier wraps the two standard database operations.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The v argument
	// optionally receives the execution result (e.g. *sql.Result).
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows, scanned into v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the persistence interface the fixture engine creates entities
// through.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transaction. It embeds ExecQuerier so statements issued through it
// participate in the transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx that executes statements through d and ignores
// Commit and Rollback. Useful for drivers without transaction support.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/forge/dialect"
)

// InsertBuilder is a builder for `INSERT INTO ...` statements. It covers the
// narrow shape the fixture engine needs: one row, explicit columns, optional
// RETURNING clause for dialects that support it.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    []any
	returning []string
	err       error
}

// Insert creates a builder for the given table.
func Insert(table string) *InsertBuilder {
	b := &InsertBuilder{}
	if !isValidIdentifier(table) {
		b.err = fmt.Errorf("dialect/sql: invalid table name %q", table)
	}
	b.table = table
	return b
}

// Dialect sets the dialect the statement is built for.
func (b *InsertBuilder) Dialect(name string) *InsertBuilder {
	b.dialect = name
	return b
}

// Set adds a column/value pair to the statement, preserving call order.
func (b *InsertBuilder) Set(column string, v any) *InsertBuilder {
	if !isValidIdentifier(column) && b.err == nil {
		b.err = fmt.Errorf("dialect/sql: invalid column name %q", column)
	}
	b.columns = append(b.columns, column)
	b.values = append(b.values, v)
	return b
}

// Returning adds a RETURNING clause. It is effective only for dialects that
// support it (PostgreSQL and SQLite).
func (b *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	for _, c := range columns {
		if !isValidIdentifier(c) && b.err == nil {
			b.err = fmt.Errorf("dialect/sql: invalid column name %q", c)
		}
	}
	b.returning = append(b.returning, columns...)
	return b
}

// SupportsReturning reports whether the builder's dialect can return values
// from an INSERT statement.
func (b *InsertBuilder) SupportsReturning() bool {
	switch b.dialect {
	case dialect.Postgres, dialect.SQLite:
		return true
	}
	return false
}

// Query returns the statement and its arguments.
func (b *InsertBuilder) Query() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("dialect/sql: insert into %q without columns", b.table)
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.quote(b.table))
	sb.WriteString(" (")
	for i, c := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.quote(c))
	}
	sb.WriteString(") VALUES (")
	for i := range b.values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.placeholder(i))
	}
	sb.WriteString(")")
	if len(b.returning) > 0 && b.SupportsReturning() {
		sb.WriteString(" RETURNING ")
		for i, c := range b.returning {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(b.quote(c))
		}
	}
	return sb.String(), b.values, nil
}

// quote quotes an identifier for the builder's dialect.
func (b *InsertBuilder) quote(ident string) string {
	if b.dialect == dialect.MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// placeholder returns the i-th (zero-based) argument placeholder.
func (b *InsertBuilder) placeholder(i int) string {
	if b.dialect == dialect.Postgres {
		return "$" + strconv.Itoa(i+1)
	}
	return "?"
}

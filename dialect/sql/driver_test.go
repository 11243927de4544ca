package sql_test

import (
	"context"
	stdsql "database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/forge/dialect"
	"github.com/syssam/forge/dialect/sql"
)

func TestDriverDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A wrapped driver name still reports the base dialect.
	assert.Equal(t, dialect.Postgres, sql.OpenDB("postgres", db).Dialect())
	assert.Equal(t, dialect.Postgres, sql.OpenDB("postgres-with-telemetry", db).Dialect())
	assert.Equal(t, "unknown", sql.OpenDB("unknown", db).Dialect())
}

func TestDriverExec(t *testing.T) {
	ctx := context.Background()

	t.Run("Result", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectExec("INSERT INTO `blogs` (`name`) VALUES (?)").
			WithArgs("x").
			WillReturnResult(sqlmock.NewResult(3, 1))

		drv := sql.OpenDB(dialect.MySQL, db)
		var res stdsql.Result
		require.NoError(t, drv.Exec(ctx, "INSERT INTO `blogs` (`name`) VALUES (?)", []any{"x"}, &res))
		id, err := res.LastInsertId()
		require.NoError(t, err)
		assert.Equal(t, int64(3), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidArgsType", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		drv := sql.OpenDB(dialect.MySQL, db)
		err = drv.Exec(ctx, "SELECT 1", "not-a-slice", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect []any for args")
	})

	t.Run("InvalidDestType", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		drv := sql.OpenDB(dialect.MySQL, db)
		var wrong int
		err = drv.Exec(ctx, "SELECT 1", []any{}, &wrong)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect *sql.Result")
	})
}

func TestDriverQuery(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(`INSERT INTO "blogs" ("name") VALUES ($1) RETURNING "id"`).
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	drv := sql.OpenDB(dialect.Postgres, db)
	var rows sql.Rows
	require.NoError(t, drv.Query(ctx, `INSERT INTO "blogs" ("name") VALUES ($1) RETURNING "id"`, []any{"x"}, &rows))
	defer rows.Close()

	require.True(t, rows.Next())
	var id int64
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `blogs`").WithArgs().WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	drv := sql.OpenDB(dialect.MySQL, db)
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "DELETE FROM `blogs`", []any{}, nil))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

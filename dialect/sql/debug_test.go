package sql_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/forge/dialect"
	"github.com/syssam/forge/dialect/sql"
)

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	var logs []string
	drv := sql.NewDebugDriver(
		sql.OpenDB(dialect.MySQL, db),
		sql.DebugWithLog(func(_ context.Context, v ...any) {
			logs = append(logs, fmt.Sprint(v...))
		}),
	)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO `blogs` (`name`) VALUES (?)").
		WithArgs("x").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, drv.Exec(ctx, "INSERT INTO `blogs` (`name`) VALUES (?)", []any{"x"}, nil))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `blogs`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "DELETE FROM `blogs`", []any{}, nil))
	require.NoError(t, tx.Commit())

	require.NoError(t, mock.ExpectationsWereMet())
	joined := strings.Join(logs, "\n")
	assert.Contains(t, joined, "exec: INSERT INTO `blogs`")
	assert.Contains(t, joined, "begin transaction")
	assert.Contains(t, joined, "tx exec: DELETE FROM `blogs`")
	assert.Contains(t, joined, "commit transaction")
}

package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"f1report/internal/config"
	"f1report/internal/domain/query"
	"f1report/internal/domain/report"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &DB{DB: db}, mock
}

func TestExecuteReturnsTable(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery("SELECT name, points FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"NAME", "POINTS"}).
			AddRow([]byte("Max Verstappen"), "454").
			AddRow("Charles Leclerc", nil))

	tbl, err := db.Execute(context.Background(), query.Query{SQL: "SELECT name, points FROM t;"})
	require.NoError(t, err)
	assert.Equal(t, []string{"NAME", "POINTS"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Max Verstappen", tbl.Rows[0][0])
	assert.Nil(t, tbl.Rows[1][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteWrapsQueryError(t *testing.T) {
	db, mock := newSQLMock(t)
	boom := errors.New("SQL compilation error")
	mock.ExpectQuery("SELECT broken").WillReturnError(boom)

	_, err := db.Execute(context.Background(), query.Query{SQL: "SELECT broken"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestExecuteEmptyResult(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery("SELECT a FROM t").WillReturnRows(sqlmock.NewRows([]string{"A"}))

	tbl, err := db.Execute(context.Background(), query.Query{SQL: "SELECT a FROM t", Timeout: time.Second})
	require.NoError(t, err)
	assert.True(t, tbl.Empty())
	assert.Equal(t, []string{"A"}, tbl.Columns)
}

func TestCatalogColumnCountsMatchLabels(t *testing.T) {
	for _, def := range report.Catalog() {
		t.Run(def.Name, func(t *testing.T) {
			db, mock := newSQLMock(t)

			cols := make([]string, len(def.Columns))
			row := make([]driver.Value, len(def.Columns))
			for i, c := range def.Columns {
				cols[i] = strings.ToLower(c)
				row[i] = "1"
			}
			mock.ExpectQuery(query.Normalize(def.SQL)).
				WillReturnRows(sqlmock.NewRows(cols).AddRow(row...))

			tbl, err := db.Execute(context.Background(), query.Query{ID: def.Name, SQL: def.SQL})
			require.NoError(t, err)
			assert.Len(t, tbl.Columns, len(def.Columns))
			require.NoError(t, def.Prepare(tbl))
			assert.Equal(t, def.Columns, tbl.Columns)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDSN(t *testing.T) {
	dsn, err := DSN(config.Warehouse{Driver: "postgres", DSN: "postgres://localhost/f1"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/f1", dsn)

	_, err = DSN(config.Warehouse{Driver: "duckdb"})
	assert.Error(t, err)

	dsn, err = DSN(config.Warehouse{
		Driver:    "snowflake",
		Account:   "yrt-ao1",
		User:      "analyst",
		Password:  "secret",
		Warehouse: "F1_WH",
		Database:  "F1_DATA_WAREHOUSE",
		Schema:    "FACTS",
	})
	require.NoError(t, err)
	assert.Contains(t, dsn, "analyst")
	assert.Contains(t, dsn, "F1_DATA_WAREHOUSE")
}

func TestOpenRejectsMissingDSN(t *testing.T) {
	_, err := Open(context.Background(), config.Warehouse{Driver: "sqlite3"})
	assert.Error(t, err)
}

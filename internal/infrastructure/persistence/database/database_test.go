package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
)

func TestNewConnectionWithLogger_SQLiteAndSchema(t *testing.T) {
	ctx := context.Background()
	db, err := NewConnectionWithLogger(ctx, Options{
		Driver:       DriverSQLite,
		DSN:          "file:schema_test?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, logging.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx), "schema bootstrap must be idempotent")
	require.NoError(t, db.Status(ctx))

	for _, table := range []string{"pages", "page_blocks", "user_tokens", "analyzer_requests", "contest_entries"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestNewConnectionWithLogger_UnsupportedDriver(t *testing.T) {
	_, err := NewConnectionWithLogger(context.Background(), Options{Driver: "oracle", DSN: "x"}, logging.NewDiscardLogger())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestDataSourceName(t *testing.T) {
	dsn, err := dataSourceName(Options{Driver: DriverLibSQL, DSN: "libsql://picks.turso.io", AuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://picks.turso.io?authToken=tok", dsn)

	dsn, err = dataSourceName(Options{Driver: DriverLibSQL, DSN: "libsql://picks.turso.io"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://picks.turso.io", dsn)

	dsn, err = dataSourceName(Options{Driver: DriverSQLite, DSN: "file:local.db"})
	require.NoError(t, err)
	assert.Equal(t, "file:local.db", dsn)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 9, 13, 17, 30, 0, 0, time.UTC)

	assert.Equal(t, want, ParseTimestamp(FormatTimestamp(want)))
	assert.Equal(t, want, ParseTimestamp("2026-09-13 17:30:00"))
	assert.True(t, ParseTimestamp("kickoff").IsZero())

	assert.Nil(t, ParseNullTimestamp(sql.NullString{}))
	require.NotNil(t, ParseNullTimestamp(sql.NullString{String: "2026-09-13T17:30:00", Valid: true}))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}

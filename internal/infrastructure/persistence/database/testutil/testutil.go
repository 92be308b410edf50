// Package testutil opens throwaway databases for repository and service tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database"
)

var dbCounter atomic.Int64

// OpenSQLite returns a private in-memory sqlite database with the schema applied.
// It is closed when the test ends.
func OpenSQLite(t testing.TB) *database.DB {
	t.Helper()

	opts := database.Options{
		Driver:       database.DriverSQLite,
		DSN:          fmt.Sprintf("file:sharpline_test_%d?mode=memory&cache=shared&_foreign_keys=on", dbCounter.Add(1)),
		MaxOpenConns: 1,
	}

	db, err := database.NewConnectionWithLogger(context.Background(), opts, logging.NewDiscardLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

// Exec runs fixture statements, failing the test on the first error.
func Exec(t testing.TB, db *database.DB, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

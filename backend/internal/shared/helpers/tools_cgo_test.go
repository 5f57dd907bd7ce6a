//go:build cgo

package helpers

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"walk-sensor/backend/pkg/dialect"
)

func TestRunMigrationsSQLite(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "walk.sqlite")

	// Running twice is a no-op the second time.
	for range 2 {
		if err := RunMigrations(l, dialect.SQLite, path); err != nil {
			t.Fatalf("RunMigrations() unexpected error: %v", err)
		}
	}
}

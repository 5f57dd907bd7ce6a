package migrator

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"

	"walk-sensor/backend/pkg/dialect"
	"walk-sensor/backend/pkg/utils"
)

// Migrator applies the embedded schema migrations.
type Migrator interface {
	Migrate() error
	// Applied returns the versions of the migrations already applied, oldest first.
	Applied() ([]string, error)
}

type dbmateMigrator struct {
	db *dbmate.DB
	l  *slog.Logger
}

// New creates a migrator for the given dialect. fsys must contain a directory
// named after d.MigrationsDir() holding dbmate migration files.
//
//nolint:ireturn // callers only need Migrate and Applied
func New(l *slog.Logger, d dialect.Dialect, connStr string, fsys fs.FS) (Migrator, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if _, err := fs.ReadDir(fsys, d.MigrationsDir()); err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var (
		u   *url.URL
		err error
	)

	switch d {
	case dialect.PostgreSQL:
		u, err = postgresURL(connStr)
	default:
		u, err = sqliteURL(connStr)
	}

	if err != nil {
		return nil, err
	}

	l = l.With(slog.String("component", "db-migrator"), slog.String("dialect", string(d)))

	db := dbmate.New(u)
	db.Strict = true
	db.FS = fsys
	db.MigrationsDir = []string{d.MigrationsDir()}
	db.AutoDumpSchema = false
	db.Log = utils.NewSlogWriter(l)

	if d == dialect.PostgreSQL {
		waitForPostgres(db)
	}

	return &dbmateMigrator{db: db, l: l}, nil
}

func (m *dbmateMigrator) Migrate() error {
	m.l.Info("Migrating database")

	if err := m.db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

func (m *dbmateMigrator) Applied() ([]string, error) {
	found, err := m.db.FindMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	var versions []string

	for _, mig := range found {
		if mig.Applied {
			versions = append(versions, mig.Version)
		}
	}

	return versions, nil
}

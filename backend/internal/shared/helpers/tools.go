// Package helpers holds startup steps shared by the sensor and collector binaries.
package helpers

import (
	"fmt"
	"log/slog"

	"walk-sensor/backend/internal/config"
	"walk-sensor/backend/internal/migrations"
	"walk-sensor/backend/pkg/dialect"
	"walk-sensor/backend/pkg/migrator"
	"walk-sensor/backend/pkg/utils"
)

// GetLogger builds the JSON logger every binary logs through.
func GetLogger(c config.Common, binary string) *slog.Logger {
	logOptions := slog.HandlerOptions{
		Level:       c.LogLevel,
		ReplaceAttr: utils.SlogReplacer,
	}

	return slog.New(slog.NewJSONHandler(c.LogOutput, &logOptions)).With(
		slog.String("version", utils.GetVersionShort()),
		slog.String("service", binary),
	)
}

// RunMigrations applies the embedded migrations of dialect d to the database at connStr.
func RunMigrations(l *slog.Logger, d dialect.Dialect, connStr string) error {
	l.Info("Running database migrations", slog.String("dialect", d.String()))

	mig, err := migrator.New(l, d, connStr, migrations.GetFS())
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := mig.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	applied, err := mig.Applied()
	if err != nil {
		return fmt.Errorf("failed to list applied migrations: %w", err)
	}

	l.Info("Database migrations completed successfully", slog.Int("applied", len(applied)))

	return nil
}

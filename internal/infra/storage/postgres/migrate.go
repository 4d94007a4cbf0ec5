package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrationState describes one bundled migration.
type MigrationState struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

func (db *DB) provider(logger *slog.Logger) (*goose.Provider, error) {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, err
	}

	dialect := goose.DialectPostgres
	if db.DriverName() == DriverSQLite {
		dialect = goose.DialectSQLite3
	}

	var opts []goose.ProviderOption
	if logger != nil {
		opts = append(opts, goose.WithSlog(logger))
	}
	// The provider is never closed: Provider.Close closes the shared pool.
	return goose.NewProvider(dialect, db.DB.DB, migrations, opts...)
}

// Migrate applies every pending bundled migration.
func (db *DB) Migrate(ctx context.Context, logger *slog.Logger) error {
	p, err := db.provider(logger)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	if logger != nil {
		for _, r := range results {
			logger.Info("Applied migration",
				"version", r.Source.Version,
				"duration", r.Duration,
			)
		}
	}
	return nil
}

// MigrationStatus lists the bundled migrations in version order.
func (db *DB) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	p, err := db.provider(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init migrations: %w", err)
	}

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version:   s.Source.Version,
			Name:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

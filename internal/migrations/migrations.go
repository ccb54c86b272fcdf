package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var schemaFiles embed.FS

// RunMigrations brings the telemetry schema up to the embedded version.
// With autoMigrate disabled it reports the current version and returns
// without applying anything, for deployments that manage DDL separately.
func RunMigrations(db *sql.DB, autoMigrate bool) error {
	src, err := iofs.New(schemaFiles, ".")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}

	if dirty {
		// An interrupted migration leaves the version flagged dirty. The
		// baseline DDL is all IF NOT EXISTS, so clearing the flag and
		// re-running Up converges on the same schema.
		slog.Warn("[Migrations] Schema version is dirty, clearing and re-applying",
			"version", version,
		)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("clear dirty schema version %d: %w", version, err)
		}
	}

	if !autoMigrate {
		slog.Info("[Migrations] auto_migrate disabled, leaving schema as-is",
			"version", version,
		)
		return nil
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("[Migrations] Schema already current", "version", version)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	newVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version after migrate: %w", err)
	}

	slog.Info("[Migrations] Schema migrated",
		"from_version", version,
		"to_version", newVersion,
	)
	return nil
}

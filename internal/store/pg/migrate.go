package pg

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed all:migrations
var migrationsFS embed.FS

// Migrate applies every pending embedded migration in migrations/ against
// dsn. cmd/serve invokes it at startup when DB_MODE=postgres; the `migrate`
// CLI command reads the on-disk migrations directory instead.
func Migrate(dsn string) error {
	s, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: load embedded source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", s, dsn)
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

// MigrateTo moves the schema to version, which may roll back.
func MigrateTo(dsn string, version int) error {
	s, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: load embedded source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", s, dsn)
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	defer m.Close()
	if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: to version %d: %w", version, err)
	}
	return nil
}

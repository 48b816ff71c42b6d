package ledger

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ApplySchema and RevertSchema wrap golang-migrate for the single
// session_costs table PostgresLedger depends on. Unlike a general-purpose
// schema with many revisions, this repo only ever has one migration pair,
// so there is no step count or version surface worth exposing — a caller
// either wants the table to exist or wants it gone.
func ApplySchema(dsn, migrationsPath string) (uint, error) {
	return runMigration(dsn, migrationsPath, func(m *migrate.Migrate) error { return m.Up() })
}

func RevertSchema(dsn, migrationsPath string) (uint, error) {
	return runMigration(dsn, migrationsPath, func(m *migrate.Migrate) error { return m.Down() })
}

func runMigration(dsn, migrationsPath string, run func(*migrate.Migrate) error) (uint, error) {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return 0, fmt.Errorf("open migrator: %w", err)
	}
	defer m.Close()

	if err := run(m); err != nil && err != migrate.ErrNoChange {
		return 0, fmt.Errorf("run migration: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return 0, fmt.Errorf("read migrator version: %w", err)
	}
	return version, nil
}

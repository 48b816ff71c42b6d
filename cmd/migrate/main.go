// Command migrate applies or reverts the session_costs table used by the
// optional Postgres cost ledger backend. There is exactly one migration
// pair in migrations/, so unlike a general-purpose schema tool this has no
// step count or version subcommand surface — just "up" or "down".
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nilgai-labs/guardproxy/internal/ledger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	migrationsPath := flag.String("path", "migrations", "path to migrations directory")
	flag.Parse()

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		host := envOrDefault("DB_HOST", "localhost")
		port := envOrDefault("DB_PORT", "5432")
		user := envOrDefault("DB_USER", "guardproxy")
		pass := envOrDefault("DB_PASSWORD", "guardproxy-dev")
		name := envOrDefault("DB_NAME", "guardproxy")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
	}

	var (
		version uint
		err     error
	)
	switch *direction {
	case "up":
		version, err = ledger.ApplySchema(dsn, *migrationsPath)
	case "down":
		version, err = ledger.RevertSchema(dsn, *migrationsPath)
	default:
		log.Fatalf("invalid direction: %s (use 'up' or 'down')", *direction)
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	fmt.Printf("migration %s complete (version: %d)\n", *direction, version)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

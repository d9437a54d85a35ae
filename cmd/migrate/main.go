// Command migrate applies database migrations for the auth gateway.
//
// Purpose:
//   Runs goose migrations from migrations/sql against the configured
//   Postgres database. Intended for CI pipelines and Kubernetes init
//   containers; the gateway itself never migrates on startup.
//
// Usage:
//   migrate up      apply all pending migrations (default)
//   migrate down    roll back the most recent migration
//   migrate status  print migration status
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/unionhub/auth-gateway/internal/config"
	"github.com/unionhub/auth-gateway/internal/logging"
)

const migrationsDir = "migrations/sql"

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.ServiceName+"-migrate", cfg.LogLevel, cfg.Environment)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal().Err(err).Msg("failed to set goose dialect")
	}

	switch command {
	case "up":
		err = goose.Up(db, migrationsDir)
	case "down":
		err = goose.Down(db, migrationsDir)
	case "status":
		err = goose.Status(db, migrationsDir)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected up, down, or status)\n", command)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}

	logger.Info().Str("command", command).Msg("migrations complete")
}

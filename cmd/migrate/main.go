// Package main provides a CLI tool for database migrations.
//
// Usage:
//
//	migrate [-path DIR] up|down|version
//	migrate [-path DIR] steps N
//	migrate [-path DIR] force V
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/scholar-aggregator/internal/config"
	"github.com/helixir/scholar-aggregator/internal/database"
	"github.com/helixir/scholar-aggregator/internal/observability"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type action struct {
	name string
	arg  int
}

// parseArgs reads the command and its numeric argument, if any.
func parseArgs(args []string) (action, error) {
	if len(args) == 0 {
		return action{}, fmt.Errorf("no action specified (want up, down, steps N, version or force V)")
	}

	a := action{name: args[0]}
	switch a.name {
	case "up", "down", "version":
		if len(args) != 1 {
			return action{}, fmt.Errorf("%s takes no arguments", a.name)
		}
	case "steps", "force":
		if len(args) != 2 {
			return action{}, fmt.Errorf("%s requires exactly one integer argument", a.name)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return action{}, fmt.Errorf("%s: invalid number %q", a.name, args[1])
		}
		if a.name == "steps" && n == 0 {
			return action{}, fmt.Errorf("steps must not be zero")
		}
		if a.name == "force" && n < 0 {
			return action{}, fmt.Errorf("force version must not be negative")
		}
		a.arg = n
	default:
		return action{}, fmt.Errorf("unknown action %q", a.name)
	}
	return a, nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	migrationsPath := fs.String("path", "", "Override the migrations directory path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	act, err := parseArgs(fs.Args())
	if err != nil {
		fs.Usage()
		return err
	}

	// Load configuration (database settings from env/config file).
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging with console output for the CLI tool.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	migrator, err := database.NewMigratorFromConfig(&cfg.Database, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch act.name {
	case "up":
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "steps":
		if err := migrator.Steps(act.arg); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case "force":
		if err := migrator.Force(act.arg); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	}

	printVersion(migrator, logger)
	return nil
}

// printVersion prints the current migration version.
func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}

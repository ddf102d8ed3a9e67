// Package main provides a CLI for the database schema.
// Usage: migrate up
//        migrate down
//        migrate steps -1
//        migrate version
//        migrate force 3
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"fuelstation/internal/infrastructure/config"
	"fuelstation/internal/infrastructure/storage/postgres/migrations"
	"fuelstation/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if os.Args[1] == "help" || os.Args[1] == "--help" || os.Args[1] == "-h" {
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: true, Service: "migrate"})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	ctx := logger.WithLogger(context.Background(), log)

	m, err := migrations.New(cfg.Database.URL)
	if err != nil {
		log.Fatalw("failed to open migrations", "error", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warnw("failed to close migrator", "error", err)
		}
	}()

	if err := run(ctx, m, os.Args[1], os.Args[2:]); err != nil {
		log.Errorw("migration command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, m *migrations.Migrator, command string, args []string) error {
	switch command {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(ctx, n)
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(ctx, v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one integer argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Println(`Fuel Station Schema Migrations

Usage:
  migrate <command> [argument]

Commands:
  up          Apply all pending migrations
  down        Roll back every migration
  steps N     Apply N migrations (negative rolls back)
  version     Print the current version
  force V     Set the version without running migrations
  help        Show this help

Environment Variables:
  FUEL_DATABASE_URL    PostgreSQL connection string (required)`)
}

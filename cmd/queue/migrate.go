package main

import (
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

const migrationsDir = "migrations"

// slogGooseLogger adapts the goose logger interface to slog. Fatalf does
// not exit; the error propagates back through the command instead.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Run schema migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(args[0])
		},
	}
}

func runMigration(command string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	log := a.logger.With("component", "migrations", "command", command)

	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	log.Info("running migration command")

	switch command {
	case "up":
		err = goose.Up(a.db, migrationsDir)
	case "down":
		err = goose.Down(a.db, migrationsDir)
	case "status":
		err = goose.Status(a.db, migrationsDir)
	case "version":
		err = goose.Version(a.db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	log.Info("migration command finished")
	return nil
}

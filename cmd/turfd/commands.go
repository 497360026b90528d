package main

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/turf/internal/config"
	"github.com/MarkoPoloResearchLab/turf/internal/migration"
	"github.com/MarkoPoloResearchLab/turf/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultDatabaseURL = "sqlite:///tmp/turf.db"

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(cmd.Context(), *cfg, cmd.Name(), func(migrator *migration.Migrator) error {
					return migrator.Up()
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(cmd.Context(), *cfg, cmd.Name(), func(migrator *migration.Migrator) error {
					return migrator.Down()
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(cmd.Context(), *cfg, cmd.Name(), func(migrator *migration.Migrator) error {
					status, err := migrator.Status()
					if err != nil {
						return err
					}
					if !status.Applied {
						fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", status.Version, status.Dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

// runMigration applies versioned migrations to postgres. For sqlite only "up"
// is supported and synchronizes tables with the model definitions.
func runMigration(ctx context.Context, cfg config.Config, name string, apply func(*migration.Migrator) error) error {
	logger, err := telemetry.NewLogger(cfg.Environment == config.EnvironmentProduction)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	databaseURL := cfg.DatabaseURL
	if databaseURL == "" {
		databaseURL = defaultDatabaseURL
	}
	target, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return err
	}
	if target.driver != driverPostgres {
		if name != "up" {
			return fmt.Errorf("migrate %s requires a postgres database", name)
		}
		db, closeDatabase, err := target.open(ctx)
		if err != nil {
			return fmt.Errorf("database open: %w", err)
		}
		defer func() { _ = closeDatabase() }()
		if err := target.syncSchema(db); err != nil {
			return err
		}
		logger.Info("sqlite schema synchronized with models", zap.String("path", target.location))
		return nil
	}

	migrator, err := migration.Open(databaseURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("close migrator", zap.Error(err))
		}
	}()
	return apply(migrator)
}

func newSeedAdminCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the configured admin account if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.AdminEmail == "" {
				return fmt.Errorf("%w: %s is required", config.ErrInvalidConfig, flagAdminEmail)
			}
			logger, err := telemetry.NewLogger(cfg.IsProduction())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			app, err := newApplication(cmd.Context(), *cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return seedAdmin(cmd.Context(), *cfg, app, logger)
		},
	}
}

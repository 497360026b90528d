// Package migration applies the embedded Postgres schema with golang-migrate.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	sourceDirectory = "sql"
	sourceName      = "iofs"
	databaseName    = "postgres"
	driverName      = "postgres"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Status is the schema version recorded by golang-migrate.
type Status struct {
	Version uint
	Dirty   bool
	Applied bool
}

// Migrator runs schema migrations against one Postgres database.
type Migrator struct {
	migrate *migrate.Migrate
	db      *sql.DB
	logger  *zap.Logger
}

// Open connects to databaseURL and prepares the embedded migrations.
func Open(databaseURL string, logger *zap.Logger) (*Migrator, error) {
	db, err := sql.Open(driverName, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	migrator, err := New(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return migrator, nil
}

// New prepares the embedded migrations over an open database handle.
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	source, err := iofs.New(migrationFiles, sourceDirectory)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migrate driver: %w", err)
	}
	instance, err := migrate.NewWithInstance(sourceName, source, databaseName, driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return &Migrator{migrate: instance, db: db, logger: logger}, nil
}

// Up applies every pending migration.
func (migrator *Migrator) Up() error {
	err := migrator.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		migrator.logger.Info("schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	status, err := migrator.Status()
	if err != nil {
		return err
	}
	migrator.logger.Info("schema migrated", zap.Uint("version", status.Version))
	return nil
}

// Down rolls back every migration.
func (migrator *Migrator) Down() error {
	err := migrator.migrate.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		migrator.logger.Info("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	migrator.logger.Info("schema rolled back")
	return nil
}

// Status reports the current schema version.
func (migrator *Migrator) Status() (Status, error) {
	version, dirty, err := migrator.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("migrate version: %w", err)
	}
	return Status{Version: version, Dirty: dirty, Applied: true}, nil
}

// Close releases the migration source and the database handle.
func (migrator *Migrator) Close() error {
	sourceErr, databaseErr := migrator.migrate.Close()
	return errors.Join(sourceErr, databaseErr)
}

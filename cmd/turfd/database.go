package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/turf/internal/store/gormstore"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	driverPostgres    = "postgres"
	driverSQLite      = "sqlite"
	defaultSQLiteFile = "turf.db"
	sqliteMemory      = ":memory:"
)

// databaseTarget is a parsed --database-url. For sqlite, location is the
// database file; for postgres it is the original URL.
type databaseTarget struct {
	driver   string
	location string
}

// parseDatabaseURL accepts postgres:// and postgresql:// URLs, sqlite:// URLs
// and bare sqlite file paths.
func parseDatabaseURL(raw string) (databaseTarget, error) {
	if !strings.Contains(raw, "://") {
		return databaseTarget{driver: driverSQLite, location: sqliteLocation(raw)}, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return databaseTarget{}, fmt.Errorf("parse database url: %w", err)
	}
	switch parsed.Scheme {
	case "postgres", "postgresql":
		return databaseTarget{driver: driverPostgres, location: raw}, nil
	case driverSQLite:
		location := parsed.Path
		if location == "" || location == "/" {
			location = parsed.Host
		}
		return databaseTarget{driver: driverSQLite, location: sqliteLocation(location)}, nil
	default:
		return databaseTarget{}, fmt.Errorf("unsupported database scheme %q", parsed.Scheme)
	}
}

func sqliteLocation(path string) string {
	switch path {
	case "", "/":
		return defaultSQLiteFile
	case sqliteMemory:
		return path
	}
	return filepath.Clean(path)
}

func (target databaseTarget) dialector() gorm.Dialector {
	if target.driver == driverPostgres {
		return postgres.Open(target.location)
	}
	return sqlite.Open(target.location)
}

// open connects to the target and returns the handle with its closer. A sqlite
// file's parent directory is created first.
func (target databaseTarget) open(ctx context.Context) (*gorm.DB, func() error, error) {
	if target.driver == driverSQLite && target.location != sqliteMemory {
		if err := os.MkdirAll(filepath.Dir(target.location), 0o755); err != nil {
			return nil, nil, fmt.Errorf("sqlite directory: %w", err)
		}
	}
	db, err := gorm.Open(target.dialector(), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if target.driver == driverSQLite {
		// one writer at a time or concurrent commits hit SQLITE_BUSY
		pool.SetMaxOpenConns(1)
	}
	return db.WithContext(ctx), pool.Close, nil
}

// syncSchema creates sqlite tables from the models. Postgres is left to
// `turfd migrate up`.
func (target databaseTarget) syncSchema(db *gorm.DB) error {
	if target.driver != driverSQLite {
		return nil
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

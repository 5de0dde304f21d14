package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds storage settings
type Config struct {
	Driver string
	DSN    string

	PoolMin int
	PoolMax int

	BatchSize      int
	UserCacheSize  int
	AttemptedLimit int

	SessionWindow time.Duration
	SessionLimit  int
}

// DefaultConfig returns the storage settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Driver:         DriverSQLite,
		DSN:            filepath.Join("data", "theorybot.db"),
		PoolMin:        3,
		PoolMax:        20,
		BatchSize:      100,
		UserCacheSize:  10000,
		AttemptedLimit: 1000,
		SessionWindow:  24 * time.Hour,
		SessionLimit:   10000,
	}
}

// Connect opens the database handle described by cfg
func Connect(cfg Config) (*sqlx.DB, error) {
	if cfg.Driver == DriverSQLite {
		// Create data directory if it doesn't exist
		if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The pool below owns admission, the handle only needs room for it
	db.SetMaxOpenConns(cfg.PoolMax + 1)
	db.SetMaxIdleConns(cfg.PoolMax + 1)

	return db, nil
}

// Migrate brings the schema up to date
func Migrate(ctx context.Context, db *sqlx.DB, driver string) error {
	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db.DB, sub)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case DriverSQLite:
		return goose.DialectSQLite3, "migrations/sqlite", nil
	case DriverPostgres:
		return goose.DialectPostgres, "migrations/postgres", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// pragmasFor returns the statements run once on every new pooled connection
func pragmasFor(driver string) []string {
	if driver != DriverSQLite {
		return nil
	}
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
}

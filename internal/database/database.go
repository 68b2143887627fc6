package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/migrations"
)

// Database wraps the SQL database connection
type Database struct {
	DB     *sql.DB
	Driver string
}

// New creates a new database connection for the configured driver
func New(cfg *config.DatabaseConfig) (*Database, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		db, err = sql.Open("sqlite", cfg.SQLitePath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
		if err == nil {
			// sqlite serializes writers; one connection avoids SQLITE_BUSY
			db.SetMaxOpenConns(1)
		}
	default:
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := getContext(5 * time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, Driver: cfg.Driver}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// RunMigrations applies all pending embedded migrations
func (d *Database) RunMigrations() error {
	return RunMigrations(d.DB, d.Driver)
}

// RunMigrations applies all pending embedded migrations using goose
func RunMigrations(db *sql.DB, driver string) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect(dialect(driver)); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version
func MigrationVersion(db *sql.DB, driver string) (int64, error) {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(dialect(driver)); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}

func dialect(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}

// HealthCheck performs a health check on the database
func (d *Database) HealthCheck() error {
	ctx, cancel := getContext(5 * time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// getContext creates a context with timeout
func getContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

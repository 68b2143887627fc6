package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/internal/database"
)

// NewSQLiteDB opens a migrated sqlite database in a temp dir
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "reviewflow.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db.DB
}

// NewPostgresDB starts a PostgreSQL container and returns a migrated
// connection. Skipped with -short.
func NewPostgresDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18",
		postgres.WithDatabase("reviewflow_test"),
		postgres.WithUsername("reviewflow_test"),
		postgres.WithPassword("reviewflow_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
	if err := database.RunMigrations(db, "postgres"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// VaultEndpoint holds the address and token of a dev-mode Vault
type VaultEndpoint struct {
	Addr  string
	Token string
}

// NewVault starts a dev-mode Vault container. Skipped with -short.
func NewVault(t *testing.T) VaultEndpoint {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := vault.Run(ctx,
		"hashicorp/vault:1.15",
		vault.WithToken("test-token"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Vault server started!").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start Vault container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate Vault container: %v", err)
		}
	})

	addr, err := container.HttpHostAddress(ctx)
	if err != nil {
		t.Fatalf("Failed to get Vault address: %v", err)
	}
	if !strings.HasPrefix(addr, "http") {
		addr = fmt.Sprintf("http://%s", addr)
	}
	return VaultEndpoint{Addr: addr, Token: "test-token"}
}

// SeedEmployee inserts an employee row
func SeedEmployee(t *testing.T, db *sql.DB, id, name string, managerID *string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO employees (id, name, email, manager_id) VALUES ($1, $2, $3, $4)`,
		id, name, id+"@example.com", managerID)
	if err != nil {
		t.Fatalf("Failed to seed employee %s: %v", id, err)
	}
}

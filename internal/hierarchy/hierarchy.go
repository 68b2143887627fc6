// Package hierarchy answers reporting-line questions from the employees table
package hierarchy

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// SQLChecker walks the manager_id chain with a recursive query
type SQLChecker struct {
	db *sql.DB
}

// NewSQLChecker creates a checker backed by db
func NewSQLChecker(db *sql.DB) *SQLChecker {
	return &SQLChecker{db: db}
}

// IsInHierarchy reports whether employeeID reports to managerID directly or
// through any number of intermediate managers. UNION stops on cycles.
func (c *SQLChecker) IsInHierarchy(ctx context.Context, managerID, employeeID string) (bool, error) {
	if managerID == "" || employeeID == "" || managerID == employeeID {
		return false, nil
	}

	query := `
		WITH RECURSIVE reports(id) AS (
			SELECT id FROM employees WHERE manager_id = $1
			UNION
			SELECT e.id FROM employees e JOIN reports r ON e.manager_id = r.id
		)
		SELECT EXISTS (SELECT 1 FROM reports WHERE id = $2)
	`

	var found bool
	if err := c.db.QueryRowContext(ctx, query, managerID, employeeID).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to query reporting line: %w", err)
	}
	return found, nil
}

// Checker is the lookup decorated by CachedChecker
type Checker interface {
	IsInHierarchy(ctx context.Context, managerID, employeeID string) (bool, error)
}

// Cache is the subset of the redis client used for caching
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedChecker caches lookups in redis. Redis failures fall through to the
// underlying checker.
type CachedChecker struct {
	next   Checker
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedChecker decorates next with a redis cache
func NewCachedChecker(next Checker, cache Cache, ttl time.Duration) *CachedChecker {
	return &CachedChecker{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: slog.Default().With("component", "hierarchy_cache"),
	}
}

func cacheKey(managerID, employeeID string) string {
	return "hierarchy:" + managerID + ":" + employeeID
}

// IsInHierarchy returns the cached answer or asks the underlying checker
func (c *CachedChecker) IsInHierarchy(ctx context.Context, managerID, employeeID string) (bool, error) {
	key := cacheKey(managerID, employeeID)

	val, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case err != redis.Nil:
		c.logger.Warn("Hierarchy cache read failed", "key", key, "error", err)
	}

	found, err := c.next.IsInHierarchy(ctx, managerID, employeeID)
	if err != nil {
		return false, err
	}

	v := "0"
	if found {
		v = "1"
	}
	if err := c.cache.Set(ctx, key, v, c.ttl).Err(); err != nil {
		c.logger.Warn("Hierarchy cache write failed", "key", key, "error", err)
	}
	return found, nil
}

package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newEmployeeDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE employees (id TEXT PRIMARY KEY, name TEXT NOT NULL, manager_id TEXT)`)
	require.NoError(t, err)

	// ceo -> lead -> dev -> intern, plus a cycle between a and b
	rows := [][3]any{
		{"ceo", "Chief", nil},
		{"lead", "Lead", "ceo"},
		{"dev", "Dev", "lead"},
		{"intern", "Intern", "dev"},
		{"other", "Other", "ceo"},
		{"a", "A", "b"},
		{"b", "B", "a"},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO employees (id, name, manager_id) VALUES ($1, $2, $3)`, r[0], r[1], r[2])
		require.NoError(t, err)
	}
	return db
}

func TestSQLChecker(t *testing.T) {
	c := NewSQLChecker(newEmployeeDB(t))
	ctx := context.Background()

	tests := []struct {
		manager, employee string
		want              bool
	}{
		{"lead", "dev", true},
		{"lead", "intern", true},
		{"ceo", "intern", true},
		{"lead", "other", false},
		{"dev", "lead", false},
		{"lead", "lead", false},
		{"a", "b", true},
		{"a", "ceo", false},
	}
	for _, tt := range tests {
		got, err := c.IsInHierarchy(ctx, tt.manager, tt.employee)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.manager, tt.employee)
	}
}

type countingChecker struct {
	answer bool
	calls  int
}

func (c *countingChecker) IsInHierarchy(context.Context, string, string) (bool, error) {
	c.calls++
	return c.answer, nil
}

// fakeCache mimics the redis commands used by CachedChecker
type fakeCache struct {
	values  map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.readErr != nil {
		return redis.NewStringResult("", f.readErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestCachedCheckerCachesBothAnswers(t *testing.T) {
	ctx := context.Background()
	for _, answer := range []bool{true, false} {
		next := &countingChecker{answer: answer}
		cache := newFakeCache()
		c := NewCachedChecker(next, cache, time.Minute)

		for range 3 {
			got, err := c.IsInHierarchy(ctx, "lead", "dev")
			require.NoError(t, err)
			assert.Equal(t, answer, got)
		}
		assert.Equal(t, 1, next.calls)
		assert.Equal(t, time.Minute, cache.ttls["hierarchy:lead:dev"])
	}
}

func TestCachedCheckerFallsThroughOnCacheError(t *testing.T) {
	next := &countingChecker{answer: true}
	cache := newFakeCache()
	cache.readErr = errors.New("connection refused")
	c := NewCachedChecker(next, cache, time.Minute)

	got, err := c.IsInHierarchy(context.Background(), "lead", "dev")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 1, next.calls)
}

package database

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// testPostgresStore returns a PostgresStore connected to the test database.
// It skips the test if DATABASE_URL is not set.
func testPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	s, err := NewPostgresStore(dsn, 10*time.Second)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// testTSCounter provides unique timestamps across all tests in the package.
// Starts far in the future so test rows sort above any existing data.
var testTSCounter int64 = 4_000_000_000_000

func nextTS() int64 {
	return atomic.AddInt64(&testTSCounter, 1)
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"

	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/fallback"
	"github.com/msaad732/meme-coin/internal/models"
	redisclient "github.com/msaad732/meme-coin/internal/redis"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestContext(method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func newTestRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := redisclient.NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("creating test redis client: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func newTestLog(t *testing.T, recs ...models.Record) *fallback.Log {
	t.Helper()
	l := fallback.New(filepath.Join(t.TempDir(), "messages.jsonl"))
	for i := range recs {
		if err := l.Append(&recs[i]); err != nil {
			t.Fatalf("seeding fallback log: %v", err)
		}
	}
	return l
}

var errStoreDown = &database.StoreError{Kind: database.ConnectionError, Op: "connect", Err: errors.New("connection refused")}

// ---------------------------------------------------------------------------
// Mock store
// ---------------------------------------------------------------------------

// mockStore implements database.MessageStore.
type mockStore struct {
	LatestFn func(ctx context.Context) (*models.Record, error)
	RecentFn func(ctx context.Context, limit int) ([]models.Record, error)
	PingFn   func(ctx context.Context) error
}

func (m *mockStore) EnsureSchema(context.Context) error            { return nil }
func (m *mockStore) Insert(context.Context, *models.Record) error { return nil }

func (m *mockStore) Latest(ctx context.Context) (*models.Record, error) {
	if m.LatestFn != nil {
		return m.LatestFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) Recent(ctx context.Context, limit int) ([]models.Record, error) {
	if m.RecentFn != nil {
		return m.RecentFn(ctx, limit)
	}
	return []models.Record{}, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

func (m *mockStore) Close() {}

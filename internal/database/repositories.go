package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/msaad732/meme-coin/internal/models"
)

// MaxRecentLimit caps how many rows Recent returns.
const MaxRecentLimit = 500

// MessageStore is the durable store for message records. Implementations
// return *StoreError for every failure.
type MessageStore interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, rec *models.Record) error
	Latest(ctx context.Context) (*models.Record, error)
	Recent(ctx context.Context, limit int) ([]models.Record, error)
	Ping(ctx context.Context) error
	Close()
}

// Open returns the store for dsn without connecting. Postgres URLs and
// key=value DSNs select PostgresStore; sqlite:// and file: select
// SQLiteStore. An empty dsn returns ErrNotConfigured.
func Open(dsn string, connectTimeout time.Duration) (MessageStore, error) {
	switch {
	case dsn == "":
		return nil, ErrNotConfigured
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(dsn, connectTimeout)
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "file:"):
		return NewSQLiteStore(dsn, connectTimeout)
	case strings.Contains(dsn, "="):
		return NewPostgresStore(dsn, connectTimeout)
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", redactDSN(dsn))
	}
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}

// redactDSN strips credentials from a URL-style DSN for log output.
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "<dsn>"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}

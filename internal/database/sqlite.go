package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/msaad732/meme-coin/internal/metrics"
	"github.com/msaad732/meme-coin/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	channel_id INTEGER NOT NULL,
	channel_name TEXT,
	author_id INTEGER NOT NULL,
	author TEXT NOT NULL,
	content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages (ts DESC, id DESC);
`

// SQLiteStore is a MessageStore backed by a local SQLite file, for
// single-host deployments that still want a queryable store.
type SQLiteStore struct {
	handles *handleCache[*sql.DB]
}

// NewSQLiteStore accepts sqlite://path or a file: URI.
func NewSQLiteStore(dsn string, connectTimeout time.Duration) (*SQLiteStore, error) {
	driverDSN, dir, err := sqliteDSN(dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{}
	s.handles = &handleCache[*sql.DB]{
		timeout: connectTimeout,
		open: func(ctx context.Context) (*sql.DB, error) {
			if dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, newError(ConnectionError, "connect", err)
				}
			}
			db, err := sql.Open("sqlite", driverDSN)
			if err != nil {
				return nil, newError(ConnectionError, "connect", err)
			}
			// One writer at a time; SQLite serializes writes anyway.
			db.SetMaxOpenConns(1)
			if err := db.PingContext(ctx); err != nil {
				db.Close()
				return nil, newError(ConnectionError, "connect", err)
			}
			return db, nil
		},
		setup: func(ctx context.Context, db *sql.DB) error {
			if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
				return sqliteSchemaError(err)
			}
			return nil
		},
		probe: func(ctx context.Context, db *sql.DB) error {
			_, err := db.ExecContext(ctx, "SELECT 1")
			return err
		},
		close: func(db *sql.DB) { _ = db.Close() },
		onReconnect: func() {
			metrics.StoreReconnects.WithLabelValues("sqlite").Inc()
			slog.Info("database connection established", "backend", "sqlite")
		},
	}
	return s, nil
}

// sqliteDSN converts the configured URL into a driver DSN and the directory
// that must exist before opening it.
func sqliteDSN(dsn string) (string, string, error) {
	const busyTimeout = "_pragma=busy_timeout(5000)"

	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		if path == "" {
			return "", "", fmt.Errorf("sqlite URL %q has no path", dsn)
		}
		return "file:" + path + "?" + busyTimeout, filepath.Dir(path), nil
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + busyTimeout, "", nil
	}
	return dsn + "?" + busyTimeout, "", nil
}

// EnsureSchema creates the messages table if it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	db, err := s.conn(ctx, "ensure schema")
	if err != nil {
		return err
	}
	if err := s.handles.setup(ctx, db); err != nil {
		s.handles.invalidate(db)
		return s.fail(err)
	}
	return nil
}

// Insert writes rec as a single row and drops the handle on failure.
func (s *SQLiteStore) Insert(ctx context.Context, rec *models.Record) error {
	start := time.Now()
	db, err := s.conn(ctx, "insert")
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO messages (ts, channel_id, channel_name, author_id, author, content)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.ChannelID, rec.ChannelName, rec.AuthorID, rec.Author, rec.Content,
	)
	observe("sqlite", "insert", start)
	if err != nil {
		s.handles.invalidate(db)
		return s.fail(newError(WriteError, "insert", err))
	}
	return nil
}

// Latest returns the newest record, or nil when the table is empty.
func (s *SQLiteStore) Latest(ctx context.Context) (*models.Record, error) {
	start := time.Now()
	db, err := s.conn(ctx, "latest")
	if err != nil {
		return nil, err
	}

	rec, err := scanSQLRecord(db.QueryRowContext(ctx, selectRecord+` ORDER BY ts DESC, id DESC LIMIT 1`))
	observe("sqlite", "latest", start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.handles.invalidate(db)
		return nil, s.fail(newError(QueryError, "latest", err))
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]models.Record, error) {
	start := time.Now()
	db, err := s.conn(ctx, "recent")
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectRecord+` ORDER BY ts DESC, id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		s.handles.invalidate(db)
		return nil, s.fail(newError(QueryError, "recent", err))
	}
	defer rows.Close()

	records := make([]models.Record, 0, clampLimit(limit))
	for rows.Next() {
		rec, err := scanSQLRecord(rows)
		if err != nil {
			return nil, s.fail(newError(QueryError, "recent", err))
		}
		records = append(records, *rec)
	}
	observe("sqlite", "recent", start)
	if err := rows.Err(); err != nil {
		s.handles.invalidate(db)
		return nil, s.fail(newError(QueryError, "recent", err))
	}
	return records, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	_, err := s.conn(ctx, "ping")
	return err
}

// Close closes the cached handle.
func (s *SQLiteStore) Close() {
	s.handles.reset()
}

func (s *SQLiteStore) conn(ctx context.Context, op string) (*sql.DB, error) {
	db, err := s.handles.get(ctx)
	if err != nil {
		return nil, s.fail(newError(ConnectionError, op, err))
	}
	return db, nil
}

func (s *SQLiteStore) fail(err error) error {
	metrics.StoreErrors.WithLabelValues("sqlite", KindOf(err).String()).Inc()
	return err
}

// sqliteSchemaError marks DDL failures that will not go away on retry
// (read-only file, permissions, corrupt or foreign database) as SchemaError.
// Busy, locked and I/O failures stay retryable.
func sqliteSchemaError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH,
			sqlite3.SQLITE_ERROR, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			slog.Error("schema creation rejected, store disabled for this session", "backend", "sqlite", "error", err)
			return newError(SchemaError, "ensure schema", err)
		}
	}
	return newError(ConnectionError, "ensure schema", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLRecord(row rowScanner) (*models.Record, error) {
	var (
		rec         models.Record
		channelName sql.NullString
	)
	if err := row.Scan(&rec.Timestamp, &rec.ChannelID, &channelName, &rec.AuthorID, &rec.Author, &rec.Content); err != nil {
		return nil, err
	}
	if channelName.Valid {
		name := channelName.String
		rec.ChannelName = &name
	}
	return &rec, nil
}

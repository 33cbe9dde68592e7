package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/msaad732/meme-coin/internal/metrics"
	"github.com/msaad732/meme-coin/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const postgresSchemaFile = "migrations/000001_create_messages.up.sql"

const selectRecord = `SELECT ts, channel_id, channel_name, author_id, author, content FROM messages`

// NewPostgresPool opens a small pool and verifies it with a ping. The
// listener writes one row at a time, so a handful of connections is plenty.
func NewPostgresPool(ctx context.Context, databaseURL string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 4
	config.MinConns = 0
	config.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PostgresStore is a MessageStore backed by PostgreSQL. It connects lazily
// and keeps one pool, replaced whenever it stops answering.
type PostgresStore struct {
	schema  string
	handles *handleCache[*pgxpool.Pool]
}

// NewPostgresStore validates dsn and returns an unconnected store.
func NewPostgresStore(dsn string, connectTimeout time.Duration) (*PostgresStore, error) {
	if _, err := pgxpool.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	schema, err := migrationsFS.ReadFile(postgresSchemaFile)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}

	s := &PostgresStore{schema: string(schema)}
	s.handles = &handleCache[*pgxpool.Pool]{
		timeout: connectTimeout,
		open: func(ctx context.Context) (*pgxpool.Pool, error) {
			pool, err := NewPostgresPool(ctx, dsn, connectTimeout)
			if err != nil {
				return nil, newError(ConnectionError, "connect", classifyPg(err))
			}
			return pool, nil
		},
		setup: s.createSchema,
		probe: func(ctx context.Context, pool *pgxpool.Pool) error {
			_, err := pool.Exec(ctx, "SELECT 1")
			return err
		},
		close: func(pool *pgxpool.Pool) { pool.Close() },
		onReconnect: func() {
			metrics.StoreReconnects.WithLabelValues("postgres").Inc()
			slog.Info("database connection established", "backend", "postgres")
		},
	}
	return s, nil
}

func (s *PostgresStore) createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, s.schema); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			slog.Error("schema creation rejected, store disabled for this session", "code", pgErr.Code, "error", pgErr.Message)
			return newError(SchemaError, "ensure schema", err)
		}
		return newError(ConnectionError, "ensure schema", classifyPg(err))
	}
	return nil
}

// EnsureSchema creates the messages table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.conn(ctx, "ensure schema")
	if err != nil {
		return err
	}
	if err := s.createSchema(ctx, pool); err != nil {
		s.handles.invalidate(pool)
		return s.fail(err)
	}
	return nil
}

// Insert writes rec as a single row. On failure the pool is dropped so the
// next call reconnects; the caller decides what to do with the record.
func (s *PostgresStore) Insert(ctx context.Context, rec *models.Record) error {
	start := time.Now()
	pool, err := s.conn(ctx, "insert")
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO messages (ts, channel_id, channel_name, author_id, author, content)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Timestamp, rec.ChannelID, rec.ChannelName, rec.AuthorID, rec.Author, rec.Content,
	)
	observe("postgres", "insert", start)
	if err != nil {
		s.handles.invalidate(pool)
		return s.fail(newError(WriteError, "insert", classifyPg(err)))
	}
	return nil
}

// Latest returns the newest record, or nil when the table is empty.
func (s *PostgresStore) Latest(ctx context.Context) (*models.Record, error) {
	start := time.Now()
	pool, err := s.conn(ctx, "latest")
	if err != nil {
		return nil, err
	}

	rec := &models.Record{}
	err = pool.QueryRow(ctx, selectRecord+` ORDER BY ts DESC, id DESC LIMIT 1`).Scan(
		&rec.Timestamp, &rec.ChannelID, &rec.ChannelName, &rec.AuthorID, &rec.Author, &rec.Content,
	)
	observe("postgres", "latest", start)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.handles.invalidate(pool)
		return nil, s.fail(newError(QueryError, "latest", classifyPg(err)))
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.Record, error) {
	start := time.Now()
	pool, err := s.conn(ctx, "recent")
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, selectRecord+` ORDER BY ts DESC, id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		s.handles.invalidate(pool)
		return nil, s.fail(newError(QueryError, "recent", classifyPg(err)))
	}
	defer rows.Close()

	records := make([]models.Record, 0, clampLimit(limit))
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.Timestamp, &r.ChannelID, &r.ChannelName, &r.AuthorID, &r.Author, &r.Content); err != nil {
			return nil, s.fail(newError(QueryError, "recent", err))
		}
		records = append(records, r)
	}
	observe("postgres", "recent", start)
	if err := rows.Err(); err != nil {
		s.handles.invalidate(pool)
		return nil, s.fail(newError(QueryError, "recent", classifyPg(err)))
	}
	return records, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.conn(ctx, "ping")
	return err
}

// Close closes the cached pool.
func (s *PostgresStore) Close() {
	s.handles.reset()
}

func (s *PostgresStore) conn(ctx context.Context, op string) (*pgxpool.Pool, error) {
	pool, err := s.handles.get(ctx)
	if err != nil {
		return nil, s.fail(newError(ConnectionError, op, err))
	}
	return pool, nil
}

func (s *PostgresStore) fail(err error) error {
	metrics.StoreErrors.WithLabelValues("postgres", KindOf(err).String()).Inc()
	return err
}

// classifyPg maps pgconn timeouts onto context.DeadlineExceeded so newError
// reports them as TimeoutError.
func classifyPg(err error) error {
	if pgconn.Timeout(err) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func observe(backend, op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

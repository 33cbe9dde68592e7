package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/msaad732/meme-coin/internal/models"
)

func testSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("sqlite://"+filepath.Join(t.TempDir(), "data", "memes.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func testRecord(ts int64, content string) *models.Record {
	return &models.Record{
		Timestamp:   ts,
		ChannelID:   42,
		ChannelName: models.StringPtr("general"),
		AuthorID:    7,
		Author:      "alice",
		Content:     content,
	}
}

func TestSQLiteStore_EnsureSchemaIdempotent(t *testing.T) {
	s := testSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema #%d: %v", i+1, err)
		}
	}
}

func TestSQLiteStore_LatestEmpty(t *testing.T) {
	s := testSQLiteStore(t)

	rec, err := s.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if rec != nil {
		t.Errorf("Latest on empty table = %+v, want nil", rec)
	}
}

func TestSQLiteStore_InsertAndLatest(t *testing.T) {
	s := testSQLiteStore(t)
	ctx := context.Background()

	for _, ts := range []int64{100, 300, 200} {
		if err := s.Insert(ctx, testRecord(ts, "gm")); err != nil {
			t.Fatalf("Insert(%d): %v", ts, err)
		}
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Timestamp != 300 {
		t.Fatalf("Latest = %+v, want ts 300", latest)
	}
	if latest.ChannelName == nil || *latest.ChannelName != "general" {
		t.Errorf("ChannelName = %v, want general", latest.ChannelName)
	}
	if latest.Author != "alice" || latest.AuthorID != 7 || latest.ChannelID != 42 {
		t.Errorf("unexpected record fields: %+v", latest)
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []int64{300, 200, 100}
	if len(recent) != len(want) {
		t.Fatalf("Recent returned %d records, want %d", len(recent), len(want))
	}
	for i, ts := range want {
		if recent[i].Timestamp != ts {
			t.Errorf("recent[%d].Timestamp = %d, want %d", i, recent[i].Timestamp, ts)
		}
	}
}

func TestSQLiteStore_NullChannelName(t *testing.T) {
	s := testSQLiteStore(t)
	ctx := context.Background()

	rec := testRecord(1000, "dm me")
	rec.ChannelName = nil
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ChannelName != nil {
		t.Errorf("ChannelName = %q, want nil", *got.ChannelName)
	}
	if got.ChannelLabel() != "42" {
		t.Errorf("ChannelLabel() = %q, want 42", got.ChannelLabel())
	}
}

func TestSQLiteStore_RecentLimit(t *testing.T) {
	s := testSQLiteStore(t)
	ctx := context.Background()

	for ts := int64(1); ts <= 5; ts++ {
		if err := s.Insert(ctx, testRecord(ts, "wagmi")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Timestamp != 5 || recent[1].Timestamp != 4 {
		t.Errorf("Recent(2) = %+v", recent)
	}
}

func TestSQLiteStore_ReconnectsAfterClosedHandle(t *testing.T) {
	s := testSQLiteStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, testRecord(1, "first")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	db, err := s.handles.get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	db.Close()

	if err := s.Insert(ctx, testRecord(2, "second")); err != nil {
		t.Fatalf("Insert after closed handle: %v", err)
	}
	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Content != "second" {
		t.Errorf("Latest.Content = %q, want second", latest.Content)
	}
}

func TestSQLiteStore_InsertFailureRecovers(t *testing.T) {
	s := testSQLiteStore(t)
	ctx := context.Background()

	db, err := s.handles.get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE messages"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	err = s.Insert(ctx, testRecord(1, "lost"))
	if err == nil {
		t.Fatal("expected insert to fail with the table dropped")
	}
	if KindOf(err) != WriteError {
		t.Errorf("KindOf(err) = %v, want write", KindOf(err))
	}

	// The failed handle was dropped; reconnecting re-creates the table.
	if err := s.Insert(ctx, testRecord(2, "kept")); err != nil {
		t.Fatalf("Insert after recovery: %v", err)
	}
}

func TestSQLiteStore_SchemaRejectionIsSticky(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readonly.db")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("creating db file: %v", err)
	}

	s, err := NewSQLiteStore("file:"+path+"?mode=ro", time.Second)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	err = s.Insert(ctx, testRecord(1, "gm"))
	if KindOf(err) != SchemaError {
		t.Fatalf("first insert: KindOf(err) = %v (%v), want schema", KindOf(err), err)
	}
	err = s.Insert(ctx, testRecord(2, "gm"))
	if KindOf(err) != SchemaError {
		t.Fatalf("second insert: KindOf(err) = %v, want schema", KindOf(err))
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in      string
		wantDSN string
		wantDir string
	}{
		{"sqlite://data/memes.db", "file:data/memes.db?_pragma=busy_timeout(5000)", "data"},
		{"file:memes.db", "file:memes.db?_pragma=busy_timeout(5000)", ""},
		{"file:memes.db?mode=ro", "file:memes.db?mode=ro&_pragma=busy_timeout(5000)", ""},
	}
	for _, tt := range tests {
		dsn, dir, err := sqliteDSN(tt.in)
		if err != nil {
			t.Fatalf("sqliteDSN(%q): %v", tt.in, err)
		}
		if dsn != tt.wantDSN || dir != tt.wantDir {
			t.Errorf("sqliteDSN(%q) = (%q, %q), want (%q, %q)", tt.in, dsn, dir, tt.wantDSN, tt.wantDir)
		}
	}

	if _, _, err := sqliteDSN("sqlite://"); err == nil {
		t.Error("expected error for sqlite URL without path")
	}
}

func TestSQLiteStore_LockedDatabaseIsRetryable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")
	ctx := context.Background()

	holder, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("opening holder: %v", err)
	}
	defer holder.Close()
	lock, err := holder.Conn(ctx)
	if err != nil {
		t.Fatalf("holder conn: %v", err)
	}
	if _, err := lock.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		t.Fatalf("BEGIN EXCLUSIVE: %v", err)
	}

	s, err := NewSQLiteStore("file:"+path, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	err = s.Insert(ctx, testRecord(1, "gm"))
	if err == nil {
		t.Fatal("expected insert to fail while the database is locked")
	}
	if KindOf(err) == SchemaError {
		t.Fatalf("a locked database must not disable the store: %v", err)
	}

	if _, err := lock.ExecContext(ctx, "COMMIT"); err != nil {
		t.Fatalf("COMMIT: %v", err)
	}
	lock.Close()

	if err := s.Insert(ctx, testRecord(2, "gm")); err != nil {
		t.Fatalf("insert after the lock was released: %v", err)
	}
}

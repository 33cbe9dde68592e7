package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/models"
)

func call(t *testing.T) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/latest", nil)
	rec := httptest.NewRecorder()
	Handler(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestHandler_NotConfigured(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	rec, body := call(t)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body["error"] != "DATABASE_URL not configured: store not configured" {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_UnsupportedURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "mysql://localhost/memes")

	rec, body := call(t)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body["error"] == nil {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_EmptyThenFound(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "memes.db")
	t.Setenv("DATABASE_URL", dsn)

	rec, body := call(t)
	if rec.Code != http.StatusNotFound || body["message"] != "No messages found" {
		t.Fatalf("empty store: status %d body %v", rec.Code, body)
	}

	store, err := database.Open(dsn, 2*time.Second)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()
	if err := store.Insert(context.Background(), &models.Record{Timestamp: 1000, ChannelID: 42, AuthorID: 7, Author: "alice", Content: "gm"}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	rec, body = call(t)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["content"] != "gm" || body["channel_name"] != nil {
		t.Errorf("body = %v", body)
	}
}

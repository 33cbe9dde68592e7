package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msaad732/meme-coin/internal/config"
	"github.com/msaad732/meme-coin/internal/fallback"
	"github.com/msaad732/meme-coin/internal/models"
)

func TestRunTail_UsesLoadedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.jsonl")
	log := fallback.New(path)
	for _, rec := range []*models.Record{
		{Timestamp: 1000, ChannelID: 42, ChannelName: models.StringPtr("general"), AuthorID: 7, Author: "alice", Content: "gm"},
		{Timestamp: 2000, ChannelID: 42, ChannelName: models.StringPtr("general"), AuthorID: 8, Author: "bob", Content: "wagmi"},
	} {
		if err := log.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	t.Setenv("DATABASE_URL", "")
	t.Setenv("FALLBACK_PATH", path)
	t.Setenv("DB_CONNECT_TIMEOUT", "250ms")
	cfg := config.Load()
	if cfg.ConnectTimeout.Milliseconds() != 250 {
		t.Fatalf("ConnectTimeout = %v, want 250ms", cfg.ConnectTimeout)
	}

	var stdout, stderr bytes.Buffer
	if code := runTail(cfg, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output = %q", stdout.String())
	}
	if lines[0] != "source: fallback, 2 messages" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1970-01-01 00:33:20 UTC  #general  bob: wagmi" {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestRunTail_InvalidLimit(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	var stdout, stderr bytes.Buffer
	if code := runTail(config.Load(), []string{"--limit", "lots"}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "--limit") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

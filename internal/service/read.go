package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/fallback"
	"github.com/msaad732/meme-coin/internal/models"
)

// Dashboard limit bounds.
const (
	MinLimit     = 10
	MaxLimit     = database.MaxRecentLimit
	DefaultLimit = 100
	LimitStep    = 10
)

// Record sources reported by Recent.
const (
	SourceStore    = "store"
	SourceFallback = "fallback"
)

// MessageNotConfigured is the error text when no store URL is set.
const MessageNotConfigured = "DATABASE_URL not configured"

type LatestStatus int

const (
	Found LatestStatus = iota + 1
	NotFound
	Unavailable
)

func (s LatestStatus) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// LatestResult is the outcome of a latest-record lookup. Record is set only
// when Status is Found; Err only when Status is Unavailable.
type LatestResult struct {
	Status LatestStatus
	Record *models.Record
	Err    error
}

// RecentResult is a page of records for the dashboard. Warning is set when
// the store was configured but could not be read and the fallback log was
// used instead.
type RecentResult struct {
	Records []models.Record
	Source  string
	Warning string
	Skipped int
}

// ReadService answers the read side: the latest record and recent listings.
type ReadService struct {
	store database.MessageStore
	log   *fallback.Log
}

// NewReadService creates a ReadService. store may be nil, in which case
// Latest is always Unavailable and Recent reads the fallback log.
func NewReadService(store database.MessageStore, log *fallback.Log) *ReadService {
	return &ReadService{store: store, log: log}
}

// HasStore reports whether a durable store is configured.
func (s *ReadService) HasStore() bool {
	return s.store != nil
}

// Store returns the configured store, or nil.
func (s *ReadService) Store() database.MessageStore {
	return s.store
}

// Latest returns the newest stored record. It never consults the fallback
// log.
func (s *ReadService) Latest(ctx context.Context) LatestResult {
	if s.store == nil {
		return LatestResult{Status: Unavailable, Err: fmt.Errorf("%s: %w", MessageNotConfigured, database.ErrNotConfigured)}
	}
	rec, err := s.store.Latest(ctx)
	if err != nil {
		return LatestResult{Status: Unavailable, Err: err}
	}
	if rec == nil {
		return LatestResult{Status: NotFound}
	}
	return LatestResult{Status: Found, Record: rec}
}

// Recent returns up to limit records newest first, clamping limit to
// [MinLimit, MaxLimit]. A store read failure falls back to the local log
// with a warning.
func (s *ReadService) Recent(ctx context.Context, limit int) (RecentResult, error) {
	limit = ClampLimit(limit)

	var warning string
	if s.store != nil {
		records, err := s.store.Recent(ctx, limit)
		if err == nil {
			return RecentResult{Records: records, Source: SourceStore}, nil
		}
		slog.Warn("store read failed, serving fallback log", "error", err)
		warning = fmt.Sprintf("Database read failed, showing local fallback log: %v", err)
	}

	if s.log == nil {
		return RecentResult{Records: []models.Record{}, Source: SourceFallback, Warning: warning}, nil
	}
	records, skipped, err := s.log.ReadAll(limit)
	if err != nil {
		return RecentResult{}, fmt.Errorf("reading fallback log: %w", err)
	}
	return RecentResult{Records: records, Source: SourceFallback, Warning: warning, Skipped: skipped}, nil
}

// ClampLimit bounds n to [MinLimit, MaxLimit]; n <= 0 selects DefaultLimit.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n < MinLimit:
		return MinLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// ParseLimit parses a limit query value. Empty selects DefaultLimit, integers
// are clamped and anything else is a bad request.
func ParseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, BadRequest("INVALID_LIMIT", fmt.Sprintf("limit must be an integer between %d and %d", MinLimit, MaxLimit))
	}
	return max(MinLimit, min(n, MaxLimit)), nil
}

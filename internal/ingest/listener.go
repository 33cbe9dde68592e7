// Package ingest turns gateway message events into stored records.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/msaad732/meme-coin/internal/audit"
	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/fallback"
	"github.com/msaad732/meme-coin/internal/gateway"
	"github.com/msaad732/meme-coin/internal/metrics"
	"github.com/msaad732/meme-coin/internal/models"
	"github.com/msaad732/meme-coin/internal/snowflake"
)

// State is what the listener is doing right now.
type State int32

const (
	AwaitingEvent State = iota
	Processing
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "awaiting_event"
}

// Event outcomes, used as metric labels.
const (
	OutcomeStored         = "stored"
	OutcomeFallback       = "fallback"
	OutcomeIgnoredSelf    = "ignored_self"
	OutcomeIgnoredChannel = "ignored_channel"
	OutcomeLost           = "lost"
)

var errWritePoolFull = errors.New("write pool full")

const (
	defaultConcurrency  = 8
	defaultWriteTimeout = 30 * time.Second
)

type Config struct {
	// Store is the durable store. Nil means every record goes to Fallback.
	Store    database.MessageStore
	Fallback *fallback.Log
	Audit    *audit.Logger

	// AllowedChannels lists the channels whose messages are captured. An
	// empty list captures nothing.
	AllowedChannels []int64

	// SelfID is the bot's own user ID, if known before the gateway reports it.
	SelfID int64

	Concurrency  int
	WriteTimeout time.Duration
	Clock        func() time.Time
}

// Listener filters message events and persists the ones that qualify. It is
// driven by the gateway's read loop, one event at a time; only the durable
// write leaves that goroutine.
type Listener struct {
	store        database.MessageStore
	log          *fallback.Log
	audit        *audit.Logger
	allowed      map[int64]struct{}
	configSelf   int64
	writeTimeout time.Duration
	clock        func() time.Time

	selfID atomic.Int64
	state  atomic.Int32
	writes errgroup.Group
}

func New(cfg Config) *Listener {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Fallback == nil {
		cfg.Fallback = fallback.New("")
	}

	l := &Listener{
		store:        cfg.Store,
		log:          cfg.Fallback,
		audit:        cfg.Audit,
		allowed:      make(map[int64]struct{}, len(cfg.AllowedChannels)),
		configSelf:   cfg.SelfID,
		writeTimeout: cfg.WriteTimeout,
		clock:        cfg.Clock,
	}
	for _, id := range cfg.AllowedChannels {
		l.allowed[id] = struct{}{}
	}
	l.writes.SetLimit(cfg.Concurrency)
	return l
}

// SetSelfID records the bot's identity as reported by the gateway.
func (l *Listener) SetSelfID(id snowflake.ID) {
	l.selfID.Store(id.Int64())
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

// HandleMessage processes one MESSAGE_CREATE event. When a store is
// configured the write is offloaded and HandleMessage returns once it is
// scheduled. Without a store, or when every write worker is busy, the
// record is appended to the fallback log before returning.
func (l *Listener) HandleMessage(ctx context.Context, m gateway.MessageCreate) {
	l.state.Store(int32(Processing))
	defer l.state.Store(int32(AwaitingEvent))

	if l.isSelf(m.AuthorID.Int64()) {
		metrics.EventsTotal.WithLabelValues(OutcomeIgnoredSelf).Inc()
		return
	}
	if _, ok := l.allowed[m.ChannelID.Int64()]; !ok {
		metrics.EventsTotal.WithLabelValues(OutcomeIgnoredChannel).Inc()
		return
	}

	rec := &models.Record{
		Timestamp:   l.clock().Unix(),
		ChannelID:   m.ChannelID.Int64(),
		ChannelName: models.StringPtr(m.ChannelName),
		AuthorID:    m.AuthorID.Int64(),
		Author:      m.AuthorName,
		Content:     strings.TrimSpace(m.Content),
	}
	l.audit.Record(rec)

	if l.store == nil {
		l.appendFallback(rec, nil)
		return
	}

	// Writes outlive the event: shutdown cancels ctx but Wait drains them.
	wctx := context.WithoutCancel(ctx)
	metrics.InflightWrites.Inc()
	scheduled := l.writes.TryGo(func() error {
		defer metrics.InflightWrites.Dec()
		l.write(wctx, rec)
		return nil
	})
	if !scheduled {
		// Every worker is busy on a slow store; the read loop must not wait.
		metrics.InflightWrites.Dec()
		l.appendFallback(rec, errWritePoolFull)
	}
}

// Wait blocks until every offloaded write has finished.
func (l *Listener) Wait() {
	_ = l.writes.Wait()
}

func (l *Listener) write(ctx context.Context, rec *models.Record) {
	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()

	if err := l.store.Insert(ctx, rec); err != nil {
		l.appendFallback(rec, err)
		return
	}
	metrics.EventsTotal.WithLabelValues(OutcomeStored).Inc()
}

func (l *Listener) appendFallback(rec *models.Record, storeErr error) {
	if storeErr != nil {
		slog.Warn("store write did not complete, using fallback log",
			"kind", database.KindOf(storeErr).String(), "channel_id", rec.ChannelID, "error", storeErr)
	}
	if err := l.log.Append(rec); err != nil {
		metrics.EventsTotal.WithLabelValues(OutcomeLost).Inc()
		slog.Error("record lost: fallback append failed",
			"path", l.log.Path(), "channel_id", rec.ChannelID, "ts", rec.Timestamp, "error", err, "store_error", storeErr)
		return
	}
	metrics.EventsTotal.WithLabelValues(OutcomeFallback).Inc()
}

func (l *Listener) isSelf(authorID int64) bool {
	if self := l.selfID.Load(); self != 0 && authorID == self {
		return true
	}
	return l.configSelf != 0 && authorID == l.configSelf
}

// Package fallback is the local append-only record log used when the durable
// store is absent or failing.
package fallback

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/msaad732/meme-coin/internal/metrics"
	"github.com/msaad732/meme-coin/internal/models"
)

// DefaultPath is where the log lives unless FALLBACK_PATH says otherwise.
const DefaultPath = "data/messages.jsonl"

// maxLineSize bounds a single record line; longer lines are skipped as
// malformed. Discord caps message content at 4000 characters.
const maxLineSize = 1 << 20

// Log appends records as JSON lines. Appends are serialized within the
// process and each record is written with a single Write call, so lines
// never interleave.
type Log struct {
	path string
	mu   sync.Mutex
}

// New returns a Log writing to path. The file is created on first append.
func New(path string) *Log {
	if path == "" {
		path = DefaultPath
	}
	return &Log{path: path}
}

// Path returns the file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes rec as one line.
func (l *Log) Append(rec *models.Record) error {
	line, err := encode(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating fallback directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening fallback log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("appending to fallback log: %w", err)
	}
	return f.Close()
}

// ReadAll returns up to limit records sorted newest first, along with the
// number of malformed lines skipped. Records sharing a timestamp keep the
// later line first. A missing file yields no records; limit < 1 means all.
func (l *Log) ReadAll(limit int) ([]models.Record, int, error) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Record{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading fallback log: %w", err)
	}

	var (
		records []models.Record
		skipped int
		lineNo  int
	)
	for rest := data; len(rest) > 0; {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte{'\n'})
		lineNo++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		rec, err := decodeLine(line)
		if err != nil {
			skipped++
			slog.Debug("skipping malformed fallback line", "path", l.path, "line", lineNo, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		metrics.FallbackMalformedLines.Add(float64(skipped))
	}

	// File order is append order; reverse first so the stable sort keeps
	// the newest line first among equal timestamps.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, skipped, nil
}

// lineRecord mirrors models.Record with pointers so absent keys are
// distinguishable from zero values.
type lineRecord struct {
	Timestamp   *int64  `json:"ts"`
	ChannelID   *int64  `json:"channel_id"`
	ChannelName *string `json:"channel_name"`
	AuthorID    *int64  `json:"author_id"`
	Author      *string `json:"author"`
	Content     *string `json:"content"`
}

var errMissingField = errors.New("missing required field")

// decodeLine parses one line, rejecting lines over maxLineSize and objects
// without every required field.
func decodeLine(line []byte) (models.Record, error) {
	if len(line) > maxLineSize {
		return models.Record{}, fmt.Errorf("line exceeds %d bytes", maxLineSize)
	}
	var lr lineRecord
	if err := json.Unmarshal(line, &lr); err != nil {
		return models.Record{}, err
	}
	if lr.Timestamp == nil || lr.ChannelID == nil || lr.AuthorID == nil || lr.Author == nil || lr.Content == nil {
		return models.Record{}, errMissingField
	}
	return models.Record{
		Timestamp:   *lr.Timestamp,
		ChannelID:   *lr.ChannelID,
		ChannelName: lr.ChannelName,
		AuthorID:    *lr.AuthorID,
		Author:      *lr.Author,
		Content:     *lr.Content,
	}, nil
}

// encode renders rec as a single JSON line without escaping non-ASCII or
// HTML characters.
func encode(rec *models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

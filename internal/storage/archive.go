package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
)

// ErrNothingToArchive is returned when the fallback log does not exist or is
// empty.
var ErrNothingToArchive = errors.New("fallback log is empty")

// SnapshotStore receives fallback log snapshots. *ArchiveBucket implements
// it.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, r io.Reader, size int64, takenAt time.Time) (url string, err error)
}

// Archive describes an uploaded fallback log snapshot.
type Archive struct {
	Key  string
	URL  string
	Size int64
}

// ArchiveKey names a snapshot taken at t. The random suffix keeps snapshots
// from different hosts apart.
func ArchiveKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("fallback/%s/%s-%s.jsonl", t.Format("2006/01/02"), t.Format("20060102T150405Z"), uuid.NewString())
}

// ArchiveFallback uploads the file at path as it is now. The file is not
// modified; records appended during the upload are left for the next
// snapshot.
func ArchiveFallback(ctx context.Context, store SnapshotStore, path string, now time.Time) (*Archive, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNothingToArchive
	}
	if err != nil {
		return nil, fmt.Errorf("opening fallback log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat fallback log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, ErrNothingToArchive
	}

	key := ArchiveKey(now)
	url, err := store.PutSnapshot(ctx, key, io.LimitReader(f, size), size, now)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", key, err)
	}
	return &Archive{Key: key, URL: url, Size: size}, nil
}

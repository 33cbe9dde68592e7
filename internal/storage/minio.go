package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	archiveContentType = "application/x-ndjson"
	defaultURLExpiry   = 24 * time.Hour
)

// MinIOConfig locates the archive bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool

	// URLExpiry bounds the presigned download links; zero means 24h.
	URLExpiry time.Duration
}

func (c MinIOConfig) validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.AccessKey == "" {
		missing = append(missing, "access key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("minio config: missing %v", missing)
	}
	return nil
}

// ArchiveBucket holds fallback log snapshots. Objects are private; callers
// get time-limited presigned links.
type ArchiveBucket struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewArchiveBucket connects to MinIO / S3 and creates the bucket if needed.
func NewArchiveBucket(ctx context.Context, cfg MinIOConfig) (*ArchiveBucket, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = defaultURLExpiry
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			// Another archiver may have created it in the meantime.
			if minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
				return nil, fmt.Errorf("minio make bucket: %w", err)
			}
		}
	}

	return &ArchiveBucket{client: client, bucket: cfg.Bucket, urlExpiry: cfg.URLExpiry}, nil
}

// PutSnapshot uploads size bytes of newline-delimited records under key and
// returns a presigned download link. An empty link means the upload
// succeeded but signing failed.
func (b *ArchiveBucket) PutSnapshot(ctx context.Context, key string, r io.Reader, size int64, takenAt time.Time) (string, error) {
	_, err := b.client.PutObject(ctx, b.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: archiveContentType,
		UserMetadata: map[string]string{
			"taken-at": takenAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", err
	}

	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, b.urlExpiry, nil)
	if err != nil {
		slog.Warn("presigning archive link", "key", key, "error", err)
		return "", nil
	}
	return u.String(), nil
}

// Package storage publishes the exported table to an object store.
//
// The backend is chosen by configuration: "s3" (AWS or any endpoint speaking
// the S3 API through aws-sdk-go-v2), "minio" (minio-go against an S3
// compatible endpoint), "gcs" (Google Cloud Storage) or "none". Objects are
// named after the local file, below an optional prefix. Every failure is a
// PUBLISH error.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"firdscli/internal/config"
	apperrors "firdscli/internal/errors"
)

// Backend names
const (
	BackendNone  = "none"
	BackendS3    = "s3"
	BackendMinIO = "minio"
	BackendGCS   = "gcs"
)

// Publisher uploads a local file into a container (bucket)
type Publisher interface {
	Publish(ctx context.Context, localPath, container string) error
}

// New creates the publisher for cfg.Backend
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Publisher, error) {
	logger = logger.With(slog.String("component", "storage"), slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case BackendNone, "":
		return &noopPublisher{logger: logger}, nil
	case BackendS3:
		return NewS3Publisher(ctx, cfg, logger)
	case BackendMinIO:
		return NewMinIOPublisher(cfg, logger)
	case BackendGCS:
		return NewGCSPublisher(ctx, cfg, logger)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown storage backend %q", cfg.Backend), nil)
	}
}

// ObjectKey names the object for localPath below prefix
func ObjectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// openUpload opens localPath and returns it with its size
func openUpload(localPath string) (*os.File, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, 0, apperrors.NewPublishError(fmt.Sprintf("cannot open %s", localPath), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, apperrors.NewPublishError(fmt.Sprintf("cannot stat %s", localPath), err)
	}
	return f, info.Size(), nil
}

func contentType(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

func logPublished(ctx context.Context, logger *slog.Logger, uri string, size int64) {
	logger.InfoContext(ctx, "object_published",
		slog.String("uri", uri),
		slog.Int64("size_bytes", size))
}

type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) Publish(ctx context.Context, localPath, container string) error {
	p.logger.InfoContext(ctx, "publish_skipped",
		slog.String("path", localPath),
		slog.String("reason", "storage backend is none"))
	return nil
}

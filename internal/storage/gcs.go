package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"firdscli/internal/config"
	apperrors "firdscli/internal/errors"
)

// GCSPublisher uploads to Google Cloud Storage
type GCSPublisher struct {
	client *storage.Client
	prefix string
	logger *slog.Logger
}

// NewGCSPublisher creates the client. CredentialsFile selects a service
// account key; without it application default credentials are used. An
// endpoint targets an emulator and disables authentication.
func NewGCSPublisher(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*GCSPublisher, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewPublishError("cannot create storage client", err)
	}

	return &GCSPublisher{
		client: client,
		prefix: cfg.ObjectPrefix,
		logger: logger,
	}, nil
}

// Publish uploads localPath. The bucket must exist.
func (p *GCSPublisher) Publish(ctx context.Context, localPath, bucket string) error {
	if bucket == "" {
		return apperrors.NewPublishError("bucket name is required", nil)
	}

	f, size, err := openUpload(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := ObjectKey(p.prefix, localPath)
	uri := fmt.Sprintf("gs://%s/%s", bucket, key)

	w := p.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(localPath)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return apperrors.NewPublishError(fmt.Sprintf("cannot upload %s", uri), err)
	}
	if err := w.Close(); err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("cannot upload %s", uri), err)
	}

	logPublished(ctx, p.logger, uri, size)
	return nil
}

// Close releases the client
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}

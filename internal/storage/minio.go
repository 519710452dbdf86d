package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"firdscli/internal/config"
	apperrors "firdscli/internal/errors"
)

// MinIOPublisher uploads to an S3 compatible endpoint with minio-go
type MinIOPublisher struct {
	client *minio.Client
	region string
	prefix string
	logger *slog.Logger
}

// NewMinIOPublisher creates the client for cfg.Endpoint. The endpoint may be
// a bare host:port or a URL; an https scheme enables TLS regardless of
// UseSSL.
func NewMinIOPublisher(cfg config.StorageConfig, logger *slog.Logger) (*MinIOPublisher, error) {
	if cfg.Endpoint == "" {
		return nil, apperrors.NewConfigError("minio endpoint is required", nil)
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("invalid minio endpoint %s", cfg.Endpoint), err)
	}

	return &MinIOPublisher{
		client: client,
		region: cfg.Region,
		prefix: cfg.ObjectPrefix,
		logger: logger,
	}, nil
}

// Publish creates the bucket when missing and uploads localPath
func (p *MinIOPublisher) Publish(ctx context.Context, localPath, bucket string) error {
	if bucket == "" {
		return apperrors.NewPublishError("bucket name is required", nil)
	}

	exists, err := p.client.BucketExists(ctx, bucket)
	if err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("cannot access bucket %s", bucket), err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
			return apperrors.NewPublishError(fmt.Sprintf("cannot create bucket %s", bucket), err)
		}
		p.logger.InfoContext(ctx, "bucket_created", slog.String("bucket", bucket))
	}

	key := ObjectKey(p.prefix, localPath)
	uri := fmt.Sprintf("s3://%s/%s", bucket, key)

	info, err := p.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("cannot upload %s", uri), err)
	}

	logPublished(ctx, p.logger, uri, info.Size)
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"firdscli/internal/config"
	apperrors "firdscli/internal/errors"
)

const defaultRegion = "us-east-1"

// S3Publisher uploads through the AWS SDK
type S3Publisher struct {
	client *s3.Client
	region string
	prefix string
	logger *slog.Logger
}

// NewS3Publisher builds the client from static credentials when given and
// from the default credential chain otherwise. A configured endpoint switches
// to path-style addressing for S3 compatible services.
func NewS3Publisher(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*S3Publisher, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewPublishError("unable to load AWS SDK config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Publisher{
		client: client,
		region: region,
		prefix: cfg.ObjectPrefix,
		logger: logger,
	}, nil
}

// Publish creates the bucket when missing and uploads localPath
func (p *S3Publisher) Publish(ctx context.Context, localPath, bucket string) error {
	if bucket == "" {
		return apperrors.NewPublishError("bucket name is required", nil)
	}
	if err := p.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	f, size, err := openUpload(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := ObjectKey(p.prefix, localPath)
	uri := fmt.Sprintf("s3://%s/%s", bucket, key)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType(localPath)),
	})
	if err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("cannot upload %s", uri), err)
	}

	logPublished(ctx, p.logger, uri, size)
	return nil
}

func (p *S3Publisher) ensureBucket(ctx context.Context, bucket string) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return apperrors.NewPublishError(fmt.Sprintf("cannot access bucket %s", bucket), err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint
	if p.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.region),
		}
	}
	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return apperrors.NewPublishError(fmt.Sprintf("cannot create bucket %s", bucket), err)
	}

	p.logger.InfoContext(ctx, "bucket_created", slog.String("bucket", bucket), slog.String("region", p.region))
	return nil
}

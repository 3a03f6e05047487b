package receipt

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/config"
)

// PutObjectAPI is the part of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores rendered receipts in an S3 bucket.
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
	newKey func() string
}

// NewS3Archiver returns an archiver writing to bucket under prefix.
func NewS3Archiver(client PutObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		newKey: func() string { return uuid.New().String() },
	}
}

// NewS3ArchiverFromSettings loads the AWS configuration for the configured
// region and returns an archiver for the configured bucket.
func NewS3ArchiverFromSettings(ctx context.Context, settings config.ReceiptSettings, logger *zap.Logger) (*S3Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Archiver(s3.NewFromConfig(cfg), settings.Bucket, settings.Prefix, logger), nil
}

// Key returns the object key a receipt is stored under.
func (a *S3Archiver) Key(r *Receipt) string {
	name := r.InvoiceNumber
	if name == "" {
		name = r.ContributionID.String()
	}
	return path.Join(a.prefix, fmt.Sprintf("%s-%s.md", name, a.newKey()))
}

// Send uploads the markdown rendering of r.
func (a *S3Archiver) Send(ctx context.Context, r *Receipt) error {
	key := a.Key(r)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(r.Markdown())),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive receipt %s: %w", r.InvoiceNumber, err)
	}
	a.logger.Debug("receipt archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return nil
}

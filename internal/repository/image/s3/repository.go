package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sharetube/whiteboard/internal/repository/image"
)

const contentType = "text/plain; charset=utf-8"

type api interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewClient builds an S3 client from static credentials. A non-empty
// Endpoint switches to path-style addressing for S3-compatible stores.
func NewClient(cfg *Config) *s3.Client {
	return s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
				Source:          "whiteboard config",
			}, nil
		}),
		BaseEndpoint: nilIfEmpty(cfg.Endpoint),
		UsePathStyle: cfg.Endpoint != "",
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}

	return aws.String(s)
}

type repo struct {
	client api
	bucket string
	prefix string
	logger *slog.Logger
}

// NewRepo stores every image as one object under prefix in bucket.
func NewRepo(client api, bucket, prefix string, logger *slog.Logger) *repo {
	return &repo{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "image.s3"),
	}
}

func (r repo) getImageKey(snapshotID string) string {
	return r.prefix + snapshotID
}

func (r repo) SetImage(ctx context.Context, snapshotID, encoded string) error {
	r.logger.DebugContext(ctx, "called", "snapshot_id", snapshotID, "size", len(encoded))
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.getImageKey(snapshotID)),
		Body:        strings.NewReader(encoded),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"snapshot-id": snapshotID,
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("s3 upload failed: %w", err)
	}

	return nil
}

func (r repo) GetImage(ctx context.Context, snapshotID string) (string, error) {
	r.logger.DebugContext(ctx, "called", "snapshot_id", snapshotID)
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.getImageKey(snapshotID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			err = image.ErrImageNotFound
		} else {
			err = fmt.Errorf("s3 download failed: %w", err)
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", fmt.Errorf("s3 download failed: %w", err)
	}

	return buf.String(), nil
}

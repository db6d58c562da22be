package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Default timeout for S3 operations
const DefaultS3Timeout = 30 * time.Second

// ObjectStore wraps the S3 client with the object operations the delivery
// core needs: raw upload, manifest download, and per-segment signed GET URLs.
type ObjectStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
}

// NewObjectStore creates an ObjectStore from an existing AWS config.
func NewObjectStore(cfg aws.Config) *ObjectStore {
	client := s3.NewFromConfig(cfg)
	return &ObjectStore{
		client:    client,
		presigner: s3.NewPresignClient(client),
	}
}

// Download fetches an object and returns its contents.
func (o *ObjectStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}

	return data, nil
}

// Upload writes an object with the given content type.
func (o *ObjectStore) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}

	return nil
}

// SignGetURL returns a presigned GET URL for the object, valid for the given
// lifetime. Each call issues a fresh URL; prior URLs stay valid until their
// own expiry.
func (o *ObjectStore) SignGetURL(ctx context.Context, bucket, key string, lifetime time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	req, err := o.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = lifetime
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", bucket, key, err)
	}

	return req.URL, nil
}

// HeadBucket checks bucket reachability; used by the health checker.
func (o *ObjectStore) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return o.client.HeadBucket(ctx, params, optFns...)
}

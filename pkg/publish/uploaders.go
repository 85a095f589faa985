package publish

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

const (
	s3PartSize    = 5 * 1024 * 1024 // 5MB
	s3Concurrency = 4
)

// S3Uploader uploads with the multipart upload manager
type S3Uploader struct {
	bucket   string
	uploader *manager.Uploader
}

// NewS3Uploader loads the default AWS configuration, optionally overriding
// the region
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		bucket: bucket,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = s3PartSize
			u.Concurrency = s3Concurrency
		}),
	}, nil
}

// Upload implements Uploader
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string, meta map[string]string) (string, error) {
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return "", err
	}
	return out.Location, nil
}

// Close implements Uploader
func (u *S3Uploader) Close() error { return nil }

// GCSUploader uploads through object writers
type GCSUploader struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSUploader connects with a credentials file, or with application
// default credentials when credentialsFile is empty
func NewGCSUploader(ctx context.Context, bucket, credentialsFile string) (*GCSUploader, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSUploader{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Upload implements Uploader
func (u *GCSUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string, meta map[string]string) (string, error) {
	w := u.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = meta
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return "gs://" + u.name + "/" + key, nil
}

// Close implements Uploader
func (u *GCSUploader) Close() error {
	return u.client.Close()
}

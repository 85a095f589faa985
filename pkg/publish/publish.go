// Package publish uploads the output of a run to object storage.
package publish

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cura/pkg/config"
	"github.com/ajitpratap0/cura/pkg/errors"
	"github.com/ajitpratap0/cura/pkg/logger"
	"github.com/ajitpratap0/cura/pkg/metrics"
)

// Supported target schemes
const (
	SchemeS3  = "s3"
	SchemeGCS = "gs"
)

// Uploader stores one object
type Uploader interface {
	// Upload writes body under key and returns the object location
	Upload(ctx context.Context, key string, body io.Reader, contentType string, meta map[string]string) (string, error)
	Close() error
}

// Target is a parsed scheme://bucket/prefix URL
type Target struct {
	Scheme string
	Bucket string
	Prefix string
}

func (t Target) String() string {
	if t.Prefix == "" {
		return t.Scheme + "://" + t.Bucket
	}
	return t.Scheme + "://" + t.Bucket + "/" + t.Prefix
}

// Key joins the prefix and a slash separated relative path
func (t Target) Key(rel string) string {
	if t.Prefix == "" {
		return rel
	}
	return path.Join(t.Prefix, rel)
}

// ParseTarget reads an s3:// or gs:// URL
func ParseTarget(s string) (Target, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || (scheme != SchemeS3 && scheme != SchemeGCS) {
		return Target{}, fmt.Errorf("publish target must start with s3:// or gs://, got %q", s)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Target{}, fmt.Errorf("publish target %q has no bucket", s)
	}
	return Target{Scheme: scheme, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// Publisher uploads every file of a directory tree
type Publisher struct {
	target   Target
	uploader Uploader
	logger   *zap.Logger
}

// New creates a Publisher for the configured target, connecting to S3 or
// GCS with the ambient credentials of the process
func New(ctx context.Context, cfg *config.PublishConfig) (*Publisher, error) {
	target, err := ParseTarget(cfg.Target)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid publish target")
	}
	var up Uploader
	switch target.Scheme {
	case SchemeS3:
		up, err = NewS3Uploader(ctx, target.Bucket, cfg.Region)
	case SchemeGCS:
		up, err = NewGCSUploader(ctx, target.Bucket, cfg.CredentialsFile)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to connect to object storage").
			WithDetail("target", target.String())
	}
	return NewWithUploader(target, up), nil
}

// NewWithUploader creates a Publisher on an existing uploader
func NewWithUploader(target Target, up Uploader) *Publisher {
	return &Publisher{
		target:   target,
		uploader: up,
		logger: logger.Get().With(
			zap.String("component", "publisher"),
			zap.String("target", target.String())),
	}
}

// Close releases the uploader
func (p *Publisher) Close() error {
	return p.uploader.Close()
}

// PublishDir uploads every regular file under dir, keyed by its path
// relative to dir, and returns the object locations in walk order. The
// first failing upload stops the walk.
func (p *Publisher) PublishDir(ctx context.Context, dir string) ([]string, error) {
	var locations []string
	start := time.Now()
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		loc, err := p.upload(ctx, file, p.target.Key(filepath.ToSlash(rel)))
		if err != nil {
			metrics.FilesPublished.WithLabelValues(p.target.Scheme, "failure").Inc()
			return errors.Wrap(err, errors.ErrorTypeFile, "upload failed").WithDetail("file", file)
		}
		metrics.FilesPublished.WithLabelValues(p.target.Scheme, "success").Inc()
		locations = append(locations, loc)
		return nil
	})
	if err != nil {
		return locations, err
	}
	p.logger.Info("published output",
		zap.Int("files", len(locations)),
		zap.Duration("duration", time.Since(start)))
	return locations, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) (string, error) {
	fh, err := os.Open(file) //nolint:gosec
	if err != nil {
		return "", err
	}
	defer fh.Close()

	loc, err := p.uploader.Upload(ctx, key, fh, contentType(file), map[string]string{
		"created": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	p.logger.Debug("uploaded file", zap.String("file", file), zap.String("location", loc))
	return loc, nil
}

func contentType(file string) string {
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}

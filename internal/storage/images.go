package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultPresignTTL is how long a presigned image URL stays valid.
const DefaultPresignTTL = time.Hour

// MinioConfig holds object storage settings for generated task images.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	TTL       time.Duration
}

// MinioResolver presigns object keys stored in task_images.image_url.
// Values that are already absolute URLs pass through untouched.
type MinioResolver struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	logger *slog.Logger
}

// NewMinioResolver creates a resolver. Presigning happens locally, no
// request reaches the storage server.
func NewMinioResolver(cfg MinioConfig, logger *slog.Logger) (*MinioResolver, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	logger.Info("image storage configured", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &MinioResolver{client: client, bucket: cfg.Bucket, ttl: ttl, logger: logger}, nil
}

// ResolveImageURL returns a browser-fetchable URL for raw.
func (r *MinioResolver) ResolveImageURL(ctx context.Context, raw string) (string, error) {
	if raw == "" || isAbsoluteURL(raw) {
		return raw, nil
	}
	key := strings.TrimPrefix(raw, "/")
	key = strings.TrimPrefix(key, r.bucket+"/")

	u, err := r.client.PresignedGetObject(ctx, r.bucket, key, r.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// PassthroughResolver returns stored values unchanged. Used when no object
// storage is configured.
type PassthroughResolver struct{}

// ResolveImageURL returns raw.
func (PassthroughResolver) ResolveImageURL(_ context.Context, raw string) (string, error) {
	return raw, nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:")
}

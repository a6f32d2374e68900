package aws

import (
	"catalog/pkg/config"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/storage/s3/v2"
)

type S3 struct {
	bucket    *s3.Storage
	publicURL string
}

func NewS3Bucket(cfg *config.AppConfig) *S3 {
	storage := s3.New(s3.Config{
		Endpoint: cfg.AWSEndpoint,
		Bucket:   cfg.AWSBucket,
		Region:   cfg.AWSDefaultRegion,
		Credentials: s3.Credentials{
			AccessKey:       cfg.AWSAccessKey,
			SecretAccessKey: cfg.AWSSecretKey,
		},
		MaxAttempts:    3,
		RequestTimeout: time.Second * 10,
		Reset:          false,
	})

	return &S3{
		bucket:    storage,
		publicURL: PublicBaseURL(cfg),
	}
}

func (s *S3) Upload(key string, data []byte) error {
	return s.bucket.Set(key, data, 0)
}

func (s *S3) Delete(key string) error {
	return s.bucket.Delete(key)
}

func (s *S3) PublicURL(key string) string {
	if s.publicURL == "" {
		return key
	}
	return s.publicURL + "/" + key
}

func (s *S3) Close() error {
	return s.bucket.Close()
}

// PublicBaseURL resolves where objects of the bucket are served from:
// an explicit public URL, the MinIO/S3-compatible endpoint, or AWS virtual hosting.
func PublicBaseURL(cfg *config.AppConfig) string {
	if cfg.StoragePublicURL != "" {
		return strings.TrimSuffix(cfg.StoragePublicURL, "/")
	}

	if cfg.AWSEndpoint != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.AWSEndpoint, "/"), cfg.AWSBucket)
	}

	if cfg.AWSDefaultRegion != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AWSBucket, cfg.AWSDefaultRegion)
	}

	return ""
}

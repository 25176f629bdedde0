package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/DockGuard/internal/config"
)

// Storage wraps MinIO/S3 interactions for exported shipment manifests.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.ManifestBucket, region: cfg.S3Region}, nil
}

// ManifestKey is the object key a shipment's manifest is stored under.
func ManifestKey(ref string) string {
	return fmt.Sprintf("manifests/%s.json", ref)
}

// EnsureBucket makes sure the manifest bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// UploadManifest stores the JSON manifest for ref, replacing any earlier copy.
func (s *Storage) UploadManifest(ctx context.Context, ref string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	_, err := s.client.PutObject(ctx, s.bucket, ManifestKey(ref), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("upload manifest %s: %w", ref, err)
	}
	return nil
}

// PresignManifestURL returns a signed GET URL for the manifest of ref.
func (s *Storage) PresignManifestURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ManifestKey(ref), expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign manifest %s: %w", ref, err)
	}
	return u.String(), nil
}

package vault

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scanapi/internal/config"
)

// minioVault implements SampleVault using an S3-compatible backend (MinIO,
// AWS S3, etc.). It is safe for concurrent use by multiple goroutines.
type minioVault struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a sample vault backed by an S3-compatible store.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.VaultConfig) (SampleVault, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("vault endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("vault credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("vault bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	v := &minioVault{client: cli, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure bucket exists.
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return v, nil
}

// Archive uploads a sample using streaming I/O only (no local buffering).
func (v *minioVault) Archive(ctx context.Context, sha256, storedName string, r io.Reader, size int64) error {
	key := path.Join("samples", sha256, storedName)
	_, err := v.client.PutObject(ctx, v.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			"sha256": sha256,
		},
	})
	if err != nil {
		return fmt.Errorf("archive sample: %w", err)
	}
	return nil
}

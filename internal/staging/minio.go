package staging

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediarelay/internal/config"
	"mediarelay/internal/model"
)

const minioStagingPrefix = "staging"

// minioStaging stages uploads in an S3-compatible bucket (MinIO, AWS S3, etc.),
// for deployments where the service instances share scratch space instead of
// a local disk. The lifecycle contract is identical to the disk backend:
// staged objects live for one request and are removed before the response.
// It is safe for concurrent use by multiple goroutines.
type minioStaging struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates an S3-compatible staging backend.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (Staging, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &minioStaging{client: cli, bucket: cfg.Bucket}, nil
}

func (m *minioStaging) Stage(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*model.Upload, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}

	now := time.Now().UTC()
	key := path.Join(minioStagingPrefix, stagedName(now, originalFilename))

	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stage object: %w", err)
	}

	return &model.Upload{
		OriginalFilename: originalFilename,
		StagedPath:       key,
		Size:             info.Size,
		ContentType:      contentType,
		ReceivedAt:       now,
	}, nil
}

func (m *minioStaging) Open(ctx context.Context, up *model.Upload) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, up.StagedPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open staged object: %w", err)
	}
	// Stat eagerly so a missing object fails here rather than mid-relay.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat staged object: %w", err)
	}
	return obj, nil
}

func (m *minioStaging) Remove(ctx context.Context, up *model.Upload) error {
	return m.client.RemoveObject(ctx, m.bucket, up.StagedPath, minio.RemoveObjectOptions{})
}

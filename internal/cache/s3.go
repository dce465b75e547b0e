// internal/cache/s3.go
package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github-file-miner/internal/model"
)

// S3Config describes the bucket used by S3Backend.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Backend stores cache entries as "<purpose>/<owner_id>:<repo_id>.json" objects.
type S3Backend struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// NewS3Backend validates cfg and builds a minio client.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Backend{client: client, bucket: bucket, region: region}, nil
}

func (b *S3Backend) ensureBucket(ctx context.Context) error {
	b.initOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.bucket)
		if err != nil {
			b.initErr = err
			return
		}
		if !exists {
			b.initErr = b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region})
		}
	})
	return b.initErr
}

func (b *S3Backend) List(ctx context.Context, purpose model.CachePurpose) ([]model.CacheKey, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	prefix := string(purpose) + "/"
	var keys []model.CacheKey
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if key, ok := ParseKey(strings.TrimPrefix(obj.Key, prefix)); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (b *S3Backend) Read(ctx context.Context, purpose model.CachePurpose, key model.CacheKey) ([]byte, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := b.client.GetObject(ctx, b.bucket, objectKey(purpose, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Create is a conditional put with If-None-Match: *, so only one writer
// wins even across processes.
func (b *S3Backend) Create(ctx context.Context, purpose model.CachePurpose, key model.CacheKey, data []byte) error {
	if err := b.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	opts.SetMatchETagExcept("*")
	_, err := b.client.PutObject(ctx, b.bucket, objectKey(purpose, key), bytes.NewReader(data), int64(len(data)), opts)
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case minio.PreconditionFailed, "ConditionalRequestConflict":
		return ErrExists
	}
	return err
}

func (b *S3Backend) Write(ctx context.Context, purpose model.CachePurpose, key model.CacheKey, data []byte) error {
	if err := b.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	return b.put(ctx, purpose, key, data)
}

func (b *S3Backend) put(ctx context.Context, purpose model.CachePurpose, key model.CacheKey, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, objectKey(purpose, key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func objectKey(purpose model.CachePurpose, key model.CacheKey) string {
	return string(purpose) + "/" + FileName(key)
}

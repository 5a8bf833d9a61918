package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient implements Client against any S3-compatible object store.
// Single bucket; document paths map to object keys directly.
type MinioClient struct {
	client *minio.Client
	bucket string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewMinioClient(ctx context.Context, cfg MinioConfig) (*MinioClient, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob: bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blob: storage unavailable: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blob: create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioClient{client: client, bucket: cfg.Bucket}, nil
}

func (c *MinioClient) Get(ctx context.Context, path string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: read %s: %w", path, err)
	}
	return data, nil
}

func (c *MinioClient) Put(ctx context.Context, path string, data []byte, opts SaveOptions) error {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	}
	if putOpts.ContentType == "" {
		putOpts.ContentType = "application/json"
	}
	_, err := c.client.PutObject(ctx, c.bucket, path, bytes.NewReader(data), int64(len(data)), putOpts)
	if err != nil {
		return fmt.Errorf("blob: put %s: %w", path, err)
	}
	return nil
}

func (c *MinioClient) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("blob: stat %s: %w", path, err)
	}
	return true, nil
}

func (c *MinioClient) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	for info := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("blob: list %s: %w", prefix, info.Err)
		}
		paths = append(paths, info.Key)
	}
	return paths, nil
}

func (c *MinioClient) Delete(ctx context.Context, path string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("blob: stat %s: %w", path, err)
	}
	if err := c.client.RemoveObject(ctx, c.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("blob: delete %s: %w", path, err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}

// Package minio serves reference tables and registry snapshots from an
// S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// MaxObjectBytes caps a fetched snapshot.
const MaxObjectBytes = 32 << 20

// ObjectAPI is the subset of the MinIO client this package uses.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	GetObject(ctx context.Context, bucket, name string) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) error
	StatObject(ctx context.Context, bucket, name string) (minio.ObjectInfo, error)
}

// sdkAPI adapts *minio.Client to ObjectAPI.
type sdkAPI struct{ c *minio.Client }

func (a sdkAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.c.BucketExists(ctx, bucket)
}

func (a sdkAPI) GetObject(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	return a.c.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
}

func (a sdkAPI) PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) error {
	_, err := a.c.PutObject(ctx, bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (a sdkAPI) StatObject(ctx context.Context, bucket, name string) (minio.ObjectInfo, error) {
	return a.c.StatObject(ctx, bucket, name, minio.StatObjectOptions{})
}

// Client reads and writes objects under one bucket prefix.
type Client struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger logging.Logger
}

// NewClient connects to cfg.Endpoint and verifies the bucket exists.
func NewClient(ctx context.Context, cfg config.MinIOConfig, logger logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "minio: endpoint and bucket are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "minio: failed to create client")
	}
	c := NewClientWithAPI(sdkAPI{c: mc}, cfg.Bucket, cfg.Prefix, logger)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("minio client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return c, nil
}

// NewClientWithAPI wraps an existing ObjectAPI.
func NewClientWithAPI(api ObjectAPI, bucket, prefix string, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{api: api, bucket: bucket, prefix: prefix, logger: logger.Named("minio")}
}

// Key is the object name for a snapshot file.
func (c *Client) Key(name string) string {
	if c.prefix == "" {
		return name
	}
	return path.Join(c.prefix, name)
}

// Ping verifies the bucket is reachable and exists.
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio: bucket check failed").WithDetail(c.bucket)
	}
	if !ok {
		return errors.New(errors.ErrCodeStorage, "minio: bucket does not exist").WithDetail(c.bucket)
	}
	return nil
}

// Fetch reads a snapshot file. It satisfies registry.Fetcher.
func (c *Client) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := c.Key(name)
	obj, err := c.api.GetObject(ctx, c.bucket, key)
	if err != nil {
		return nil, storageError(err, "minio: get object failed", key)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, MaxObjectBytes+1))
	if err != nil {
		return nil, storageError(err, "minio: read object failed", key)
	}
	if len(data) > MaxObjectBytes {
		return nil, errors.Newf(errors.ErrCodeStorage, "minio: object exceeds %d bytes", MaxObjectBytes).WithDetail(key)
	}
	c.logger.Debug("object fetched", logging.String("key", key), logging.Int("bytes", len(data)))
	return data, nil
}

// Put uploads a snapshot file.
func (c *Client) Put(ctx context.Context, name string, data []byte, contentType string) error {
	key := c.Key(name)
	if err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return storageError(err, "minio: put object failed", key)
	}
	c.logger.Info("object uploaded", logging.String("key", key), logging.Int("bytes", len(data)))
	return nil
}

// Modified returns an object's last-modified time.
func (c *Client) Modified(ctx context.Context, name string) (time.Time, error) {
	key := c.Key(name)
	info, err := c.api.StatObject(ctx, c.bucket, key)
	if err != nil {
		return time.Time{}, storageError(err, "minio: stat object failed", key)
	}
	return info.LastModified, nil
}

func storageError(err error, msg, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Wrap(err, errors.ErrCodeNotFound, msg).WithDetail(key)
	}
	return errors.Wrap(err, errors.ErrCodeStorage, msg).WithDetail(key)
}

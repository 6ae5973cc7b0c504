// Package archive keeps raw import uploads in object storage so an import can be
// inspected or replayed later.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"catalog-admin/internal/core/config"
)

type ObjectArchive struct {
	client *minio.Client
	cfg    config.Storage
	log    *zap.Logger
}

func NewObjectArchive(cfg config.Storage, log *zap.Logger) (*ObjectArchive, error) {
	if log == nil {
		log = zap.NewNop()
	}
	endpoint, useSSL, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &ObjectArchive{client: client, cfg: cfg, log: log}, nil
}

// splitEndpoint accepts either host:port or a full URL whose scheme decides TLS.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.HasPrefix(endpoint, "http") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	return u.Host, u.Scheme == "https", nil
}

func (a *ObjectArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", a.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.cfg.Bucket, minio.MakeBucketOptions{Region: a.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.cfg.Bucket, err)
	}
	a.log.Info("archive bucket created", zap.String("bucket", a.cfg.Bucket))
	return nil
}

// Archive stores data under key. It satisfies importer.Archiver.
func (a *ObjectArchive) Archive(ctx context.Context, key string, data []byte) error {
	_, err := a.client.PutObject(ctx, a.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

type Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// List returns archived uploads under prefix, e.g. "imports/2024-01-15/".
func (a *ObjectArchive) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	var out []Object
	for info := range a.client.ListObjects(ctx, a.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		out = append(out, Object{Key: info.Key, Size: info.Size})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/modelroom/modelroom/internal/engine"
	pkgerrors "github.com/modelroom/modelroom/pkg/errors"
)

// MinioConfig holds the connection settings for an S3-compatible backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	Region    string
}

// MinioProvider stores artifacts in an S3-compatible bucket under
// <prefix>/models/<id>/<key>.
type MinioProvider struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioProvider connects to the object store and ensures the configured
// bucket exists.
func NewMinioProvider(ctx context.Context, cfg MinioConfig) (*MinioProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	p := &MinioProvider{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MinioProvider) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
	}
	return nil
}

// ForModel returns the artifact store scoped to one model's object prefix.
func (p *MinioProvider) ForModel(id string) engine.ArtifactStore {
	return &minioStore{client: p.client, bucket: p.bucket, ns: p.modelPrefix(id)}
}

// Drop removes every object under the model's prefix.
func (p *MinioProvider) Drop(ctx context.Context, id string) error {
	prefix := p.modelPrefix(id) + "/"
	objects := p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return pkgerrors.NewStoreError("drop", id, obj.Err)
		}
		if err := p.client.RemoveObject(ctx, p.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return pkgerrors.NewStoreError("drop", obj.Key, err)
		}
	}
	return nil
}

// Ping verifies the bucket is reachable.
func (p *MinioProvider) Ping(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return pkgerrors.NewStoreError("ping", p.bucket, err)
	}
	if !exists {
		return pkgerrors.NewStoreError("ping", p.bucket, fmt.Errorf("bucket does not exist"))
	}
	return nil
}

func (p *MinioProvider) modelPrefix(id string) string {
	return path.Join(p.prefix, "models", id)
}

// minioStore implements engine.ArtifactStore over one object prefix.
type minioStore struct {
	client *minio.Client
	bucket string
	ns     string
}

func (s *minioStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return pkgerrors.NewStoreError("put", key, err)
	}

	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key), reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return pkgerrors.NewStoreError("put", key, err)
	}
	return nil
}

func (s *minioStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, pkgerrors.NewStoreError("get", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, pkgerrors.NewStoreError("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, pkgerrors.NewStoreError("get", key, engine.ErrArtifactNotFound)
		}
		return nil, pkgerrors.NewStoreError("get", key, err)
	}
	return data, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return pkgerrors.NewStoreError("delete", key, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{}); err != nil {
		return pkgerrors.NewStoreError("delete", key, err)
	}
	return nil
}

func (s *minioStore) List(ctx context.Context, prefix string) ([]string, error) {
	base := s.ns + "/"
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    base + prefix,
		Recursive: true,
	})

	var keys []string
	for obj := range objects {
		if obj.Err != nil {
			return nil, pkgerrors.NewStoreError("list", prefix, obj.Err)
		}
		keys = append(keys, strings.TrimPrefix(obj.Key, base))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *minioStore) objectKey(key string) string {
	return path.Join(s.ns, key)
}

package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"review-backend/internal/shared/storage/object"
	"review-backend/internal/shared/telemetry"
)

// Store implements object.Store on a MinIO (or any S3-compatible) endpoint.
type Store struct {
	client *minio.Client
	bucket string

	ensureMu      sync.Mutex
	bucketEnsured bool
}

// New connects to endpoint. The bucket is created on first use if missing.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket exists %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("minio make bucket %s: %w", s.bucket, err)
		}
		telemetry.Info("minio bucket created", map[string]any{"bucket": s.bucket})
	}
	s.bucketEnsured = true
	return nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) (int64, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, cleanKey(key), r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return 0, fmt.Errorf("minio put object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return info.Size, nil
}

// Get stats the object first so a missing key surfaces as object.ErrNotFound
// instead of failing on the first read.
func (s *Store) Get(ctx context.Context, key string) (object.Object, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return object.Object{}, err
	}
	k := cleanKey(key)
	info, err := s.client.StatObject(ctx, s.bucket, k, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return object.Object{}, fmt.Errorf("minio get object bucket=%s key=%s: %w", s.bucket, key, object.ErrNotFound)
		}
		return object.Object{}, fmt.Errorf("minio stat object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, k, minio.GetObjectOptions{})
	if err != nil {
		return object.Object{}, fmt.Errorf("minio get object bucket=%s key=%s: %w", s.bucket, key, err)
	}

	meta := make(map[string]string, len(info.UserMetadata))
	for name, value := range info.UserMetadata {
		meta[strings.ToLower(name)] = value
	}
	return object.Object{Body: obj, ContentType: info.ContentType, Metadata: meta}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, cleanKey(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	var keys []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    cleanKey(prefix),
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("minio list objects bucket=%s prefix=%s: %w", s.bucket, prefix, info.Err)
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func cleanKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

var _ object.Store = (*Store)(nil)

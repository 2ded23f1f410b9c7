// Package s3 stores generated images in an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vbonduro/facet/internal/imagestore"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3ImageStore struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
	now        func() time.Time
}

func NewS3ImageStore(cfg Config) (*S3ImageStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
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
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3ImageStore{
		client:     client,
		bucketName: bucket,
		region:     region,
		now:        time.Now,
	}, nil
}

func (s *S3ImageStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3ImageStore) objectKey(prefix, mimeType string) string {
	return imagestore.NewKey(s.now(), prefix, mimeType)
}

func (s *S3ImageStore) Save(ctx context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	key := s.objectKey(prefix, mimeType)
	if _, err := s.client.PutObject(ctx, s.bucketName, key, r, -1, minio.PutObjectOptions{
		ContentType: mimeType,
	}); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

func (s *S3ImageStore) Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, "", fmt.Errorf("ensure bucket: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, storageKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, "", imagestore.ErrNotFound
		}
		return nil, "", fmt.Errorf("stat object: %w", err)
	}

	mimeType := info.ContentType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = imagestore.MIMEForKey(storageKey)
	}
	return obj, mimeType, nil
}

func (s *S3ImageStore) Delete(ctx context.Context, storageKey string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	if _, err := s.client.StatObject(ctx, s.bucketName, storageKey, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return imagestore.ErrNotFound
		}
		return fmt.Errorf("stat object: %w", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, storageKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

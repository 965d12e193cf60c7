package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/ShelfView/internal/config"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Storage wraps MinIO/S3 interactions for book documents and preview images.
type Storage struct {
	client         *minio.Client
	documentBucket string
	previewBucket  string
	region         string
}

// New creates a MinIO client from the S3 config section.
func New(cfg config.S3) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:         client,
		documentBucket: cfg.DocumentBucket,
		previewBucket:  cfg.PreviewBucket,
		region:         cfg.Region,
	}, nil
}

// EnsureBuckets makes sure the document and preview buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.documentBucket, s.previewBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// PutDocument uploads a book PDF into the document bucket.
func (s *Storage) PutDocument(ctx context.Context, objectKey string, data []byte, contentType string) error {
	if err := s.put(ctx, s.documentBucket, objectKey, data, contentType); err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	return nil
}

// GetDocument fetches a book PDF.
func (s *Storage) GetDocument(ctx context.Context, objectKey string) ([]byte, error) {
	data, _, err := s.get(ctx, s.documentBucket, objectKey)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return data, nil
}

// DeleteDocument removes a book PDF. Missing objects are not an error.
func (s *Storage) DeleteDocument(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.documentBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// PutPreview uploads a rendered page image into the preview bucket.
func (s *Storage) PutPreview(ctx context.Context, objectKey string, data []byte, contentType string) error {
	if err := s.put(ctx, s.previewBucket, objectKey, data, contentType); err != nil {
		return fmt.Errorf("upload preview: %w", err)
	}
	return nil
}

// GetPreview fetches a page image and its content type.
func (s *Storage) GetPreview(ctx context.Context, objectKey string) ([]byte, string, error) {
	data, contentType, err := s.get(ctx, s.previewBucket, objectKey)
	if err != nil {
		return nil, "", fmt.Errorf("get preview: %w", err)
	}
	return data, contentType, nil
}

// DeletePreviews removes every page image stored under prefix.
func (s *Storage) DeletePreviews(ctx context.Context, prefix string) error {
	objects := s.client.ListObjects(ctx, s.previewBucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for err := range s.client.RemoveObjects(ctx, s.previewBucket, objects, minio.RemoveObjectsOptions{}) {
		if err.Err != nil {
			return fmt.Errorf("remove preview %s: %w", err.ObjectName, err.Err)
		}
	}
	return nil
}

// PresignDocumentURL returns a signed GET URL for a book PDF, served as an
// attachment named fileName.
func (s *Storage) PresignDocumentURL(ctx context.Context, objectKey, fileName string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	u, err := s.client.PresignedGetObject(ctx, s.documentBucket, objectKey, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign document: %w", err)
	}
	return u.String(), nil
}

func (s *Storage) put(ctx context.Context, bucket, objectKey string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, bucket, objectKey, bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func (s *Storage) get(ctx context.Context, bucket, objectKey string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", notFound(err)
	}
	defer obj.Close()
	info, err := obj.Stat()
	if err != nil {
		return nil, "", notFound(err)
	}
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", notFound(err)
	}
	return buf, info.ContentType, nil
}

func notFound(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

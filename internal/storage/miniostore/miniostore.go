// Package miniostore implements storage.Backend with the MinIO client, for
// self hosted S3 compatible stores.
package miniostore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stefando/shareDrop/internal/storage"
)

var _ storage.Backend = (*Store)(nil)

// Options configures the MinIO connection.
type Options struct {
	// Endpoint is a URL such as http://localhost:9000.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Store signs and manages objects in a single bucket.
type Store struct {
	core   *minio.Core
	bucket string
}

// New connects to the endpoint. A region is always set so presigning never
// needs a bucket location lookup.
func New(opts Options, bucket string) (*Store, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid minio endpoint %q", opts.Endpoint)
	}

	region := opts.Region
	if region == "" || region == "auto" {
		region = "us-east-1"
	}

	core, err := minio.NewCore(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:       u.Scheme == "https",
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Store{core: core, bucket: bucket}, nil
}

func (s *Store) PresignPut(ctx context.Context, key, _ string, ttl time.Duration) (string, error) {
	u, err := s.core.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign put for %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.core.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign get for %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *Store) PresignUploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	_ int64,
	ttl time.Duration,
) (string, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(int(partNumber)))
	params.Set("uploadId", uploadID)

	u, err := s.core.Presign(ctx, http.MethodPut, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign part %d for %s: %w", partNumber, key, err)
	}
	return u.String(), nil
}

func (s *Store) Head(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	info, err := s.core.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NotFound":
			return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to head %s: %w", key, err)
	}

	return &storage.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
	}, nil
}

func (s *Store) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload: %w", err)
	}
	return uploadID, nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (string, error) {
	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{
			PartNumber: int(p.PartNumber),
			ETag:       strings.Trim(p.ETag, `"`),
		}
	}

	info, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	if info.Key != "" {
		return info.Key, nil
	}
	return key, nil
}

func (s *Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID); err != nil {
		return fmt.Errorf("failed to abort multipart upload: %w", err)
	}
	return nil
}

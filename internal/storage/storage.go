// Package storage defines the object storage operations the upload broker
// relies on. Drivers live in subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Head when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectInfo is the metadata returned by a HEAD request.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// CompletedPart identifies an uploaded part when finalizing a multipart upload.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// Backend is an S3 compatible object store. Presign* calls sign locally and
// never contact the store.
type Backend interface {
	// PresignPut returns a URL that accepts a single PUT of the whole object.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// PresignGet returns a URL that serves the object.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// PresignUploadPart returns a URL that accepts one part of a multipart upload.
	// contentLength is signed into the URL when positive.
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, contentLength int64, ttl time.Duration) (string, error)

	// Head fetches object metadata, returning ErrNotFound when absent.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// CreateMultipartUpload starts a session and returns its upload id.
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)

	// CompleteMultipartUpload assembles the parts, in the given order, and returns the final key.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (string, error)

	// AbortMultipartUpload discards the session and any uploaded parts.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

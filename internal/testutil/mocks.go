// Package testutil provides mocks shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stefando/shareDrop/internal/storage"
)

// MockS3Client mocks the S3 operations used by the s3 driver.
// Unset function fields return empty outputs.
type MockS3Client struct {
	HeadObjectFunc              func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

func (m *MockS3Client) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CreateMultipartUploadOutput{}, nil
}

func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.AbortMultipartUploadOutput{}, nil
}

// MockPresigner mocks the S3 presign client.
// Unset function fields return a URL built from the input.
type MockPresigner struct {
	PresignPutObjectFunc  func(context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObjectFunc  func(context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignUploadPartFunc func(context.Context, *s3.UploadPartInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

func (m *MockPresigner) PresignPutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.PresignOptions),
) (*v4.PresignedHTTPRequest, error) {
	if m.PresignPutObjectFunc != nil {
		return m.PresignPutObjectFunc(ctx, params, optFns...)
	}
	return &v4.PresignedHTTPRequest{Method: "PUT", URL: "https://storage.test/" + *params.Key}, nil
}

func (m *MockPresigner) PresignGetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.PresignOptions),
) (*v4.PresignedHTTPRequest, error) {
	if m.PresignGetObjectFunc != nil {
		return m.PresignGetObjectFunc(ctx, params, optFns...)
	}
	return &v4.PresignedHTTPRequest{Method: "GET", URL: "https://storage.test/" + *params.Key}, nil
}

func (m *MockPresigner) PresignUploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.PresignOptions),
) (*v4.PresignedHTTPRequest, error) {
	if m.PresignUploadPartFunc != nil {
		return m.PresignUploadPartFunc(ctx, params, optFns...)
	}
	return &v4.PresignedHTTPRequest{
		Method: "PUT",
		URL:    fmt.Sprintf("https://storage.test/%s?partNumber=%d&uploadId=%s", *params.Key, *params.PartNumber, *params.UploadId),
	}, nil
}

// MockBackend mocks storage.Backend and records the name of every call.
// Unset function fields succeed with predictable values.
type MockBackend struct {
	PresignPutFunc        func(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGetFunc        func(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignUploadPartFunc func(ctx context.Context, key, uploadID string, partNumber int32, contentLength int64, ttl time.Duration) (string, error)
	HeadFunc              func(ctx context.Context, key string) (*storage.ObjectInfo, error)
	CreateFunc            func(ctx context.Context, key, contentType string) (string, error)
	CompleteFunc          func(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (string, error)
	AbortFunc             func(ctx context.Context, key, uploadID string) error

	mu    sync.Mutex
	calls []string
}

var _ storage.Backend = (*MockBackend)(nil)

// Calls returns the recorded method names in call order.
func (m *MockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockBackend) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

func (m *MockBackend) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	m.record("PresignPut")
	if m.PresignPutFunc != nil {
		return m.PresignPutFunc(ctx, key, contentType, ttl)
	}
	return fmt.Sprintf("https://storage.test/%s?X-Amz-Expires=%d", url.PathEscape(key), int(ttl.Seconds())), nil
}

func (m *MockBackend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.record("PresignGet")
	if m.PresignGetFunc != nil {
		return m.PresignGetFunc(ctx, key, ttl)
	}
	return fmt.Sprintf("https://storage.test/%s?X-Amz-Expires=%d", url.PathEscape(key), int(ttl.Seconds())), nil
}

func (m *MockBackend) PresignUploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	contentLength int64,
	ttl time.Duration,
) (string, error) {
	m.record("PresignUploadPart")
	if m.PresignUploadPartFunc != nil {
		return m.PresignUploadPartFunc(ctx, key, uploadID, partNumber, contentLength, ttl)
	}
	return fmt.Sprintf("https://storage.test/%s?partNumber=%d&uploadId=%s", url.PathEscape(key), partNumber, uploadID), nil
}

func (m *MockBackend) Head(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	m.record("Head")
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx, key)
	}
	return &storage.ObjectInfo{Key: key, Size: 1}, nil
}

func (m *MockBackend) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	m.record("CreateMultipartUpload")
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, key, contentType)
	}
	return "upload-1", nil
}

func (m *MockBackend) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (string, error) {
	m.record("CompleteMultipartUpload")
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, key, uploadID, parts)
	}
	return key, nil
}

func (m *MockBackend) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	m.record("AbortMultipartUpload")
	if m.AbortFunc != nil {
		return m.AbortFunc(ctx, key, uploadID)
	}
	return nil
}

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/shareDrop/internal/api"
	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/config"
	"github.com/stefando/shareDrop/internal/logging"
	"github.com/stefando/shareDrop/internal/metrics"
	"github.com/stefando/shareDrop/internal/storage"
	"github.com/stefando/shareDrop/internal/testutil"
	"github.com/stefando/shareDrop/internal/upload"
)

// broker runs the real HTTP surface over a mock backend that signs URLs
// for a fakeStorage.
type broker struct {
	*httptest.Server
	svc     *upload.Service
	backend *testutil.MockBackend

	mu        sync.Mutex
	completed []storage.CompletedPart
}

func newBroker(t *testing.T, store *fakeStorage, modified time.Time) *broker {
	t.Helper()

	b := &broker{}
	b.backend = &testutil.MockBackend{
		PresignPutFunc: func(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
			return store.objectURL(key), nil
		},
		PresignGetFunc: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			return store.objectURL(key), nil
		},
		PresignUploadPartFunc: func(ctx context.Context, key, uploadID string, partNumber int32, contentLength int64, ttl time.Duration) (string, error) {
			return fmt.Sprintf("%s/parts/%d?uploadId=%s", store.URL, partNumber, uploadID), nil
		},
		HeadFunc: func(ctx context.Context, key string) (*storage.ObjectInfo, error) {
			store.mu.Lock()
			data, ok := store.objects["/objects/"+key]
			store.mu.Unlock()
			if !ok {
				return nil, storage.ErrNotFound
			}
			return &storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: modified}, nil
		},
		CompleteFunc: func(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (string, error) {
			b.mu.Lock()
			b.completed = parts
			b.mu.Unlock()
			return key, nil
		},
	}

	b.svc = upload.NewService(upload.Options{
		Backend: b.backend,
		Policy:  upload.Policy{MaxFileSize: 1 << 40},
		Logger:  logging.Discard(),
	})
	b.Server = httptest.NewServer(api.NewRouter(b.svc, api.Options{
		Logger:  logging.Discard(),
		Metrics: metrics.NewNop(),
	}))
	t.Cleanup(b.Close)
	return b
}

// warnSignal closes ch the first time a warning is logged
type warnSignal struct {
	once sync.Once
	ch   chan struct{}
}

func (h *warnSignal) Levels() []logrus.Level { return []logrus.Level{logrus.WarnLevel} }

func (h *warnSignal) Fire(*logrus.Entry) error {
	h.once.Do(func() { close(h.ch) })
	return nil
}

func TestUploadSmallFileUsesSinglePut(t *testing.T) {
	store := newFakeStorage(t)
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newBroker(t, store, modified)

	data := bytes.Repeat([]byte("sharedrop"), config.MiB/9+1)[:config.MiB]
	rec := &recordingReporter{}

	u := &Uploader{
		API:          NewHTTPAPI(b.URL, nil),
		ShareBaseURL: "https://share.test/",
		Progress:     rec,
		Logger:       logging.Discard(),
	}

	res, err := u.Upload(context.Background(), NewBytesSource("report.pdf", "application/pdf", data))
	require.NoError(t, err)

	assert.False(t, res.Multipart)
	assert.Equal(t, int64(config.MiB), res.Size)
	assert.NotEmpty(t, res.ShortID)
	assert.Equal(t, "https://share.test/"+res.ShortID, res.Link)
	assert.Contains(t, res.Key, "-report.pdf")
	assert.NotContains(t, b.backend.Calls(), "CreateMultipartUpload")

	last := rec.last()
	assert.Equal(t, 100, last.Percentage)
	assert.Equal(t, int64(config.MiB), last.UploadedBytes)
	assert.True(t, last.RemainingKnown)
	assert.Zero(t, last.Remaining)
	assert.Equal(t, 1, rec.completed)
	assert.Empty(t, rec.errs)

	// the short id now resolves to the uploaded bytes
	d := &Downloader{API: NewHTTPAPI(b.URL, nil)}
	var out bytes.Buffer
	info, err := d.Download(context.Background(), res.ShortID, &out)
	require.NoError(t, err)

	assert.Equal(t, data, out.Bytes())
	assert.Equal(t, res.Key, info.Key)
	assert.Equal(t, "report.pdf", info.OriginalName)
	assert.True(t, modified.Equal(info.LastModified))
}

func TestUploadLargeFileInSortedParts(t *testing.T) {
	store := newFakeStorage(t)
	b := newBroker(t, store, time.Now())

	const size = 300 * config.MiB
	rec := &recordingReporter{}

	u := &Uploader{
		API:      NewHTTPAPI(b.URL, nil),
		Progress: rec,
		Logger:   logging.Discard(),
	}

	res, err := u.Upload(context.Background(), Source{
		Name:        "video.bin",
		ContentType: "application/octet-stream",
		Size:        size,
		Reader:      patternReaderAt{size: size},
	})
	require.NoError(t, err)

	assert.True(t, res.Multipart)
	assert.Equal(t, 30, res.Parts)
	assert.Equal(t, res.ShortID, res.Link)

	b.mu.Lock()
	parts := b.completed
	b.mu.Unlock()

	require.Len(t, parts, 30)
	for i, p := range parts {
		assert.Equal(t, int32(i+1), p.PartNumber)
		assert.Equal(t, fmt.Sprintf("etag-%d", i+1), p.ETag)
	}

	assert.Equal(t, int64(size), store.totalPartBytes())
	assert.LessOrEqual(t, store.peakInFlight(), config.DefaultConcurrency)

	assert.Equal(t, 100, rec.last().Percentage)
	assert.Equal(t, 1, rec.completed)

	session, err := b.svc.Session("upload-1")
	require.NoError(t, err)
	assert.Equal(t, upload.StateCompleted, session.State)
	assert.Equal(t, 30, session.PartsIssued)
}

func TestUploadAbortsAfterPartFailure(t *testing.T) {
	const (
		partSize    = 8
		parts       = 30
		failing     = 15
		concurrency = 4
	)

	store := newFakeStorage(t)
	store.failPart = failing

	signal := &warnSignal{ch: make(chan struct{})}
	log := logging.Discard()
	log.AddHook(signal)

	fake := &fakeAPI{
		storage:  store,
		partSize: partSize,
		// parts past the failing one wait until the failure has been seen
		BeforePartURL: func(n int) error {
			if n > failing {
				select {
				case <-signal.ch:
				case <-time.After(5 * time.Second):
				}
			}
			return nil
		},
	}
	rec := &recordingReporter{}

	u := &Uploader{
		API:         fake,
		Threshold:   64,
		Concurrency: concurrency,
		Progress:    rec,
		Logger:      log,
	}

	res, err := u.Upload(context.Background(), Source{
		Name:        "big.bin",
		ContentType: "application/octet-stream",
		Size:        parts * partSize,
		Reader:      patternReaderAt{size: parts * partSize},
	})
	require.Error(t, err)
	assert.Nil(t, res)

	assert.True(t, errors.Is(err, apperr.ErrIncompleteTransfer))
	assert.Equal(t, apperr.KindIncompleteTransfer, apperr.KindOf(err))

	var incomplete *IncompleteTransferError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, failing, incomplete.PartNumber)
	assert.Equal(t, "upload-1", incomplete.UploadID)
	assert.NoError(t, incomplete.AbortErr)

	var transfer *TransferError
	require.ErrorAs(t, err, &transfer)
	assert.Equal(t, 500, transfer.StatusCode)

	issued := fake.issuedParts()
	assert.LessOrEqual(t, slices.Max(issued), failing+concurrency-1)

	require.Len(t, fake.aborts, 1)
	assert.Equal(t, "upload-1", fake.aborts[0].UploadID)
	assert.Equal(t, "abc123", fake.aborts[0].KeyOrShortID)
	assert.Empty(t, fake.completes)

	assert.Len(t, rec.errs, 1)
	assert.Zero(t, rec.completed)
}

func TestUploadAbortFailureIsAttached(t *testing.T) {
	store := newFakeStorage(t)
	store.failPart = 1

	abortErr := apperr.Backend("abort", errors.New("access denied"))
	fake := &fakeAPI{storage: store, partSize: 8, AbortErr: abortErr}

	u := &Uploader{API: fake, Threshold: 16, Concurrency: 1, Logger: logging.Discard()}

	_, err := u.Upload(context.Background(), Source{
		Name:   "big.bin",
		Size:   32,
		Reader: patternReaderAt{size: 32},
	})
	require.Error(t, err)

	var incomplete *IncompleteTransferError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 1, incomplete.PartNumber)
	assert.Same(t, abortErr, incomplete.AbortErr)
	assert.Contains(t, err.Error(), "abort also failed")

	// the part failure stays the cause
	var transfer *TransferError
	assert.ErrorAs(t, err, &transfer)
}

func TestUploadMissingETagFailsPart(t *testing.T) {
	store := newFakeStorage(t)
	store.omitETag = true

	fake := &fakeAPI{storage: store, partSize: 8}
	u := &Uploader{API: fake, Threshold: 16, Logger: logging.Discard()}

	_, err := u.Upload(context.Background(), Source{
		Name:   "big.bin",
		Size:   32,
		Reader: patternReaderAt{size: 32},
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, apperr.ErrIncompleteTransfer))
	assert.Contains(t, err.Error(), "no ETag")
	assert.Len(t, fake.aborts, 1)
	assert.Empty(t, fake.completes)
}

func TestUploadTooManyPartsAborts(t *testing.T) {
	store := newFakeStorage(t)
	fake := &fakeAPI{storage: store, partSize: 1}
	u := &Uploader{API: fake, Threshold: 1, Logger: logging.Discard()}

	size := int64(upload.MaxPartNumber + 1)
	_, err := u.Upload(context.Background(), Source{
		Name:   "big.bin",
		Size:   size,
		Reader: patternReaderAt{size: size},
	})
	require.Error(t, err)

	var incomplete *IncompleteTransferError
	require.ErrorAs(t, err, &incomplete)
	assert.Zero(t, incomplete.PartNumber)
	assert.NotContains(t, err.Error(), "part 0")
	assert.Empty(t, fake.issuedParts())
	assert.Len(t, fake.aborts, 1)
}

func TestUploadThreshold(t *testing.T) {
	tests := []struct {
		name      string
		size      int64
		multipart bool
	}{
		{"below threshold", 63, false},
		{"at threshold", 64, true},
		{"above threshold", 65, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStorage(t)
			fake := &fakeAPI{storage: store, partSize: 16}
			u := &Uploader{API: fake, Threshold: 64, Logger: logging.Discard()}

			res, err := u.Upload(context.Background(), Source{
				Name:   "clip.wav",
				Size:   tt.size,
				Reader: patternReaderAt{size: tt.size},
			})
			require.NoError(t, err)

			assert.Equal(t, tt.multipart, res.Multipart)
			if tt.multipart {
				require.Len(t, fake.completes, 1)
				assert.Len(t, fake.completes[0].Parts, int((tt.size+15)/16))
				assert.Equal(t, tt.size, store.totalPartBytes())
			} else {
				assert.Empty(t, fake.issuedParts())
				assert.Len(t, store.objects, 1)
			}
		})
	}
}

func TestUploadRequiresSource(t *testing.T) {
	u := &Uploader{API: &fakeAPI{}, Logger: logging.Discard()}

	_, err := u.Upload(context.Background(), Source{Name: "x.pdf"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestShareLink(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		shortID string
		key     string
		want    string
	}{
		{"short id", "https://share.test", "abc123", "1-a.pdf", "https://share.test/abc123"},
		{"trailing slash", "https://share.test/", "abc123", "1-a.pdf", "https://share.test/abc123"},
		{"falls back to key", "https://share.test", "", "1-my file.pdf", "https://share.test/1-my%20file.pdf"},
		{"no base", "", "abc123", "1-a.pdf", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShareLink(tt.base, tt.shortID, tt.key))
		})
	}
}

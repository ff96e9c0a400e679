package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stefando/shareDrop/internal/upload"
)

// fakeStorage stands in for the object store behind presigned URLs.
// Objects live under /objects/, multipart parts under /parts/{n}.
type fakeStorage struct {
	*httptest.Server

	mu          sync.Mutex
	objects     map[string][]byte
	partBytes   map[int]int64
	inFlight    int
	maxInFlight int

	failPart int
	omitETag bool
}

func newFakeStorage(t *testing.T) *fakeStorage {
	t.Helper()

	s := &fakeStorage{
		objects:   make(map[string][]byte),
		partBytes: make(map[int]int64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeStorage) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/parts/"):
		s.putPart(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/objects/"):
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.objects[r.URL.Path] = data
		s.mu.Unlock()
		w.Header().Set("ETag", `"object-etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/objects/"):
		s.mu.Lock()
		data, ok := s.objects[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	default:
		http.Error(w, "unexpected request", http.StatusMethodNotAllowed)
	}
}

func (s *fakeStorage) putPart(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(path.Base(r.URL.Path))
	if err != nil {
		http.Error(w, "bad part", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	written, _ := io.Copy(io.Discard, r.Body)

	if n == s.failPart {
		http.Error(w, "InternalError", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.partBytes[n] = written
	s.mu.Unlock()

	if !s.omitETag {
		w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, n))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *fakeStorage) objectURL(key string) string {
	return s.URL + "/objects/" + key
}

func (s *fakeStorage) peakInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *fakeStorage) totalPartBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, n := range s.partBytes {
		total += n
	}
	return total
}

// fakeAPI is a broker that issues URLs against a fakeStorage.
type fakeAPI struct {
	storage  *fakeStorage
	partSize int64

	// BeforePartURL runs before a part URL is issued; a non-nil error is returned instead
	BeforePartURL func(partNumber int) error
	AbortErr      error

	mu        sync.Mutex
	partCalls []int
	completes []*upload.CompleteRequest
	aborts    []*upload.AbortRequest
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) RequestUploadURL(ctx context.Context, req *upload.UploadURLRequest) (*upload.UploadURLResponse, error) {
	key := "1700000000000-" + req.FileName
	return &upload.UploadURLResponse{
		UploadURL: f.storage.objectURL(key),
		Key:       key,
		ShortID:   "abc123",
		ExpiresIn: 300,
	}, nil
}

func (f *fakeAPI) Initiate(ctx context.Context, req *upload.InitiateRequest) (*upload.InitiateResponse, error) {
	return &upload.InitiateResponse{
		UploadID:  "upload-1",
		Key:       "1700000000000-" + req.FileName,
		ShortID:   "abc123",
		PartSize:  f.partSize,
		ExpiresIn: 300,
	}, nil
}

func (f *fakeAPI) PartURL(ctx context.Context, req *upload.PartURLRequest) (*upload.PartURLResponse, error) {
	f.mu.Lock()
	f.partCalls = append(f.partCalls, req.PartNumber)
	f.mu.Unlock()

	if f.BeforePartURL != nil {
		if err := f.BeforePartURL(req.PartNumber); err != nil {
			return nil, err
		}
	}
	return &upload.PartURLResponse{
		UploadURL:  fmt.Sprintf("%s/parts/%d?uploadId=%s", f.storage.URL, req.PartNumber, req.UploadID),
		PartNumber: req.PartNumber,
		ExpiresIn:  300,
	}, nil
}

func (f *fakeAPI) Complete(ctx context.Context, req *upload.CompleteRequest) (*upload.CompleteResponse, error) {
	f.mu.Lock()
	f.completes = append(f.completes, req)
	f.mu.Unlock()
	return &upload.CompleteResponse{Key: "1700000000000-done"}, nil
}

func (f *fakeAPI) Abort(ctx context.Context, req *upload.AbortRequest) (*upload.AbortResponse, error) {
	f.mu.Lock()
	f.aborts = append(f.aborts, req)
	f.mu.Unlock()
	if f.AbortErr != nil {
		return nil, f.AbortErr
	}
	return &upload.AbortResponse{}, nil
}

func (f *fakeAPI) DownloadURL(ctx context.Context, shortIDOrKey string) (*upload.DownloadURLResponse, error) {
	key := "1700000000000-" + shortIDOrKey
	return &upload.DownloadURLResponse{
		DownloadURL: f.storage.objectURL(key),
		Key:         key,
		ExpiresIn:   300,
	}, nil
}

func (f *fakeAPI) issuedParts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.partCalls...)
}

// patternReaderAt serves size deterministic bytes without holding them in memory.
type patternReaderAt struct {
	size int64
}

func (p patternReaderAt) ReadAt(b []byte, off int64) (int, error) {
	if off >= p.size {
		return 0, io.EOF
	}
	n := int(min(int64(len(b)), p.size-off))
	for i := 0; i < n; i++ {
		b[i] = byte((off + int64(i)) % 251)
	}
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// recordingReporter keeps every sample for later assertions.
type recordingReporter struct {
	mu        sync.Mutex
	updates   []Progress
	completed int
	errs      []error
}

func (r *recordingReporter) Update(p Progress) {
	r.mu.Lock()
	r.updates = append(r.updates, p)
	r.mu.Unlock()
}

func (r *recordingReporter) Complete() {
	r.mu.Lock()
	r.completed++
	r.mu.Unlock()
}

func (r *recordingReporter) Error(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recordingReporter) last() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return Progress{}
	}
	return r.updates[len(r.updates)-1]
}

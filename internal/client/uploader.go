package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/config"
	"github.com/stefando/shareDrop/internal/upload"
)

// abortTimeout bounds the compensating abort, which runs even if ctx is done
const abortTimeout = 30 * time.Second

// Result describes a finished upload.
type Result struct {
	Key       string
	ShortID   string
	Link      string
	Size      int64
	Multipart bool
	Parts     int
	Elapsed   time.Duration
}

// Uploader picks single PUT or multipart transfer by size and drives it.
type Uploader struct {
	API        API
	HTTPClient *http.Client

	// Threshold is the size at which multipart is used. Defaults to 200 MiB.
	Threshold int64

	// Concurrency bounds parts in flight. Defaults to 4.
	Concurrency int

	// PartSize is requested from the broker when positive; the broker may raise it.
	PartSize int64

	ShareBaseURL string
	Progress     ProgressReporter
	Logger       logrus.FieldLogger

	// Clock is replaceable for tests
	Clock func() time.Time
}

func (u *Uploader) threshold() int64 {
	if u.Threshold > 0 {
		return u.Threshold
	}
	return config.DefaultMultipartThreshold
}

func (u *Uploader) concurrency() int {
	if u.Concurrency > 0 {
		return u.Concurrency
	}
	return config.DefaultConcurrency
}

func (u *Uploader) httpClient() *http.Client {
	if u.HTTPClient != nil {
		return u.HTTPClient
	}
	return http.DefaultClient
}

func (u *Uploader) reporter() ProgressReporter {
	if u.Progress != nil {
		return u.Progress
	}
	return NopReporter{}
}

func (u *Uploader) logger() logrus.FieldLogger {
	if u.Logger != nil {
		return u.Logger
	}
	return logrus.StandardLogger()
}

func (u *Uploader) now() time.Time {
	if u.Clock != nil {
		return u.Clock()
	}
	return time.Now()
}

// Upload transfers src and returns its share link. Files at or above the
// threshold use multipart; smaller ones a single PUT.
func (u *Uploader) Upload(ctx context.Context, src Source) (*Result, error) {
	if src.Reader == nil || src.Name == "" {
		return nil, apperr.Validation("upload", fmt.Errorf("%w: source name and reader", apperr.ErrMissingField))
	}
	if src.ContentType == "" {
		src.ContentType = "application/octet-stream"
	}

	log := u.logger().WithFields(logrus.Fields{
		"attempt_id": uuid.NewString(),
		"file":       src.Name,
		"size":       src.Size,
	})

	var (
		res *Result
		err error
	)
	if src.Size >= u.threshold() {
		res, err = u.uploadMultipart(ctx, src, log)
	} else {
		res, err = u.uploadSingle(ctx, src, log)
	}
	if err != nil {
		u.reporter().Error(err)
		return nil, err
	}

	u.reporter().Complete()
	return res, nil
}

func (u *Uploader) uploadSingle(ctx context.Context, src Source, log logrus.FieldLogger) (*Result, error) {
	start := u.now()
	size := src.Size

	issued, err := u.API.RequestUploadURL(ctx, &upload.UploadURLRequest{
		FileName:     src.Name,
		ContentType:  src.ContentType,
		ExpectedSize: &size,
	})
	if err != nil {
		return nil, err
	}
	log = log.WithFields(logrus.Fields{"key": issued.Key, "short_id": issued.ShortID})

	body := newProgressReader(io.NewSectionReader(src.Reader, 0, size), size, u.reporter(), u.now)
	if _, err := u.put(ctx, issued.UploadURL, src.ContentType, body, size); err != nil {
		return nil, apperr.Backend("upload", err).WithKey(issued.Key)
	}

	elapsed := u.now().Sub(start)
	u.reporter().Update(finalProgress(size, elapsed))
	log.WithField("elapsed", elapsed).Info("Upload finished")

	return &Result{
		Key:     issued.Key,
		ShortID: issued.ShortID,
		Link:    ShareLink(u.ShareBaseURL, issued.ShortID, issued.Key),
		Size:    size,
		Elapsed: elapsed,
	}, nil
}

// partQueue hands out part numbers in order, each exactly once. Closing it
// stops further hand-outs without touching parts already taken.
type partQueue struct {
	mu     sync.Mutex
	next   int
	last   int
	closed bool
}

func (q *partQueue) pop() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.next > q.last {
		return 0, false
	}
	n := q.next
	q.next++
	return n, true
}

func (q *partQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// partFailure tags a worker error with the part that caused it
type partFailure struct {
	partNumber int
	err        error
}

func (e *partFailure) Error() string { return fmt.Sprintf("part %d: %v", e.partNumber, e.err) }
func (e *partFailure) Unwrap() error { return e.err }

func (u *Uploader) uploadMultipart(ctx context.Context, src Source, log logrus.FieldLogger) (*Result, error) {
	start := u.now()
	size := src.Size

	req := &upload.InitiateRequest{
		FileName:     src.Name,
		ContentType:  src.ContentType,
		ExpectedSize: &size,
	}
	if u.PartSize > 0 {
		req.PartSize = &u.PartSize
	}

	session, err := u.API.Initiate(ctx, req)
	if err != nil {
		return nil, err
	}

	// later calls address the upload by short id when there is one
	ref := session.ShortID
	if ref == "" {
		ref = session.Key
	}
	log = log.WithFields(logrus.Fields{"key": session.Key, "short_id": session.ShortID, "upload_id": session.UploadID})

	partSize := session.PartSize
	if partSize <= 0 {
		partSize = config.DefaultPartSize
	}
	totalParts := int((size + partSize - 1) / partSize)
	if totalParts > upload.MaxPartNumber {
		err := fmt.Errorf("%d parts of %d bytes exceed the %d part limit", totalParts, partSize, upload.MaxPartNumber)
		return nil, u.abortAfter(ctx, ref, session, 0, apperr.Validation("upload", err), log)
	}

	queue := &partQueue{next: 1, last: totalParts}
	progress := &cumulativeProgress{total: size, start: start, reporter: u.reporter(), now: u.now}

	var (
		mu    sync.Mutex
		etags = make(map[int]string, totalParts)
	)

	// In-flight parts are not cancelled when another fails; the queue is
	// closed so no new part starts.
	var g errgroup.Group
	workers := min(u.concurrency(), totalParts)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				n, ok := queue.pop()
				if !ok {
					return nil
				}

				offset := int64(n-1) * partSize
				length := min(partSize, size-offset)

				etag, err := u.uploadPart(ctx, ref, session.UploadID, n, io.NewSectionReader(src.Reader, offset, length), length, src.ContentType)
				if err != nil {
					queue.close()
					log.WithFields(logrus.Fields{"part_number": n, "error": err}).Warn("Part upload failed")
					return &partFailure{partNumber: n, err: err}
				}

				// only a confirmed upload overwrites the recorded etag
				mu.Lock()
				etags[n] = etag
				mu.Unlock()

				progress.add(length)
			}
		})
	}

	if err := g.Wait(); err != nil {
		partNumber := 0
		var pf *partFailure
		if errors.As(err, &pf) {
			partNumber = pf.partNumber
			err = pf.err
		}
		return nil, u.abortAfter(ctx, ref, session, partNumber, err, log)
	}

	parts := make([]upload.PartTag, 0, len(etags))
	for n, etag := range etags {
		parts = append(parts, upload.PartTag{PartNumber: n, ETag: etag})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	completed, err := u.API.Complete(ctx, &upload.CompleteRequest{
		KeyOrShortID: ref,
		UploadID:     session.UploadID,
		Parts:        parts,
	})
	if err != nil {
		return nil, err
	}

	elapsed := u.now().Sub(start)
	u.reporter().Update(finalProgress(size, elapsed))
	log.WithFields(logrus.Fields{"parts": totalParts, "elapsed": elapsed}).Info("Multipart upload finished")

	key := completed.Key
	if key == "" {
		key = session.Key
	}
	return &Result{
		Key:       key,
		ShortID:   session.ShortID,
		Link:      ShareLink(u.ShareBaseURL, session.ShortID, key),
		Size:      size,
		Multipart: true,
		Parts:     totalParts,
		Elapsed:   elapsed,
	}, nil
}

// abortAfter releases the session after cause and returns the error to surface.
// An abort failure is logged and attached, never substituted for cause.
func (u *Uploader) abortAfter(
	ctx context.Context,
	ref string,
	session *upload.InitiateResponse,
	partNumber int,
	cause error,
	log logrus.FieldLogger,
) error {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	_, abortErr := u.API.Abort(abortCtx, &upload.AbortRequest{KeyOrShortID: ref, UploadID: session.UploadID})
	if abortErr != nil {
		log.WithField("error", abortErr).Error("Abort multipart failed")
	} else {
		log.Info("Aborted multipart upload")
	}

	return &IncompleteTransferError{
		UploadID:   session.UploadID,
		Key:        session.Key,
		PartNumber: partNumber,
		Err:        cause,
		AbortErr:   abortErr,
	}
}

func (u *Uploader) uploadPart(
	ctx context.Context,
	ref, uploadID string,
	partNumber int,
	body io.Reader,
	length int64,
	contentType string,
) (string, error) {
	issued, err := u.API.PartURL(ctx, &upload.PartURLRequest{
		KeyOrShortID:  ref,
		UploadID:      uploadID,
		PartNumber:    partNumber,
		ContentLength: &length,
	})
	if err != nil {
		return "", err
	}

	resp, err := u.put(ctx, issued.UploadURL, contentType, body, length)
	if err != nil {
		return "", err
	}

	etag := strings.ReplaceAll(resp.Header.Get("ETag"), `"`, "")
	if etag == "" {
		return "", fmt.Errorf("no ETag received for part %d", partNumber)
	}
	return etag, nil
}

// put sends body to a presigned URL and returns the drained response
func (u *Uploader) put(ctx context.Context, target, contentType string, body io.Reader, length int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = length
	if length == 0 {
		req.Body = http.NoBody
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransferError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return resp, nil
}

func finalProgress(size int64, elapsed time.Duration) Progress {
	var speed float64
	if elapsed > 0 {
		speed = float64(size) / elapsed.Seconds()
	}
	p := newProgress(size, size, speed)
	p.Percentage = 100
	p.Remaining = 0
	p.RemainingKnown = true
	return p
}

// ShareLink builds the user facing link, preferring the short id.
func ShareLink(base, shortID, key string) string {
	id := shortID
	if id == "" {
		id = key
	}
	if base == "" {
		return id
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(id)
}

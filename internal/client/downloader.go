package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/upload"
)

// Download describes a resolved file.
type Download struct {
	*upload.DownloadURLResponse

	// OriginalName is the file name the uploader used
	OriginalName string
}

// Downloader resolves short ids and fetches objects from their signed URLs.
type Downloader struct {
	API        API
	HTTPClient *http.Client
	Progress   ProgressReporter

	// Clock is replaceable for tests
	Clock func() time.Time
}

// Resolve turns a short id or key into a signed download URL.
func (d *Downloader) Resolve(ctx context.Context, shortIDOrKey string) (*Download, error) {
	resp, err := d.API.DownloadURL(ctx, shortIDOrKey)
	if err != nil {
		return nil, err
	}
	return &Download{
		DownloadURLResponse: resp,
		OriginalName:        OriginalName(resp.Key),
	}, nil
}

// Download resolves shortIDOrKey and streams the object into w, reporting
// progress at every chunk received.
func (d *Downloader) Download(ctx context.Context, shortIDOrKey string, w io.Writer) (*Download, error) {
	info, err := d.Resolve(ctx, shortIDOrKey)
	if err != nil {
		d.reporter().Error(err)
		return nil, err
	}
	if err := d.Fetch(ctx, info, w); err != nil {
		return nil, err
	}
	return info, nil
}

// Fetch streams an already resolved download into w.
func (d *Downloader) Fetch(ctx context.Context, info *Download, w io.Writer) error {
	reporter := d.reporter()
	now := d.Clock
	if now == nil {
		now = time.Now
	}

	if err := d.fetch(ctx, info, w, reporter, now); err != nil {
		reporter.Error(err)
		return err
	}
	reporter.Complete()
	return nil
}

func (d *Downloader) reporter() ProgressReporter {
	if d.Progress != nil {
		return d.Progress
	}
	return NopReporter{}
}

func (d *Downloader) fetch(ctx context.Context, info *Download, w io.Writer, reporter ProgressReporter, now func() time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperr.Backend("download", err).WithKey(info.Key)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		transferErr := &TransferError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		return apperr.Backend("download", transferErr).WithKey(info.Key)
	}

	// ContentLength is -1 when unknown; percentages then stay at zero
	body := newProgressReader(resp.Body, max(resp.ContentLength, 0), reporter, now)
	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("failed to write %s: %w", info.Key, err)
	}
	return nil
}

// OriginalName strips the timestamp prefix from a storage key. Keys without
// a dash are returned unchanged.
func OriginalName(key string) string {
	if _, name, ok := strings.Cut(key, "-"); ok {
		return name
	}
	return key
}

// Package client transfers files to and from storage through presigned URLs
// issued by the broker. Payload bytes go straight to storage.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/upload"
)

// API is the broker surface the client needs.
type API interface {
	RequestUploadURL(ctx context.Context, req *upload.UploadURLRequest) (*upload.UploadURLResponse, error)
	Initiate(ctx context.Context, req *upload.InitiateRequest) (*upload.InitiateResponse, error)
	PartURL(ctx context.Context, req *upload.PartURLRequest) (*upload.PartURLResponse, error)
	Complete(ctx context.Context, req *upload.CompleteRequest) (*upload.CompleteResponse, error)
	Abort(ctx context.Context, req *upload.AbortRequest) (*upload.AbortResponse, error)
	DownloadURL(ctx context.Context, shortIDOrKey string) (*upload.DownloadURLResponse, error)
}

// HTTPAPI talks to the broker over JSON.
type HTTPAPI struct {
	baseURL string
	client  *http.Client
}

var _ API = (*HTTPAPI)(nil)

// NewHTTPAPI creates a broker client for baseURL. A nil client uses http.DefaultClient.
func NewHTTPAPI(baseURL string, client *http.Client) *HTTPAPI {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (a *HTTPAPI) RequestUploadURL(ctx context.Context, req *upload.UploadURLRequest) (*upload.UploadURLResponse, error) {
	var out upload.UploadURLResponse
	if err := a.do(ctx, "issueUploadUrl", http.MethodPost, "/upload-url", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) Initiate(ctx context.Context, req *upload.InitiateRequest) (*upload.InitiateResponse, error) {
	var out upload.InitiateResponse
	if err := a.do(ctx, "initiate", http.MethodPost, "/upload-multipart/initiate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) PartURL(ctx context.Context, req *upload.PartURLRequest) (*upload.PartURLResponse, error) {
	var out upload.PartURLResponse
	if err := a.do(ctx, "partUrl", http.MethodPost, "/upload-multipart/part-url", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) Complete(ctx context.Context, req *upload.CompleteRequest) (*upload.CompleteResponse, error) {
	var out upload.CompleteResponse
	if err := a.do(ctx, "complete", http.MethodPost, "/upload-multipart/complete", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) Abort(ctx context.Context, req *upload.AbortRequest) (*upload.AbortResponse, error) {
	var out upload.AbortResponse
	if err := a.do(ctx, "abort", http.MethodPost, "/upload-multipart/abort", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) DownloadURL(ctx context.Context, shortIDOrKey string) (*upload.DownloadURLResponse, error) {
	var out upload.DownloadURLResponse
	path := "/download-url/" + url.PathEscape(shortIDOrKey)
	if err := a.do(ctx, "issueDownloadUrl", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// envelope is the part of every broker response that reports failure
type envelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Kind    apperr.Kind `json:"kind"`
}

func (a *HTTPAPI) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperr.New(op, kindForStatus(resp.StatusCode), fmt.Errorf("unexpected response (status %d)", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		kind := env.Kind
		if kind == "" {
			kind = kindForStatus(resp.StatusCode)
		}
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return apperr.New(op, kind, errors.New(msg))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func kindForStatus(status int) apperr.Kind {
	switch {
	case status == http.StatusNotFound:
		return apperr.KindNotFound
	case status == http.StatusBadGateway:
		return apperr.KindBackend
	case status >= 400 && status < 500:
		return apperr.KindValidation
	default:
		return ""
	}
}

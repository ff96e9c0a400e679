package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/upload"
)

type handlers struct {
	svc *upload.Service
}

// handleUploadURL issues a presigned PUT URL for a single shot upload
func (h *handlers) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req upload.UploadURLRequest
	if err := decodeJSON(w, r, "issueUploadUrl", &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.IssueUploadURL(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*upload.UploadURLResponse
	}{true, resp})
}

// handleInitiate starts a multipart upload
func (h *handlers) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req upload.InitiateRequest
	if err := decodeJSON(w, r, "initiate", &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.Initiate(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*upload.InitiateResponse
	}{true, resp})
}

// handlePartURL signs the URL for a single part
func (h *handlers) handlePartURL(w http.ResponseWriter, r *http.Request) {
	var req upload.PartURLRequest
	if err := decodeJSON(w, r, "partUrl", &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.PartURL(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*upload.PartURLResponse
	}{true, resp})
}

// completeBody defers part decoding so malformed entries can be dropped individually
type completeBody struct {
	KeyOrShortID string            `json:"keyOrShortId"`
	UploadID     string            `json:"uploadId"`
	Parts        []json.RawMessage `json:"parts"`
}

// normalizeParts keeps entries with an integral part number and a non-empty etag
func normalizeParts(raw []json.RawMessage) []upload.PartTag {
	parts := make([]upload.PartTag, 0, len(raw))
	for _, entry := range raw {
		var p struct {
			PartNumber *float64 `json:"partNumber"`
			ETag       *string  `json:"etag"`
		}
		if err := json.Unmarshal(entry, &p); err != nil {
			continue
		}
		if p.PartNumber == nil || p.ETag == nil || *p.ETag == "" {
			continue
		}
		if *p.PartNumber != math.Trunc(*p.PartNumber) || *p.PartNumber < upload.MinPartNumber || *p.PartNumber > upload.MaxPartNumber {
			continue
		}
		parts = append(parts, upload.PartTag{PartNumber: int(*p.PartNumber), ETag: *p.ETag})
	}
	return parts
}

// handleComplete finalizes a multipart upload
func (h *handlers) handleComplete(w http.ResponseWriter, r *http.Request) {
	const op = "complete"

	var body completeBody
	if err := decodeJSON(w, r, op, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.KeyOrShortID == "" || body.UploadID == "" || body.Parts == nil {
		writeError(w, apperr.Validation(op, fmt.Errorf("%w: keyOrShortId, uploadId and parts are required", apperr.ErrMissingField)))
		return
	}

	parts := normalizeParts(body.Parts)
	if len(parts) == 0 {
		writeError(w, apperr.Validation(op, apperr.ErrEmptyParts))
		return
	}

	resp, err := h.svc.Complete(r.Context(), &upload.CompleteRequest{
		KeyOrShortID: body.KeyOrShortID,
		UploadID:     body.UploadID,
		Parts:        parts,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*upload.CompleteResponse
	}{true, resp})
}

// handleAbort cancels an in-progress multipart upload
func (h *handlers) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req upload.AbortRequest
	if err := decodeJSON(w, r, "abort", &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.svc.Abort(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*upload.AbortResponse
	}{true, resp})
}

// handleSession reports the recorded state of a multipart upload
func (h *handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Session(pathParam(r, "uploadId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*upload.SessionResponse
	}{true, resp})
}

// handleDownloadURL resolves a short id or key into a presigned GET URL
func (h *handlers) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.IssueDownloadURL(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*upload.DownloadURLResponse
	}{true, resp})
}

// pathParam returns the URL parameter decoded exactly once. chi matches on
// the decoded Path unless the request carries a RawPath, so only then is the
// parameter still escaped.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

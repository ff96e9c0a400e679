package upload

import "time"

// UploadURLRequest asks for a single PUT URL
type UploadURLRequest struct {
	FileName     string `json:"fileName"`
	ContentType  string `json:"contentType"`
	ExpectedSize *int64 `json:"expectedSize,omitempty"`
}

// UploadURLResponse contains the signed PUT URL and the identifiers of the new object
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
	ShortID   string `json:"shortId"`
	ExpiresIn int    `json:"expiresIn"`
}

// DownloadURLResponse contains the signed GET URL for an existing object
type DownloadURLResponse struct {
	DownloadURL  string    `json:"downloadUrl"`
	Key          string    `json:"key"`
	ExpiresIn    int       `json:"expiresIn"`
	LastModified time.Time `json:"lastModified"`
}

// InitiateRequest represents the request to initiate a multipart upload
type InitiateRequest struct {
	FileName     string `json:"fileName"`
	ContentType  string `json:"contentType"`
	ExpectedSize *int64 `json:"expectedSize,omitempty"`
	PartSize     *int64 `json:"partSize,omitempty"`
}

// InitiateResponse contains the session identifiers and the negotiated part size
type InitiateResponse struct {
	UploadID  string `json:"uploadId"`
	Key       string `json:"key"`
	ShortID   string `json:"shortId"`
	PartSize  int64  `json:"partSize"`
	ExpiresIn int    `json:"expiresIn"`
}

// PartURLRequest asks for the upload URL of a single part
type PartURLRequest struct {
	KeyOrShortID  string `json:"keyOrShortId"`
	UploadID      string `json:"uploadId"`
	PartNumber    int    `json:"partNumber"`
	ContentLength *int64 `json:"contentLength,omitempty"`
}

// PartURLResponse contains the signed URL for one part
type PartURLResponse struct {
	UploadURL  string `json:"uploadUrl"`
	Key        string `json:"key"`
	PartNumber int    `json:"partNumber"`
	ExpiresIn  int    `json:"expiresIn"`
}

// PartTag represents a completed part with its ETag
type PartTag struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// CompleteRequest represents the request to complete a multipart upload
type CompleteRequest struct {
	KeyOrShortID string    `json:"keyOrShortId"`
	UploadID     string    `json:"uploadId"`
	Parts        []PartTag `json:"parts"`
}

// CompleteResponse contains the final object key
type CompleteResponse struct {
	Key string `json:"key"`
}

// AbortRequest represents the request to abort a multipart upload
type AbortRequest struct {
	KeyOrShortID string `json:"keyOrShortId"`
	UploadID     string `json:"uploadId"`
}

// AbortResponse echoes the key of the discarded upload
type AbortResponse struct {
	Key string `json:"key"`
}

// SessionResponse describes the server side bookkeeping for a multipart upload
type SessionResponse struct {
	UploadID    string    `json:"uploadId"`
	Key         string    `json:"key"`
	ShortID     string    `json:"shortId"`
	PartSize    int64     `json:"partSize"`
	State       State     `json:"state"`
	PartsIssued int       `json:"partsIssued"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

package upload

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/metrics"
	"github.com/stefando/shareDrop/internal/storage"
)

// Initiate starts a multipart upload and registers a short id for its key.
// The part size is the requested one or the default, never below the
// backend minimum.
func (s *Service) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	const op = "initiate"

	if err := s.policy.Check(op, req.FileName, req.ContentType, req.ExpectedSize); err != nil {
		return nil, s.fail(op, err)
	}

	partSize := resolvePartSize(req.PartSize, s.minPartSize, s.defaultPartSize)
	key := generateKey(s.now(), req.FileName)

	shortID, err := s.mintShortID(op)
	if err != nil {
		return nil, s.fail(op, err)
	}

	uploadID, err := s.backend.CreateMultipartUpload(ctx, key, req.ContentType)
	if err != nil {
		return nil, s.fail(op, apperr.Backend(op, err).WithKey(key).WithMessage("failed to initiate multipart upload"))
	}

	s.registry.Register(shortID, key)
	s.sessions.Start(UploadSession{
		Key:       key,
		ShortID:   shortID,
		UploadID:  uploadID,
		PartSize:  partSize,
		CreatedAt: s.now(),
	})
	s.metrics.MultipartOutcome(metrics.OutcomeInitiated)
	s.log.WithFields(logrus.Fields{
		"key":       key,
		"short_id":  shortID,
		"upload_id": uploadID,
		"part_size": partSize,
	}).Info("Initiated multipart upload")

	return &InitiateResponse{
		UploadID:  uploadID,
		Key:       key,
		ShortID:   shortID,
		PartSize:  partSize,
		ExpiresIn: s.expiresIn(),
	}, nil
}

// validatePartURLRequest validates the part URL request
func validatePartURLRequest(req *PartURLRequest) error {
	if req.KeyOrShortID == "" || req.UploadID == "" {
		return fmt.Errorf("%w: keyOrShortId and uploadId are required", apperr.ErrMissingField)
	}
	if !validPartNumber(req.PartNumber) {
		return fmt.Errorf("%w, got %d", apperr.ErrInvalidPartNumber, req.PartNumber)
	}
	if req.ContentLength != nil && *req.ContentLength < 0 {
		return fmt.Errorf("contentLength must not be negative, got %d", *req.ContentLength)
	}
	return nil
}

// PartURL signs the upload URL for one part. Requests may arrive in any order
// and may repeat; each yields a fresh URL for the same destination.
func (s *Service) PartURL(ctx context.Context, req *PartURLRequest) (*PartURLResponse, error) {
	const op = "partUrl"

	if err := validatePartURLRequest(req); err != nil {
		return nil, s.fail(op, apperr.Validation(op, err))
	}

	key := s.registry.Resolve(req.KeyOrShortID)

	var contentLength int64
	if req.ContentLength != nil {
		contentLength = *req.ContentLength
	}

	url, err := s.backend.PresignUploadPart(ctx, key, req.UploadID, int32(req.PartNumber), contentLength, s.urlExpiry)
	if err != nil {
		return nil, s.fail(op, apperr.Backend(op, err).WithKey(key))
	}

	s.sessions.PartIssued(req.UploadID, s.now())
	s.metrics.URLIssued(metrics.KindPart)
	s.log.WithFields(logrus.Fields{
		"key":         key,
		"upload_id":   req.UploadID,
		"part_number": req.PartNumber,
	}).Debug("Issued part URL")

	return &PartURLResponse{
		UploadURL:  url,
		Key:        key,
		PartNumber: req.PartNumber,
		ExpiresIn:  s.expiresIn(),
	}, nil
}

// validateCompleteRequest validates the complete multipart upload request
func validateCompleteRequest(req *CompleteRequest) error {
	if req.KeyOrShortID == "" || req.UploadID == "" {
		return fmt.Errorf("%w: keyOrShortId and uploadId are required", apperr.ErrMissingField)
	}
	if len(req.Parts) == 0 {
		return apperr.ErrEmptyParts
	}
	for _, p := range req.Parts {
		if !validPartNumber(p.PartNumber) {
			return fmt.Errorf("%w, got %d", apperr.ErrInvalidPartNumber, p.PartNumber)
		}
		if p.ETag == "" {
			return fmt.Errorf("%w: etag for part %d", apperr.ErrMissingField, p.PartNumber)
		}
	}
	return nil
}

// sortParts returns the parts ordered by part number in the backend's format.
// Input order is never trusted.
func sortParts(parts []PartTag) []storage.CompletedPart {
	sorted := slices.Clone(parts)
	slices.SortStableFunc(sorted, func(a, b PartTag) int {
		return cmp.Compare(a.PartNumber, b.PartNumber)
	})

	completed := make([]storage.CompletedPart, len(sorted))
	for i, p := range sorted {
		completed[i] = storage.CompletedPart{
			PartNumber: int32(p.PartNumber),
			ETag:       p.ETag,
		}
	}
	return completed
}

// Complete finalizes a multipart upload. Missing or duplicate parts are left
// for the backend to reject.
func (s *Service) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	const op = "complete"

	if err := validateCompleteRequest(req); err != nil {
		return nil, s.fail(op, apperr.Validation(op, err))
	}

	key := s.registry.Resolve(req.KeyOrShortID)

	finalKey, err := s.backend.CompleteMultipartUpload(ctx, key, req.UploadID, sortParts(req.Parts))
	if err != nil {
		return nil, s.fail(op, apperr.Backend(op, err).WithKey(key))
	}

	s.sessions.Finish(req.UploadID, StateCompleted, s.now())
	s.metrics.MultipartOutcome(metrics.OutcomeCompleted)
	s.log.WithFields(logrus.Fields{
		"key":       finalKey,
		"upload_id": req.UploadID,
		"parts":     len(req.Parts),
	}).Info("Completed multipart upload")

	return &CompleteResponse{Key: finalKey}, nil
}

// Abort discards a multipart upload and any parts already stored. Repeated
// aborts are passed through to the backend.
func (s *Service) Abort(ctx context.Context, req *AbortRequest) (*AbortResponse, error) {
	const op = "abort"

	if req.KeyOrShortID == "" || req.UploadID == "" {
		return nil, s.fail(op, apperr.Validation(op, fmt.Errorf("%w: keyOrShortId and uploadId are required", apperr.ErrMissingField)))
	}

	key := s.registry.Resolve(req.KeyOrShortID)

	if err := s.backend.AbortMultipartUpload(ctx, key, req.UploadID); err != nil {
		return nil, s.fail(op, apperr.Backend(op, err).WithKey(key))
	}

	s.sessions.Finish(req.UploadID, StateAborted, s.now())
	s.metrics.MultipartOutcome(metrics.OutcomeAborted)
	s.log.WithFields(logrus.Fields{"key": key, "upload_id": req.UploadID}).Info("Aborted multipart upload")

	return &AbortResponse{Key: key}, nil
}

// Session reports the bookkeeping recorded for uploadID.
func (s *Service) Session(uploadID string) (*SessionResponse, error) {
	const op = "session"

	if uploadID == "" {
		return nil, s.fail(op, apperr.Validation(op, fmt.Errorf("%w: uploadId", apperr.ErrMissingField)))
	}

	session, ok := s.sessions.Get(uploadID)
	if !ok {
		return nil, s.fail(op, apperr.NotFound(op, fmt.Errorf("unknown upload %s", uploadID)))
	}

	return &SessionResponse{
		UploadID:    session.UploadID,
		Key:         session.Key,
		ShortID:     session.ShortID,
		PartSize:    session.PartSize,
		State:       session.State,
		PartsIssued: session.PartsIssued,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}, nil
}

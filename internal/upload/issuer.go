package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stefando/shareDrop/internal/apperr"
	"github.com/stefando/shareDrop/internal/metrics"
	"github.com/stefando/shareDrop/internal/storage"
)

// IssueUploadURL returns a presigned PUT URL for a new object and registers a
// short id for it. Policy violations are reported before any registry or
// backend access.
func (s *Service) IssueUploadURL(ctx context.Context, req *UploadURLRequest) (*UploadURLResponse, error) {
	const op = "issueUploadUrl"

	if err := s.policy.Check(op, req.FileName, req.ContentType, req.ExpectedSize); err != nil {
		return nil, s.fail(op, err)
	}

	key := generateKey(s.now(), req.FileName)
	shortID, err := s.mintShortID(op)
	if err != nil {
		return nil, s.fail(op, err)
	}

	url, err := s.backend.PresignPut(ctx, key, req.ContentType, s.urlExpiry)
	if err != nil {
		return nil, s.fail(op, apperr.Backend(op, err).WithKey(key))
	}

	s.registry.Register(shortID, key)
	s.metrics.URLIssued(metrics.KindUpload)
	s.log.WithFields(logrus.Fields{"key": key, "short_id": shortID}).Info("Issued upload URL")

	return &UploadURLResponse{
		UploadURL: url,
		Key:       key,
		ShortID:   shortID,
		ExpiresIn: s.expiresIn(),
	}, nil
}

// IssueDownloadURL resolves shortIDOrKey and returns a presigned GET URL,
// but only after confirming the object exists and is not empty.
func (s *Service) IssueDownloadURL(ctx context.Context, shortIDOrKey string) (*DownloadURLResponse, error) {
	const op = "issueDownloadUrl"

	if shortIDOrKey == "" {
		return nil, s.fail(op, apperr.Validation(op, fmt.Errorf("%w: file id is required", apperr.ErrMissingField)))
	}

	key := s.registry.Resolve(shortIDOrKey)

	info, err := s.backend.Head(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, s.fail(op, apperr.NotFound(op, apperr.ErrObjectNotFound).WithKey(key))
		}
		return nil, s.fail(op, apperr.Backend(op, err).WithKey(key))
	}
	if info.Size <= 0 {
		return nil, s.fail(op, apperr.NotFound(op, apperr.ErrObjectNotFound).WithKey(key))
	}

	url, err := s.backend.PresignGet(ctx, key, s.urlExpiry)
	if err != nil {
		return nil, s.fail(op, apperr.Backend(op, err).WithKey(key))
	}

	s.metrics.URLIssued(metrics.KindDownload)
	s.log.WithField("key", key).Debug("Issued download URL")

	return &DownloadURLResponse{
		DownloadURL:  url,
		Key:          key,
		ExpiresIn:    s.expiresIn(),
		LastModified: info.LastModified,
	}, nil
}

package client

import (
	"fmt"

	"github.com/stefando/shareDrop/internal/apperr"
)

// IncompleteTransferError reports a multipart upload interrupted by a failed
// part. Err is the original failure; AbortErr is set when the compensating
// abort also failed, and never replaces Err.
type IncompleteTransferError struct {
	UploadID   string
	Key        string
	PartNumber int
	Err        error
	AbortErr   error
}

func (e *IncompleteTransferError) Error() string {
	msg := fmt.Sprintf("multipart upload %s of %s incomplete: %v", e.UploadID, e.Key, e.Err)
	// zero means the upload failed before any part was attempted
	if e.PartNumber > 0 {
		msg = fmt.Sprintf("multipart upload %s of %s incomplete: part %d: %v", e.UploadID, e.Key, e.PartNumber, e.Err)
	}
	if e.AbortErr != nil {
		msg += fmt.Sprintf(" (abort also failed: %v)", e.AbortErr)
	}
	return msg
}

func (e *IncompleteTransferError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, apperr.ErrIncompleteTransfer) hold.
func (e *IncompleteTransferError) Is(target error) bool {
	return target == apperr.ErrIncompleteTransfer
}

// TransferError is a non-2xx answer from the storage endpoint.
type TransferError struct {
	StatusCode int
	Body       string
}

func (e *TransferError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("storage responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("storage responded with status %d: %s", e.StatusCode, e.Body)
}

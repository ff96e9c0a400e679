// Package apperr defines the error taxonomy shared by the upload broker and its client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can pick a status code
// and callers can branch without string matching.
type Kind string

const (
	// KindValidation covers missing or malformed required fields.
	KindValidation Kind = "validation"

	// KindPolicy covers size and file type policy violations.
	KindPolicy Kind = "policy"

	// KindNotFound means the addressed object does not exist in storage.
	KindNotFound Kind = "not_found"

	// KindBackend wraps failures reported by the storage backend.
	KindBackend Kind = "backend"

	// KindIncompleteTransfer means a multipart transfer was interrupted by a failed part.
	KindIncompleteTransfer Kind = "incomplete_transfer"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	ErrMissingField       = errors.New("required field missing")
	ErrInvalidFileName    = errors.New("invalid file name")
	ErrInvalidPartNumber  = errors.New("partNumber must be an integer between 1 and 10000")
	ErrEmptyParts         = errors.New("parts are required to complete the upload")
	ErrFileTooLarge       = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedType    = errors.New("file type is not allowed")
	ErrObjectNotFound     = errors.New("file not found")
	ErrIncompleteTransfer = errors.New("multipart transfer incomplete")
)

// Error carries the operation that failed, its classification and, when known, the object key.
type Error struct {
	// Op is the operation that failed (e.g. "issueUploadUrl", "complete")
	Op string

	// Kind classifies the failure
	Kind Kind

	// Key is the storage key involved, if any
	Key string

	// Err is the underlying cause
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage prefixes the underlying error with a message, keeping it in the chain.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// New builds an Error of the given kind.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func Validation(op string, err error) *Error { return New(op, KindValidation, err) }

func Policy(op string, err error) *Error { return New(op, KindPolicy, err) }

func NotFound(op string, err error) *Error { return New(op, KindNotFound, err) }

func Backend(op string, err error) *Error { return New(op, KindBackend, err) }

// KindOf returns the Kind of the first *Error in err's chain. An incomplete
// transfer outranks the kind of the failure that interrupted it. Errors that
// are not classified report an empty Kind.
func KindOf(err error) Kind {
	if errors.Is(err, ErrIncompleteTransfer) {
		return KindIncompleteTransfer
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned at the HTTP boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindPolicy:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	units "github.com/docker/go-units"

	"github.com/stefando/shareDrop/internal/apperr"
)

// Policy is the single admission check applied by every issuance path.
type Policy struct {
	// MaxFileSize is the largest expectedSize accepted, inclusive
	MaxFileSize int64

	// AllowedTypes lists accepted file extensions without the dot. Empty allows everything.
	AllowedTypes []string
}

// Check validates the fields shared by single and multipart issuance. It
// never touches the registry or the backend.
func (p Policy) Check(op, fileName, contentType string, expectedSize *int64) error {
	if fileName == "" || contentType == "" {
		return apperr.Validation(op, fmt.Errorf("%w: fileName and contentType are required", apperr.ErrMissingField))
	}
	if err := validateFileName(fileName); err != nil {
		return apperr.Validation(op, err)
	}

	if expectedSize != nil {
		if *expectedSize < 0 {
			return apperr.Validation(op, fmt.Errorf("expectedSize must not be negative, got %d", *expectedSize))
		}
		if p.MaxFileSize > 0 && *expectedSize > p.MaxFileSize {
			return apperr.Policy(op, fmt.Errorf("%w: limit is %s", apperr.ErrFileTooLarge, units.BytesSize(float64(p.MaxFileSize))))
		}
	}

	if !p.allows(fileName) {
		return apperr.Policy(op, fmt.Errorf("%w: allowed types are %s", apperr.ErrUnsupportedType, strings.Join(p.AllowedTypes, ", ")))
	}
	return nil
}

func (p Policy) allows(fileName string) bool {
	if len(p.AllowedTypes) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	for _, allowed := range p.AllowedTypes {
		if strings.EqualFold(ext, strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}

// validateFileName rejects names that would escape the flat key namespace.
func validateFileName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", apperr.ErrInvalidFileName, name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control characters are not allowed", apperr.ErrInvalidFileName)
		}
	}
	return nil
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := Policy("issueUploadUrl", ErrFileTooLarge).WithKey("1700000000000-a.pdf")
	assert.Equal(t, "issueUploadUrl 1700000000000-a.pdf: file exceeds the maximum allowed size", err.Error())

	err = Validation("partUrl", ErrMissingField).WithMessage("uploadId")
	assert.Equal(t, "partUrl: uploadId: required field missing", err.Error())
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("op", ErrMissingField), KindValidation},
		{"wrapped policy", fmt.Errorf("outer: %w", Policy("op", ErrUnsupportedType)), KindPolicy},
		{"not found", NotFound("op", ErrObjectNotFound), KindNotFound},
		{"backend", Backend("op", errors.New("boom")), KindBackend},
		{"incomplete sentinel", fmt.Errorf("x: %w", ErrIncompleteTransfer), KindIncompleteTransfer},
		{"plain", errors.New("plain"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("op", ErrMissingField)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Policy("op", ErrFileTooLarge)))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("op", ErrObjectNotFound)))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Backend("op", errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
	assert.False(t, Is(nil, KindBackend))
}

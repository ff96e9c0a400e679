package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stefando/shareDrop/internal/apperr"
)

// maxBodyBytes caps JSON request bodies. Payloads never pass through the API.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Kind    apperr.Kind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError converts err into the uniform failure body. Unclassified errors
// are not echoed to the caller.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)

	msg := "internal server error"
	var appErr *apperr.Error
	if kind != "" && errors.As(err, &appErr) {
		msg = appErr.Err.Error()
	}

	writeJSON(w, status, ErrorResponse{Success: false, Error: msg, Kind: kind})
}

// decodeJSON reads a JSON body into dst, reporting malformed input as a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	if r.Body == nil {
		return apperr.Validation(op, fmt.Errorf("%w: request body", apperr.ErrMissingField))
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "partNumber" {
			return apperr.Validation(op, apperr.ErrInvalidPartNumber)
		}
		return apperr.Validation(op, fmt.Errorf("invalid JSON body: %w", err))
	}
	return nil
}

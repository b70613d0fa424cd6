package alarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/oshokin/alarm-gateway/internal/logger"
)

// Stable error codes returned in the "error" field.
const (
	codeBadRequest           = "bad_request"
	codeInvalidJSON          = "invalid_json"
	codeUnauthorized         = "unauthorized"
	codeForbidden            = "forbidden"
	codeNotFound             = "not_found"
	codeMethodNotAllowed     = "method_not_allowed"
	codeUnsupportedMediaType = "unsupported_media_type"
	codeServiceUnavailable   = "service_unavailable"
	codeInternal             = "internal_error"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	// Error is the stable error identifier.
	Error string `json:"error"`
	// Detail is a short human-readable description.
	Detail string `json:"detail,omitempty"`
}

// httpError is an error that carries its HTTP rendering.
type httpError struct {
	Status int
	Code   string
	Detail string
}

func (e httpError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}

	return e.Code
}

// handlerFunc is an HTTP handler that reports failures as errors.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// wrap adapts a handlerFunc to http.HandlerFunc, rendering returned errors.
func wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			handleError(r.Context(), w, err)
		}
	}
}

// handleError renders err. Anything that is not an httpError becomes a 500
// without internal details.
func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	var httpErr httpError
	if errors.As(err, &httpErr) {
		logger.DebugKV(ctx, "Request failed", "status", httpErr.Status, "code", httpErr.Code, "detail", httpErr.Detail)

		if httpErr.Status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}

		writeJSON(w, httpErr.Status, errorResponse{
			Error:  httpErr.Code,
			Detail: httpErr.Detail,
		})

		return
	}

	logger.ErrorKV(ctx, "Unhandled request error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:  codeInternal,
		Detail: "internal server error",
	})
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if payload == nil {
		return
	}

	//nolint:errcheck // Best-effort write to response; connection may be closed.
	json.NewEncoder(w).Encode(payload)
}

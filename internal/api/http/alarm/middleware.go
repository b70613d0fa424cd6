package alarm

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/alarm-gateway/internal/credentials"
	domain "github.com/oshokin/alarm-gateway/internal/domain/alarm"
	"github.com/oshokin/alarm-gateway/internal/logger"
)

// tokenContextKey stores the validated bearer token in the request context.
type tokenContextKey struct{}

// tokenFromContext returns the bearer token set by requireBearer.
func tokenFromContext(ctx context.Context) (domain.Token, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(domain.Token)

	return token, ok
}

// requestLogger echoes the request id and puts a logger scoped to the
// request into the context. Must run after middleware.RequestID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		w.Header().Set(middleware.RequestIDHeader, requestID)

		ctx := logger.WithFields(r.Context(),
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs every request and records it in the metrics registry.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, r.Method, status, elapsed)

		logger.InfoKV(r.Context(), "HTTP request handled",
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
		)
	})
}

// recoverer turns a panic in a handler into a 500 response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			//nolint:errorlint,err113 // http.ErrAbortHandler is compared by identity by net/http itself.
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.ErrorKV(r.Context(), "Panic recovered in HTTP handler", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:  codeInternal,
				Detail: "internal server error",
			})
		}()

		next.ServeHTTP(w, r)
	})
}

// requireBearer rejects requests without a well-formed bearer token and
// stores the token in the context for the handlers.
func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := credentials.ValidateAuthorizationHeader(r.Header.Get("Authorization"))
		if err != nil {
			detail := "Incorrect authentication credentials"
			if errors.Is(err, credentials.ErrMissingAuthorization) {
				detail = "Authentication credentials were not provided"
			}

			handleError(r.Context(), w, httpError{
				Status: http.StatusUnauthorized,
				Code:   codeUnauthorized,
				Detail: detail,
			})

			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireJSON answers 415 when the body is declared as anything but JSON.
// A request without Content-Type is read as JSON.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		if contentType != "" {
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				handleError(r.Context(), w, httpError{
					Status: http.StatusUnsupportedMediaType,
					Code:   codeUnsupportedMediaType,
					Detail: "Request body must be application/json",
				})

				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// requestLogger logs one line per request
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			event := logger.Info()
			if ww.Status() >= 500 {
				event = logger.Error()
			}
			event.
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

// requireToken checks the static bearer token. An empty token disables the check.
func requireToken(token string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := bearerToken(r)
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Msg("Rejected request with missing or invalid API token")
				writeError(w, http.StatusUnauthorized, "invalid or missing API token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for websocket clients that cannot set headers
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// workspaceScope stores the workspace path parameter in the request context
func workspaceScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID := chi.URLParam(r, "workspaceId")
		if strings.TrimSpace(workspaceID) == "" {
			writeError(w, http.StatusBadRequest, "workspaceId is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(domain.WithWorkspaceID(r.Context(), workspaceID)))
	})
}

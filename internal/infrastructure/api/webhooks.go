package api

import (
	"errors"
	"io"
	"net/http"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/metaads"

	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 5 << 20

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := domain.ConnectorType(chi.URLParam(r, "provider"))
	logger := s.logger.With().Str("provider", string(provider)).Logger()

	// signatures cover the exact bytes, so read the raw body before anything else
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read webhook body")
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	result, err := s.deps.Webhooks.Handle(r.Context(), provider, body, r.Header, r.URL.Query().Get("connector"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// a 5xx makes the provider redeliver
			writeError(w, status, "failed to process webhook")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true, "result": result})
}

// handleWebhookHandshake answers the Meta subscription verification request
func (s *Server) handleWebhookHandshake(w http.ResponseWriter, r *http.Request) {
	if domain.ConnectorType(chi.URLParam(r, "provider")) != domain.ConnectorMetaAds {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	challenge, err := metaads.VerifySubscription(r.URL.Query(), s.deps.MetaVerifyToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Meta webhook verification failed")
		status := http.StatusForbidden
		if !errors.Is(err, domain.ErrInvalidSignature) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

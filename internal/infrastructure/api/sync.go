package api

import (
	"context"
	"errors"
	"net/http"

	"aibos-connector-sync/internal/domain"

	"github.com/go-chi/chi/v5"
)

// handleSyncConnector runs one connector synchronously. A run that started
// and failed answers 502 with its summary.
func (s *Server) handleSyncConnector(w http.ResponseWriter, r *http.Request) {
	workspaceID := domain.GetWorkspaceIDFromContext(r.Context())
	connectorID := chi.URLParam(r, "connectorId")
	ctx := domain.WithTrigger(r.Context(), domain.TriggerAPI)

	summary, err := s.deps.Sync.SyncSingleConnector(ctx, workspaceID, connectorID)
	if err != nil {
		if isRejection(err) || summary == nil {
			writeDomainError(w, err)
			return
		}
		s.logger.Warn().Err(err).Str("connectorId", connectorID).Msg("Connector sync failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSyncWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := domain.GetWorkspaceIDFromContext(r.Context())
	s.runInBackground("workspace:"+workspaceID, func(ctx context.Context) {
		summaries, err := s.deps.Sync.SyncWorkspaceConnectors(ctx, workspaceID)
		if err != nil {
			s.logger.Error().Err(err).Str("workspaceId", workspaceID).Msg("Workspace sync failed")
			return
		}
		s.logger.Info().Str("workspaceId", workspaceID).Int("connectors", len(summaries)).Msg("Workspace sync finished")
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "workspace_id": workspaceID})
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	s.runInBackground("all", func(ctx context.Context) {
		summaries, err := s.deps.Sync.SyncAllConnectors(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Sync of all connectors failed")
			return
		}
		s.logger.Info().Int("connectors", len(summaries)).Msg("Sync of all connectors finished")
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// isRejection reports errors raised before a run started
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrSyncInProgress) ||
		errors.Is(err, domain.ErrConnectorDisabled)
}

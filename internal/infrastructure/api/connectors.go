package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"aibos-connector-sync/internal/application"
	"aibos-connector-sync/internal/domain"

	"github.com/go-chi/chi/v5"
)

const maxRequestBody = 1 << 20

func (s *Server) handleListConnectors(w http.ResponseWriter, r *http.Request) {
	workspaceID := domain.GetWorkspaceIDFromContext(r.Context())
	conns, err := s.deps.Connectors.ListConnectors(r.Context(), workspaceID)
	if err != nil {
		s.logger.Error().Err(err).Str("workspaceId", workspaceID).Msg("Failed to list connectors")
		writeDomainError(w, err)
		return
	}
	if conns == nil {
		conns = []*domain.Connector{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"connectors": conns})
}

func (s *Server) handleCreateConnector(w http.ResponseWriter, r *http.Request) {
	var input application.CreateConnectorInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input.WorkspaceID = domain.GetWorkspaceIDFromContext(r.Context())

	conn, err := s.deps.Connectors.CreateConnector(r.Context(), input)
	if err != nil {
		s.logger.Warn().Err(err).Str("workspaceId", input.WorkspaceID).Str("type", input.Type).Msg("Failed to create connector")
		status := statusFor(err)
		if status == http.StatusNotFound || status == http.StatusInternalServerError {
			// an unknown type or a rejected input is the caller's problem
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

func (s *Server) handleGetConnector(w http.ResponseWriter, r *http.Request) {
	conn, err := s.deps.Connectors.GetConnector(r.Context(), domain.GetWorkspaceIDFromContext(r.Context()), chi.URLParam(r, "connectorId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

type updateConnectorRequest struct {
	IsEnabled *bool `json:"is_enabled"`
}

func (s *Server) handleUpdateConnector(w http.ResponseWriter, r *http.Request) {
	var req updateConnectorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil || req.IsEnabled == nil {
		writeError(w, http.StatusBadRequest, "is_enabled is required")
		return
	}

	conn, err := s.deps.Connectors.SetEnabled(r.Context(), domain.GetWorkspaceIDFromContext(r.Context()), chi.URLParam(r, "connectorId"), *req.IsEnabled)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleTestConnector(w http.ResponseWriter, r *http.Request) {
	ok, err := s.deps.Connectors.TestConnector(r.Context(), domain.GetWorkspaceIDFromContext(r.Context()), chi.URLParam(r, "connectorId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handleListSyncLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := s.deps.Connectors.ListSyncLogs(r.Context(), domain.GetWorkspaceIDFromContext(r.Context()), chi.URLParam(r, "connectorId"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if logs == nil {
		logs = []*domain.SyncLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync_logs": logs})
}

// Package api is the HTTP surface: provider webhooks, connector management,
// sync triggers, the realtime stream, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"aibos-connector-sync/internal/application"
	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/infrastructure/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// ConnectorManager is the connector management surface
type ConnectorManager interface {
	CreateConnector(ctx context.Context, input application.CreateConnectorInput) (*domain.Connector, error)
	GetConnector(ctx context.Context, workspaceID, connectorID string) (*domain.Connector, error)
	ListConnectors(ctx context.Context, workspaceID string) ([]*domain.Connector, error)
	SetEnabled(ctx context.Context, workspaceID, connectorID string, enabled bool) (*domain.Connector, error)
	TestConnector(ctx context.Context, workspaceID, connectorID string) (bool, error)
	ListSyncLogs(ctx context.Context, workspaceID, connectorID string, limit int) ([]*domain.SyncLog, error)
}

// SyncTrigger starts connector syncs
type SyncTrigger interface {
	SyncSingleConnector(ctx context.Context, workspaceID, connectorID string) (*application.RunSummary, error)
	SyncWorkspaceConnectors(ctx context.Context, workspaceID string) ([]application.RunSummary, error)
	SyncAllConnectors(ctx context.Context) ([]application.RunSummary, error)
}

// WebhookReceiver processes raw provider deliveries
type WebhookReceiver interface {
	Handle(ctx context.Context, provider domain.ConnectorType, body []byte, headers http.Header, connectorHint string) (*application.WebhookResult, error)
}

// Deps are the collaborators the router serves
type Deps struct {
	Connectors ConnectorManager
	Sync       SyncTrigger
	Webhooks   WebhookReceiver
	Hub        *realtime.Hub
	Metrics    http.Handler
	// APIToken guards everything under /api except webhooks; empty disables the check
	APIToken string
	// MetaVerifyToken answers the Meta subscription handshake
	MetaVerifyToken string
	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string
}

// Server owns the router and the background syncs it started
type Server struct {
	deps       Deps
	logger     zerolog.Logger
	background sync.WaitGroup
	baseCtx    context.Context
}

// NewServer creates a server. Background syncs started by requests run
// under baseCtx rather than the request context.
func NewServer(baseCtx context.Context, deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		deps:    deps,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// providers authenticate with signatures, not the API token
		r.Post("/webhooks/{provider}", s.handleWebhook)
		r.Get("/webhooks/{provider}", s.handleWebhookHandshake)

		r.Group(func(r chi.Router) {
			r.Use(requireToken(s.deps.APIToken, s.logger))

			r.Post("/sync", s.handleSyncAll)
			r.Get("/realtime", s.handleRealtime)

			r.Route("/workspaces/{workspaceId}", func(r chi.Router) {
				r.Use(workspaceScope)

				r.Post("/sync", s.handleSyncWorkspace)
				r.Get("/connectors", s.handleListConnectors)
				r.Post("/connectors", s.handleCreateConnector)
				r.Get("/connectors/{connectorId}", s.handleGetConnector)
				r.Patch("/connectors/{connectorId}", s.handleUpdateConnector)
				r.Post("/connectors/{connectorId}/test", s.handleTestConnector)
				r.Post("/connectors/{connectorId}/sync", s.handleSyncConnector)
				r.Get("/connectors/{connectorId}/sync-logs", s.handleListSyncLogs)
			})
		})
	})

	return r
}

// Wait blocks until background syncs started by requests have finished
func (s *Server) Wait() {
	s.background.Wait()
}

// runInBackground detaches work from the request that started it
func (s *Server) runInBackground(name string, fn func(ctx context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("job", name).Msg("Background sync panicked")
			}
		}()
		fn(domain.WithTrigger(s.baseCtx, domain.TriggerAPI))
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"context"
	"net/http"
	"time"

	"aibos-connector-sync/internal/infrastructure/realtime"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const realtimeWriteTimeout = 10 * time.Second

// handleRealtime streams pipeline events over a websocket. workspaceId
// narrows the stream to one workspace plus global events.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime stream disabled")
		return
	}
	workspaceID := r.URL.Query().Get("workspaceId")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// the client only listens; CloseRead handles control frames and
	// cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())

	sub := s.deps.Hub.Subscribe(ctx, &realtime.Filter{WorkspaceID: workspaceID})
	defer s.deps.Hub.Unsubscribe(sub.ID)

	logger := s.logger.With().Str("subscriptionId", sub.ID).Str("workspaceId", workspaceID).Logger()
	logger.Info().Msg("Realtime client connected")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Realtime client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-sub.Events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, realtimeWriteTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to write realtime event")
				return
			}
		}
	}
}

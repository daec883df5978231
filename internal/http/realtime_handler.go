package http

import (
	"log/slog"
	"net/http"
)

type realtimeServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// RealtimeHandler upgrades authenticated requests to the websocket hub.
type RealtimeHandler struct {
	server realtimeServer
	logger *slog.Logger
}

func NewRealtimeHandler(server realtimeServer, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{server: server, logger: logger}
}

func (h *RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.server == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "RealtimeHandler", "Connect", "user_id", principal.UserID)
	logger.DebugContext(r.Context(), "realtime connection opened")
	// The upgrader has already answered the request when Serve fails.
	if err := h.server.Serve(w, r, principal.UserID); err != nil {
		logger.WarnContext(r.Context(), "realtime connection ended", "error", err)
		return
	}
	logger.DebugContext(r.Context(), "realtime connection closed")
}

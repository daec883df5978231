package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

type activityService interface {
	ListActivities(ctx context.Context, principal application.Principal) ([]application.Activity, error)
	MarkAllRead(ctx context.Context, principal application.Principal) (int, error)
}

type ActivityHandler struct {
	service   activityService
	responder responder
}

func NewActivityHandler(service activityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{service: service, responder: newResponder(logger)}
}

type markReadResponse struct {
	Updated int `json:"updated"`
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	activities, err := h.service.ListActivities(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromActivities(activities))
}

func (h *ActivityHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	updated, err := h.service.MarkAllRead(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, markReadResponse{Updated: updated})
}

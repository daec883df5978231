package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

type participantService interface {
	UpsertProfile(ctx context.Context, principal application.Principal, input application.ParticipantInput) (application.Participant, error)
	GetProfile(ctx context.Context, principal application.Principal) (application.Participant, error)
}

// ParticipantHandler lets the profile service keep the local participant
// cache current.
type ParticipantHandler struct {
	service   participantService
	responder responder
}

func NewParticipantHandler(service participantService, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{service: service, responder: newResponder(logger)}
}

type participantRequest struct {
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (h *ParticipantHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	participant, err := h.service.GetProfile(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromParticipant(participant))
}

func (h *ParticipantHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req participantRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	participant, err := h.service.UpsertProfile(r.Context(), principal, application.ParticipantInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromParticipant(participant))
}

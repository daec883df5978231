package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

type chatService interface {
	Status(ctx context.Context, principal application.Principal, bookingID string) (application.ChatStatus, error)
	SendMessage(ctx context.Context, params application.SendMessageParams) (application.Message, error)
	ListMessages(ctx context.Context, principal application.Principal, bookingID string) ([]application.Message, error)
}

// ChatHandler serves the gated chat of a booking.
type ChatHandler struct {
	service   chatService
	responder responder
}

func NewChatHandler(service chatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, responder: newResponder(logger)}
}

type messageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status, err := h.service.Status(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromChatStatus(status))
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	messages, err := h.service.ListMessages(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromMessages(messages))
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	message, err := h.service.SendMessage(r.Context(), application.SendMessageParams{
		Principal: principal,
		BookingID: bookingID,
		Content:   req.Content,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, wire.FromMessage(message))
}

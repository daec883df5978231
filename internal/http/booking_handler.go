package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

type bookingService interface {
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.BookingView, error)
	GetBookingForPair(ctx context.Context, principal application.Principal, counterpartID string) (application.BookingView, error)
	ListMyBookings(ctx context.Context, principal application.Principal) ([]application.BookingView, error)
	ConfirmBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) error
	CancelConfirmed(ctx context.Context, principal application.Principal, bookingID string) (time.Time, error)
	SubmitFeedback(ctx context.Context, params application.FeedbackParams) (application.Booking, error)
	GetContact(ctx context.Context, principal application.Principal, bookingID string) (application.ContactDetails, error)
}

// BookingHandler serves booking lifecycle endpoints.
type BookingHandler struct {
	service   bookingService
	responder responder
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: service, responder: newResponder(logger)}
}

type feedbackRequest struct {
	Attended     *bool `json:"attended"`
	WantsContact *bool `json:"wantsContact"`
}

type cancelConfirmedResponse struct {
	PenalizedUntil string `json:"penalizedUntil"`
}

// List returns the principal's active bookings in the nested participant shape.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	views, err := h.service.ListMyBookings(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]wire.NestedBooking, 0, len(views))
	for _, view := range views {
		out = append(out, wire.NestedFromBookingView(view))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	view, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromBookingView(view))
}

func (h *BookingHandler) ForPair(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	counterpartID, ok := pathID(r, "counterpartId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.service.GetBookingForPair(r.Context(), principal, counterpartID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromBookingView(view))
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
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
	booking, err := h.service.ConfirmBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromBooking(booking.RedactFor(principal.UserID)))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.CancelBooking(r.Context(), principal, bookingID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookingHandler) CancelConfirmed(w http.ResponseWriter, r *http.Request) {
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
	until, err := h.service.CancelConfirmed(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cancelConfirmedResponse{PenalizedUntil: wire.Timestamp(until)})
}

func (h *BookingHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if vErr := req.validate(); vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.SubmitFeedback(r.Context(), application.FeedbackParams{
		Principal:    principal,
		BookingID:    bookingID,
		Attended:     *req.Attended,
		WantsContact: *req.WantsContact,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromBooking(booking.RedactFor(principal.UserID)))
}

func (req feedbackRequest) validate() *application.ValidationError {
	fields := make(map[string]string)
	if req.Attended == nil {
		fields["attended"] = "attended is required"
	}
	if req.WantsContact == nil {
		fields["wantsContact"] = "wantsContact is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: fields}
}

func (h *BookingHandler) Contact(w http.ResponseWriter, r *http.Request) {
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
	contact, err := h.service.GetContact(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromContact(contact))
}

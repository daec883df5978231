package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

type paymentService interface {
	CreatePaymentURL(ctx context.Context, params application.PaymentParams) (application.PaymentRedirect, error)
	VerifyPayment(ctx context.Context, params url.Values) (application.PaymentVerification, error)
	CheckReturn(ctx context.Context, params url.Values) (application.PaymentVerification, error)
}

// PaymentHandler starts provider payments and receives their callbacks. The
// callback endpoints are authenticated by the provider signature, not by a
// principal.
type PaymentHandler struct {
	service   paymentService
	logger    *slog.Logger
	responder responder
}

func NewPaymentHandler(service paymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger, responder: newResponder(logger)}
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
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
	redirect, err := h.service.CreatePaymentURL(r.Context(), application.PaymentParams{
		Principal: principal,
		BookingID: bookingID,
		ClientIP:  clientIP(r),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, wire.PaymentRedirect{TxnRef: redirect.TxnRef, PaymentURL: redirect.URL})
}

// IPN answers the provider's server-to-server notification. The provider
// expects HTTP 200 with a merchant response code for every outcome.
func (h *PaymentHandler) IPN(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	result, err := h.service.VerifyPayment(r.Context(), r.URL.Query())
	if err != nil {
		handlerLogger(r.Context(), h.logger, "PaymentHandler", "IPN").ErrorContext(r.Context(), "payment callback failed", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.PaymentAnswer{RspCode: application.PaymentCodeUnknownError, Message: "Unknown error"})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.PaymentAnswer{RspCode: result.Code, Message: result.Message})
}

func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	result, err := h.service.CheckReturn(r.Context(), r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromPaymentVerification(result))
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

var (
	errBadRequestBody    = errors.New("invalid request body")
	errMissingPrincipal  = errors.New("missing X-User-ID header")
	errInvalidIdentifier = errors.New("invalid identifier in path")
	errRateLimited       = errors.New("too many requests, slow down")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, wire.Error{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr       *application.ValidationError
		slotsErr   *application.InsufficientSlotsError
		lockedErr  *application.ChatLockedError
		penaltyErr *application.PenalizedError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, wire.Error{
			Code:    "VALIDATION_FAILED",
			Message: "The request contains invalid fields.",
			Errors:  vErr.FieldErrors,
		})
	case errors.As(err, &slotsErr):
		have, required := slotsErr.Have, slotsErr.Required
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, wire.Error{
			Code:     "INSUFFICIENT_SLOTS",
			Message:  slotsErr.Error(),
			Have:     &have,
			Required: &required,
		})
	case errors.As(err, &penaltyErr):
		until := wire.Timestamp(penaltyErr.Until)
		r.writeJSON(ctx, w, http.StatusForbidden, wire.Error{Code: "PENALIZED", Message: penaltyErr.Error(), Until: &until})
	case errors.Is(err, application.ErrPenalized):
		r.writeJSON(ctx, w, http.StatusForbidden, wire.Error{Code: "PENALIZED", Message: "Availability submission is temporarily blocked."})
	case errors.Is(err, application.ErrPermission):
		r.writeJSON(ctx, w, http.StatusForbidden, wire.Error{Code: "FORBIDDEN", Message: "You are not allowed to perform this action."})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, wire.Error{Code: "NOT_FOUND", Message: "The requested resource was not found."})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, wire.Error{Code: "CONFLICT", Message: "The request conflicts with the current state of the resource."})
	case errors.Is(err, application.ErrPaymentRequired):
		r.writeJSON(ctx, w, http.StatusPaymentRequired, wire.Error{Code: "PAYMENT_REQUIRED", Message: "Complete the booking payment before confirming."})
	case errors.As(err, &lockedErr):
		unlockAt := wire.Timestamp(lockedErr.UnlockAt)
		r.writeJSON(ctx, w, http.StatusLocked, wire.Error{Code: "CHAT_LOCKED", Message: lockedErr.Error(), UnlockAt: &unlockAt})
	case errors.Is(err, application.ErrChatLocked):
		r.writeJSON(ctx, w, http.StatusLocked, wire.Error{Code: "CHAT_LOCKED", Message: "Chat is not available for this booking."})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, wire.Error{Code: "INTERNAL", Message: "An internal server error occurred."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

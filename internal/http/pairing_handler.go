package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

type matchingService interface {
	RegisterPairing(ctx context.Context, principal application.Principal, userA, userB string) (application.Pairing, error)
	GetPairingStatus(ctx context.Context, principal application.Principal, counterpartID string) (application.Pairing, error)
	ListPairings(ctx context.Context, principal application.Principal) ([]application.Pairing, error)
	Submit(ctx context.Context, principal application.Principal, counterpartID string) (application.SubmitResult, error)
}

type slotService interface {
	AddSlot(ctx context.Context, params application.AddSlotParams) (application.Slot, error)
	DeleteSlot(ctx context.Context, principal application.Principal, slotID string) error
	ListSlots(ctx context.Context, principal application.Principal, counterpartID string) ([]application.Slot, error)
}

// PairingHandler serves pairing status, availability slots and submission.
type PairingHandler struct {
	matching  matchingService
	slots     slotService
	responder responder
}

func NewPairingHandler(matching matchingService, slots slotService, logger *slog.Logger) *PairingHandler {
	return &PairingHandler{matching: matching, slots: slots, responder: newResponder(logger)}
}

type registerPairingRequest struct {
	UserA string `json:"userA"`
	UserB string `json:"userB"`
}

type slotRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (req slotRequest) toInput() (application.SlotInput, error) {
	vErr := &application.ValidationError{}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Start))
	if err != nil {
		vErr.FieldErrors = map[string]string{"start": "start must be an RFC 3339 timestamp"}
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.End))
	if err != nil {
		if vErr.FieldErrors == nil {
			vErr.FieldErrors = make(map[string]string)
		}
		vErr.FieldErrors["end"] = "end must be an RFC 3339 timestamp"
	}
	if vErr.HasErrors() {
		return application.SlotInput{}, vErr
	}
	return application.SlotInput{Start: start, End: end}, nil
}

func (h *PairingHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.matching == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req registerPairingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	pairing, err := h.matching.RegisterPairing(r.Context(), principal, req.UserA, req.UserB)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, wire.FromPairing(pairing))
}

func (h *PairingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.matching == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	pairings, err := h.matching.ListPairings(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromPairings(pairings))
}

func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.matching == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	counterpartID, ok := pathID(r, "counterpartId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	pairing, err := h.matching.GetPairingStatus(r.Context(), principal, counterpartID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromPairing(pairing))
}

func (h *PairingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.matching == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	counterpartID, ok := pathID(r, "counterpartId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.matching.Submit(r.Context(), principal, counterpartID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromSubmitResult(result))
}

func (h *PairingHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	counterpartID, ok := pathID(r, "counterpartId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	slots, err := h.slots.ListSlots(r.Context(), principal, counterpartID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wire.FromSlots(slots))
}

func (h *PairingHandler) AddSlot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	counterpartID, ok := pathID(r, "counterpartId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	var req slotRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	slot, err := h.slots.AddSlot(r.Context(), application.AddSlotParams{
		Principal:     principal,
		CounterpartID: counterpartID,
		Input:         input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, wire.FromSlot(slot))
}

func (h *PairingHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidIdentifier)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.slots.DeleteSlot(r.Context(), principal, slotID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func pathID(r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(r.PathValue(name))
	return id, id != ""
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// SlotService manages the availability windows users declare for a counterpart.
type SlotService struct {
	slots       SlotRepository
	pairings    PairingRepository
	policy      Policy
	locks       *PairLocker
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSlotService wires dependencies for slot operations.
func NewSlotService(deps Dependencies) *SlotService {
	deps = deps.withDefaults()
	return &SlotService{
		slots:       deps.Repositories.Slots,
		pairings:    deps.Repositories.Pairings,
		policy:      deps.Policy,
		locks:       deps.Locks,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      deps.Logger,
	}
}

func (s *SlotService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SlotService", operation, attrs...)
}

// AddSlot validates and stores a new slot for the principal.
func (s *SlotService) AddSlot(ctx context.Context, params AddSlotParams) (slot Slot, err error) {
	if s == nil {
		err = fmt.Errorf("SlotService is nil")
		return
	}
	if s.slots == nil {
		err = fmt.Errorf("slot repository not configured")
		return
	}

	owner := params.Principal.UserID
	logger := s.loggerWith(ctx, "AddSlot",
		"principal_id", owner,
		"counterpart_id", params.CounterpartID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("slot_id", slot.ID).InfoContext(ctx, "slot added")
	}()

	now := s.now()
	if vErr := validateSlotInput(params.Input, now, s.policy); vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensurePairing(ctx, owner, params.CounterpartID); err != nil {
		return
	}

	unlock := s.locks.Lock(owner, params.CounterpartID)
	defer unlock()

	existing, listErr := s.slots.ListSlots(ctx, owner, params.CounterpartID)
	if listErr != nil {
		err = mapRepoError(listErr)
		return
	}
	for _, other := range existing {
		if params.Input.Start.Before(other.End) && other.Start.Before(params.Input.End) {
			vErr := &ValidationError{}
			vErr.add("time", "overlaps an existing slot")
			err = vErr
			return
		}
	}

	candidate := Slot{
		ID:            s.idGenerator(),
		OwnerID:       owner,
		CounterpartID: params.CounterpartID,
		Start:         params.Input.Start.UTC(),
		End:           params.Input.End.UTC(),
		CreatedAt:     now,
	}
	if createErr := s.slots.CreateSlot(ctx, candidate); createErr != nil {
		err = mapRepoError(createErr)
		return
	}

	slot = candidate
	return
}

// DeleteSlot removes one of the principal's slots. Matching is not re-run;
// the next submission reads whatever slots remain.
func (s *SlotService) DeleteSlot(ctx context.Context, principal Principal, slotID string) (err error) {
	if s == nil {
		return fmt.Errorf("SlotService is nil")
	}
	if s.slots == nil {
		return fmt.Errorf("slot repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSlot", "principal_id", principal.UserID, "slot_id", slotID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "slot deleted")
	}()

	existing, getErr := s.slots.GetSlot(ctx, slotID)
	if getErr != nil {
		return mapRepoError(getErr)
	}
	if existing.OwnerID != principal.UserID {
		return ErrPermission
	}
	if delErr := s.slots.DeleteSlot(ctx, slotID); delErr != nil {
		return mapRepoError(delErr)
	}
	return nil
}

// ListSlots returns the principal's slots for counterpartID ordered by start.
func (s *SlotService) ListSlots(ctx context.Context, principal Principal, counterpartID string) (slots []Slot, err error) {
	if s == nil {
		return nil, fmt.Errorf("SlotService is nil")
	}
	if s.slots == nil {
		return nil, fmt.Errorf("slot repository not configured")
	}

	logger := s.loggerWith(ctx, "ListSlots", "principal_id", principal.UserID, "counterpart_id", counterpartID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list slots", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(slots)).InfoContext(ctx, "slots listed")
	}()

	listed, listErr := s.slots.ListSlots(ctx, principal.UserID, counterpartID)
	if listErr != nil {
		return nil, mapRepoError(listErr)
	}
	sortSlots(listed)
	return listed, nil
}

func (s *SlotService) ensurePairing(ctx context.Context, owner, counterpartID string) error {
	if s.pairings == nil {
		return nil
	}
	if _, err := s.pairings.GetPairing(ctx, owner, counterpartID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func validateSlotInput(input SlotInput, now time.Time, policy Policy) *ValidationError {
	vErr := &ValidationError{}

	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if !input.Start.Before(input.End) {
		vErr.add("time", "start must be before end")
		return vErr
	}
	if input.End.Sub(input.Start) < policy.MinSlotDuration {
		vErr.add("time", fmt.Sprintf("slot must last at least %s", policy.MinSlotDuration))
	}
	if input.Start.Before(now) {
		vErr.add("start", "start must not be in the past")
	} else if policy.MaxScheduleWindow > 0 && input.Start.After(now.Add(policy.MaxScheduleWindow)) {
		vErr.add("start", fmt.Sprintf("start must be within %s from now", policy.MaxScheduleWindow))
	}
	return vErr
}

func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].ID < slots[j].ID
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

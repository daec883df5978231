package storage

import (
	"context"
	"time"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/persistence"
)

type adapter struct {
	store persistence.Store
}

type slotAdapter struct{ *adapter }

func (a slotAdapter) CreateSlot(ctx context.Context, slot application.Slot) error {
	return a.store.CreateSlot(ctx, toPersistenceSlot(slot))
}

func (a slotAdapter) GetSlot(ctx context.Context, id string) (application.Slot, error) {
	slot, err := a.store.GetSlot(ctx, id)
	if err != nil {
		return application.Slot{}, err
	}
	return toApplicationSlot(slot), nil
}

func (a slotAdapter) DeleteSlot(ctx context.Context, id string) error {
	return a.store.DeleteSlot(ctx, id)
}

func (a slotAdapter) ListSlots(ctx context.Context, ownerID, counterpartID string) ([]application.Slot, error) {
	slots, err := a.store.ListSlots(ctx, ownerID, counterpartID)
	if err != nil {
		return nil, err
	}
	out := make([]application.Slot, 0, len(slots))
	for _, slot := range slots {
		out = append(out, toApplicationSlot(slot))
	}
	return out, nil
}

func (a slotAdapter) DeleteSlotsForPair(ctx context.Context, userA, userB string) error {
	return a.store.DeleteSlotsForPair(ctx, userA, userB)
}

type pairingAdapter struct{ *adapter }

func (a pairingAdapter) CreatePairing(ctx context.Context, pairing application.Pairing) error {
	return a.store.CreatePairing(ctx, toPersistencePairing(pairing))
}

func (a pairingAdapter) GetPairing(ctx context.Context, userA, userB string) (application.Pairing, error) {
	pairing, err := a.store.GetPairing(ctx, userA, userB)
	if err != nil {
		return application.Pairing{}, err
	}
	return toApplicationPairing(pairing), nil
}

func (a pairingAdapter) UpdatePairing(ctx context.Context, pairing application.Pairing, expectedVersion int64) error {
	return a.store.UpdatePairing(ctx, toPersistencePairing(pairing), expectedVersion)
}

func (a pairingAdapter) ListPairingsForUser(ctx context.Context, userID string) ([]application.Pairing, error) {
	pairings, err := a.store.ListPairingsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]application.Pairing, 0, len(pairings))
	for _, pairing := range pairings {
		out = append(out, toApplicationPairing(pairing))
	}
	return out, nil
}

type bookingAdapter struct{ *adapter }

func (a bookingAdapter) CreateBooking(ctx context.Context, booking application.Booking) error {
	return a.store.CreateBooking(ctx, toPersistenceBooking(booking))
}

func (a bookingAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	booking, err := a.store.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(booking), nil
}

func (a bookingAdapter) UpdateBooking(ctx context.Context, booking application.Booking, expectedVersion int64) error {
	return a.store.UpdateBooking(ctx, toPersistenceBooking(booking), expectedVersion)
}

func (a bookingAdapter) ListBookingsForUser(ctx context.Context, userID string) ([]application.Booking, error) {
	bookings, err := a.store.ListBookingsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]application.Booking, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toApplicationBooking(booking))
	}
	return out, nil
}

type activityAdapter struct{ *adapter }

func (a activityAdapter) CreateActivity(ctx context.Context, activity application.Activity) error {
	return a.store.CreateActivity(ctx, persistence.Activity{
		ID:          activity.ID,
		RecipientID: activity.RecipientID,
		Type:        string(activity.Type),
		Content:     activity.Content,
		ReferenceID: cloneString(activity.ReferenceID),
		IsRead:      activity.IsRead,
		CreatedAt:   activity.CreatedAt,
	})
}

func (a activityAdapter) ListActivities(ctx context.Context, recipientID string) ([]application.Activity, error) {
	activities, err := a.store.ListActivities(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	out := make([]application.Activity, 0, len(activities))
	for _, activity := range activities {
		out = append(out, application.Activity{
			ID:          activity.ID,
			RecipientID: activity.RecipientID,
			Type:        application.ActivityType(activity.Type),
			Content:     activity.Content,
			ReferenceID: cloneString(activity.ReferenceID),
			IsRead:      activity.IsRead,
			CreatedAt:   activity.CreatedAt,
		})
	}
	return out, nil
}

func (a activityAdapter) MarkActivitiesRead(ctx context.Context, recipientID string) (int, error) {
	return a.store.MarkActivitiesRead(ctx, recipientID)
}

type paymentAdapter struct{ *adapter }

func (a paymentAdapter) CreatePayment(ctx context.Context, payment application.Payment) error {
	return a.store.CreatePayment(ctx, persistence.Payment{
		TxnRef:           payment.TxnRef,
		BookingID:        payment.BookingID,
		UserID:           payment.UserID,
		Amount:           payment.Amount,
		Status:           string(payment.Status),
		ProviderResponse: cloneString(payment.ProviderResponse),
		CreatedAt:        payment.CreatedAt,
		UpdatedAt:        payment.UpdatedAt,
	})
}

func (a paymentAdapter) GetPayment(ctx context.Context, txnRef string) (application.Payment, error) {
	payment, err := a.store.GetPayment(ctx, txnRef)
	if err != nil {
		return application.Payment{}, err
	}
	return application.Payment{
		TxnRef:           payment.TxnRef,
		BookingID:        payment.BookingID,
		UserID:           payment.UserID,
		Amount:           payment.Amount,
		Status:           application.PaymentStatus(payment.Status),
		ProviderResponse: cloneString(payment.ProviderResponse),
		CreatedAt:        payment.CreatedAt,
		UpdatedAt:        payment.UpdatedAt,
	}, nil
}

func (a paymentAdapter) TransitionPayment(ctx context.Context, txnRef string, from, to application.PaymentStatus, providerResponse *string, at time.Time) error {
	return a.store.TransitionPayment(ctx, txnRef, string(from), string(to), providerResponse, at)
}

func (a paymentAdapter) HasSuccessfulPayment(ctx context.Context, bookingID, userID string) (bool, error) {
	return a.store.HasSuccessfulPayment(ctx, bookingID, userID)
}

type messageAdapter struct{ *adapter }

func (a messageAdapter) CreateMessage(ctx context.Context, message application.Message) error {
	return a.store.CreateMessage(ctx, persistence.Message(message))
}

func (a messageAdapter) ListMessages(ctx context.Context, bookingID string) ([]application.Message, error) {
	messages, err := a.store.ListMessages(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	out := make([]application.Message, 0, len(messages))
	for _, message := range messages {
		out = append(out, application.Message(message))
	}
	return out, nil
}

type participantAdapter struct{ *adapter }

func (a participantAdapter) UpsertParticipant(ctx context.Context, participant application.Participant) error {
	return a.store.UpsertParticipant(ctx, persistence.Participant{
		ID:             participant.ID,
		DisplayName:    participant.DisplayName,
		Email:          participant.Email,
		Latitude:       cloneFloat(participant.Latitude),
		Longitude:      cloneFloat(participant.Longitude),
		PenalizedUntil: cloneTime(participant.PenalizedUntil),
		UpdatedAt:      participant.UpdatedAt,
	})
}

func (a participantAdapter) GetParticipant(ctx context.Context, id string) (application.Participant, error) {
	participant, err := a.store.GetParticipant(ctx, id)
	if err != nil {
		return application.Participant{}, err
	}
	return application.Participant{
		ID:             participant.ID,
		DisplayName:    participant.DisplayName,
		Email:          participant.Email,
		Latitude:       cloneFloat(participant.Latitude),
		Longitude:      cloneFloat(participant.Longitude),
		PenalizedUntil: cloneTime(participant.PenalizedUntil),
		UpdatedAt:      participant.UpdatedAt,
	}, nil
}

func (a participantAdapter) SetPenalty(ctx context.Context, id string, until time.Time) error {
	return a.store.SetPenalty(ctx, id, until)
}

func toApplicationSlot(model persistence.Slot) application.Slot {
	return application.Slot(model)
}

func toPersistenceSlot(slot application.Slot) persistence.Slot {
	return persistence.Slot(slot)
}

func toApplicationPairing(model persistence.Pairing) application.Pairing {
	return application.Pairing{
		UserA:      model.UserA,
		UserB:      model.UserB,
		Status:     application.PairingStatus(model.Status),
		ASubmitted: model.ASubmitted,
		BSubmitted: model.BSubmitted,
		BookingID:  cloneString(model.BookingID),
		Version:    model.Version,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistencePairing(pairing application.Pairing) persistence.Pairing {
	return persistence.Pairing{
		UserA:      pairing.UserA,
		UserB:      pairing.UserB,
		Status:     string(pairing.Status),
		ASubmitted: pairing.ASubmitted,
		BSubmitted: pairing.BSubmitted,
		BookingID:  cloneString(pairing.BookingID),
		Version:    pairing.Version,
		CreatedAt:  pairing.CreatedAt,
		UpdatedAt:  pairing.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:                    model.ID,
		RequesterID:           model.RequesterID,
		RecipientID:           model.RecipientID,
		Start:                 model.Start,
		End:                   model.End,
		Venue:                 model.Venue,
		Status:                application.BookingStatus(model.Status),
		RequesterConfirmed:    model.RequesterConfirmed,
		RecipientConfirmed:    model.RecipientConfirmed,
		RequesterAttended:     cloneBool(model.RequesterAttended),
		RecipientAttended:     cloneBool(model.RecipientAttended),
		RequesterWantsContact: cloneBool(model.RequesterWantsContact),
		RecipientWantsContact: cloneBool(model.RecipientWantsContact),
		ContactExchanged:      model.ContactExchanged,
		Version:               model.Version,
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:                    booking.ID,
		RequesterID:           booking.RequesterID,
		RecipientID:           booking.RecipientID,
		Start:                 booking.Start,
		End:                   booking.End,
		Venue:                 booking.Venue,
		Status:                string(booking.Status),
		RequesterConfirmed:    booking.RequesterConfirmed,
		RecipientConfirmed:    booking.RecipientConfirmed,
		RequesterAttended:     cloneBool(booking.RequesterAttended),
		RecipientAttended:     cloneBool(booking.RecipientAttended),
		RequesterWantsContact: cloneBool(booking.RequesterWantsContact),
		RecipientWantsContact: cloneBool(booking.RecipientWantsContact),
		ContactExchanged:      booking.ContactExchanged,
		Version:               booking.Version,
		CreatedAt:             booking.CreatedAt,
		UpdatedAt:             booking.UpdatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

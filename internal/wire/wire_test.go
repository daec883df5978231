package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/example/date-booking/internal/application"
)

func sampleView() application.BookingView {
	start := time.Date(2024, time.January, 3, 10, 0, 0, 0, time.UTC)
	attended := true
	return application.BookingView{
		Booking: application.Booking{
			ID:                 "b1",
			RequesterID:        "bob",
			RecipientID:        "alice",
			Start:              start,
			End:                start.Add(90 * time.Minute),
			Venue:              "Cafe - 1 Main St",
			Status:             application.BookingConfirmed,
			RequesterConfirmed: true,
			RecipientConfirmed: true,
			RequesterAttended:  &attended,
			Version:            3,
		},
		RequesterName:  "Bob",
		RecipientName:  "Alice",
		PartnerContact: &application.ContactDetails{UserID: "alice", Email: "alice@example.test"},
	}
}

func TestBookingShapes(t *testing.T) {
	t.Parallel()

	view := sampleView()
	flat := FromBookingView(view)
	nested := NestedFromBookingView(view)

	if flat.RequesterName != "Bob" || nested.Requester.Name != "Bob" {
		t.Fatalf("expected names in both shapes")
	}
	if flat.StartTime != "2024-01-03T10:00:00Z" || nested.StartTime != flat.StartTime {
		t.Fatalf("unexpected start %q / %q", flat.StartTime, nested.StartTime)
	}
	if nested.Requester.Attended == nil || nested.Recipient.Attended != nil {
		t.Fatalf("expected per-side feedback to be carried")
	}
	if flat.PartnerContact == nil || nested.PartnerContact.Email != "alice@example.test" {
		t.Fatalf("expected partner contact in both shapes")
	}

	raw, err := json.Marshal(nested)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := decoded["requester"].(map[string]any); !ok {
		t.Fatalf("expected nested requester object, got %s", raw)
	}
}

func TestFromSubmitResult(t *testing.T) {
	t.Parallel()

	waiting := FromSubmitResult(application.SubmitResult{Pairing: application.Pairing{Status: application.PairingPendingBAvail}})
	if waiting.Status != "PENDING" || waiting.Booking != nil {
		t.Fatalf("unexpected waiting result %#v", waiting)
	}

	booking := sampleView().Booking
	proposed := FromSubmitResult(application.SubmitResult{Pairing: application.Pairing{Status: application.PairingProposed}, Booking: &booking})
	if proposed.Status != string(application.PairingProposed) || proposed.Booking == nil || proposed.Booking.ID != "b1" {
		t.Fatalf("unexpected proposed result %#v", proposed)
	}
}

func TestEventFrame(t *testing.T) {
	t.Parallel()

	frame, err := EventFrame(application.Event{
		UserID:  "alice",
		Topic:   application.TopicScheduling,
		Type:    application.ActivityBookingUpdate,
		Payload: sampleView().Booking,
	})
	if err != nil {
		t.Fatalf("EventFrame failed: %v", err)
	}
	if frame.Type != "BOOKING_UPDATE" || frame.Topic != "scheduling" {
		t.Fatalf("unexpected frame header %#v", frame)
	}
	var booking Booking
	if err := json.Unmarshal(frame.Payload, &booking); err != nil {
		t.Fatalf("Unmarshal payload failed: %v", err)
	}
	if booking.ID != "b1" || booking.Version != 3 || booking.Status != "CONFIRMED" {
		t.Fatalf("unexpected payload %#v", booking)
	}
}

func TestEventFrameCarriesView(t *testing.T) {
	t.Parallel()

	frame, err := EventFrame(application.Event{
		UserID:  "bob",
		Topic:   application.TopicScheduling,
		Type:    application.ActivityBookingUpdate,
		Payload: sampleView(),
	})
	if err != nil {
		t.Fatalf("EventFrame failed: %v", err)
	}
	var booking Booking
	if err := json.Unmarshal(frame.Payload, &booking); err != nil {
		t.Fatalf("Unmarshal payload failed: %v", err)
	}
	if booking.RequesterName != "Bob" || booking.RecipientName != "Alice" {
		t.Fatalf("expected names in pushed booking, got %#v", booking)
	}
	if booking.PartnerContact == nil || booking.PartnerContact.Email != "alice@example.test" {
		t.Fatalf("expected partner contact in pushed booking, got %#v", booking.PartnerContact)
	}
}

func TestFromChatStatusRoundsUp(t *testing.T) {
	t.Parallel()

	status := FromChatStatus(application.ChatStatus{Remaining: 1500 * time.Millisecond})
	if status.RemainingSeconds != 2 {
		t.Fatalf("expected 2 seconds, got %d", status.RemainingSeconds)
	}
}

package application

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/date-booking/internal/chatgate"
	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/venue"
)

// fakeStore implements every repository interface in memory and reports
// persistence sentinels the way real backends do.
type fakeStore struct {
	mu           sync.Mutex
	slots        map[string]Slot
	pairings     map[string]Pairing
	bookings     map[string]Booking
	activities   []Activity
	payments     map[string]Payment
	messages     []Message
	participants map[string]Participant
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:        make(map[string]Slot),
		pairings:     make(map[string]Pairing),
		bookings:     make(map[string]Booking),
		payments:     make(map[string]Payment),
		participants: make(map[string]Participant),
	}
}

func (f *fakeStore) repositories() Repositories {
	return Repositories{
		Slots:        f,
		Pairings:     f,
		Bookings:     f,
		Activities:   f,
		Payments:     f,
		Messages:     f,
		Participants: f,
	}
}

func pairKey(a, b string) string {
	userA, userB := persistence.PairKey(a, b)
	return userA + "|" + userB
}

func (f *fakeStore) CreateSlot(_ context.Context, slot Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.slots[slot.ID]; ok {
		return persistence.ErrDuplicate
	}
	f.slots[slot.ID] = slot
	return nil
}

func (f *fakeStore) GetSlot(_ context.Context, id string) (Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[id]
	if !ok {
		return Slot{}, persistence.ErrNotFound
	}
	return slot, nil
}

func (f *fakeStore) DeleteSlot(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.slots[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.slots, id)
	return nil
}

func (f *fakeStore) ListSlots(_ context.Context, ownerID, counterpartID string) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Slot, 0)
	for _, slot := range f.slots {
		if slot.OwnerID == ownerID && slot.CounterpartID == counterpartID {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out, nil
}

func (f *fakeStore) DeleteSlotsForPair(_ context.Context, userA, userB string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, slot := range f.slots {
		if (slot.OwnerID == userA && slot.CounterpartID == userB) || (slot.OwnerID == userB && slot.CounterpartID == userA) {
			delete(f.slots, id)
		}
	}
	return nil
}

func (f *fakeStore) CreatePairing(_ context.Context, pairing Pairing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(pairing.UserA, pairing.UserB)
	if _, ok := f.pairings[key]; ok {
		return persistence.ErrDuplicate
	}
	f.pairings[key] = pairing
	return nil
}

func (f *fakeStore) GetPairing(_ context.Context, userA, userB string) (Pairing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pairing, ok := f.pairings[pairKey(userA, userB)]
	if !ok {
		return Pairing{}, persistence.ErrNotFound
	}
	return pairing, nil
}

func (f *fakeStore) UpdatePairing(_ context.Context, pairing Pairing, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(pairing.UserA, pairing.UserB)
	existing, ok := f.pairings[key]
	if !ok {
		return persistence.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	f.pairings[key] = pairing
	return nil
}

func (f *fakeStore) ListPairingsForUser(_ context.Context, userID string) ([]Pairing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Pairing, 0)
	for _, pairing := range f.pairings {
		if pairing.Includes(userID) {
			out = append(out, pairing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, booking Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (f *fakeStore) UpdateBooking(_ context.Context, booking Booking, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.bookings[booking.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return persistence.ErrVersionConflict
	}
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeStore) ListBookingsForUser(_ context.Context, userID string) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Booking, 0)
	for _, booking := range f.bookings {
		if booking.Includes(userID) {
			out = append(out, booking)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateActivity(_ context.Context, activity Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, activity)
	return nil
}

func (f *fakeStore) ListActivities(_ context.Context, recipientID string) ([]Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Activity, 0)
	for i := len(f.activities) - 1; i >= 0; i-- {
		if f.activities[i].RecipientID == recipientID {
			out = append(out, f.activities[i])
		}
	}
	return out, nil
}

func (f *fakeStore) MarkActivitiesRead(_ context.Context, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated := 0
	for i := range f.activities {
		if f.activities[i].RecipientID == recipientID && !f.activities[i].IsRead {
			f.activities[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, payment Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[payment.TxnRef]; ok {
		return persistence.ErrDuplicate
	}
	f.payments[payment.TxnRef] = payment
	return nil
}

func (f *fakeStore) GetPayment(_ context.Context, txnRef string) (Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[txnRef]
	if !ok {
		return Payment{}, persistence.ErrNotFound
	}
	return payment, nil
}

func (f *fakeStore) TransitionPayment(_ context.Context, txnRef string, from, to PaymentStatus, providerResponse *string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[txnRef]
	if !ok {
		return persistence.ErrNotFound
	}
	if payment.Status != from {
		return persistence.ErrVersionConflict
	}
	payment.Status = to
	payment.ProviderResponse = providerResponse
	payment.UpdatedAt = at
	f.payments[txnRef] = payment
	return nil
}

func (f *fakeStore) HasSuccessfulPayment(_ context.Context, bookingID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, payment := range f.payments {
		if payment.BookingID == bookingID && payment.UserID == userID && payment.Status == PaymentSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, message Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, bookingID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, 0)
	for _, message := range f.messages {
		if message.BookingID == bookingID {
			out = append(out, message)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertParticipant(_ context.Context, participant Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.participants[participant.ID]; ok {
		participant.PenalizedUntil = existing.PenalizedUntil
	}
	f.participants[participant.ID] = participant
	return nil
}

func (f *fakeStore) GetParticipant(_ context.Context, id string) (Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	participant, ok := f.participants[id]
	if !ok {
		return Participant{}, persistence.ErrNotFound
	}
	return participant, nil
}

func (f *fakeStore) SetPenalty(_ context.Context, id string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	participant := f.participants[id]
	participant.ID = id
	participant.PenalizedUntil = &until
	f.participants[id] = participant
	return nil
}

func (f *fakeStore) putPayment(bookingID, userID string, status PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := "PAY" + bookingID + userID
	f.payments[ref] = Payment{TxnRef: ref, BookingID: bookingID, UserID: userID, Amount: 100000, Status: status}
}

func (f *fakeStore) activitiesOf(userID string, kind ActivityType) []Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Activity, 0)
	for _, activity := range f.activities {
		if activity.RecipientID == userID && activity.Type == kind {
			out = append(out, activity)
		}
	}
	return out
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ context.Context, event Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) count(userID string, topic Topic, kind ActivityType, match func(any) bool) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, event := range n.events {
		if event.UserID != userID || event.Topic != topic || event.Type != kind {
			continue
		}
		if match == nil || match(event.Payload) {
			total++
		}
	}
	return total
}

func bookingWithStatus(status BookingStatus) func(any) bool {
	return func(payload any) bool {
		view, ok := payload.(BookingView)
		return ok && view.Booking.Status == status
	}
}

// stubGateway signs nothing; callbacks are accepted when signature == "ok".
type stubGateway struct {
	requests []PaymentRequest
}

func (g *stubGateway) PaymentURL(request PaymentRequest) (string, error) {
	g.requests = append(g.requests, request)
	return "https://pay.example.test/?ref=" + request.TxnRef, nil
}

func (g *stubGateway) ParseCallback(params url.Values) (PaymentCallback, error) {
	if params.Get("signature") != "ok" {
		return PaymentCallback{}, ErrInvalidSignature
	}
	var amount int64
	for _, r := range params.Get("amount") {
		amount = amount*10 + int64(r-'0')
	}
	return PaymentCallback{
		TxnRef:        params.Get("ref"),
		Amount:        amount,
		ResponseCode:  params.Get("code"),
		TransactionNo: "T1",
	}, nil
}

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func newSequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

// harness bundles the services over one fake store and clock.
type harness struct {
	store    *fakeStore
	notifier *recordingNotifier
	clock    *testClock
	gateway  *stubGateway
	deps     Dependencies

	slots    *SlotService
	matching *MatchingService
	bookings *BookingService
	chat     *ChatService
	payments *PaymentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newFakeStore()
	notifier := &recordingNotifier{}
	clock := &testClock{current: time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)}
	gateway := &stubGateway{}
	policy := DefaultPolicy()
	policy.Chat = chatgate.Gate{UnlockBefore: 4 * time.Hour}

	deps := Dependencies{
		Repositories: store.repositories(),
		Policy:       policy,
		Notifier:     notifier,
		Venues:       venue.NewRecommender(venue.StaticCatalog{{Name: "Cafe", Address: "1 Main St"}}),
		Payments:     gateway,
		Locks:        NewPairLocker(),
		IDGenerator:  newSequence("id"),
		Now:          clock.Now,
	}

	bookings := NewBookingService(deps)
	return &harness{
		store:    store,
		notifier: notifier,
		clock:    clock,
		gateway:  gateway,
		deps:     deps,
		slots:    NewSlotService(deps),
		matching: NewMatchingService(deps),
		bookings: bookings,
		chat:     NewChatService(deps),
		payments: NewPaymentService(deps, bookings),
	}
}

// day returns hour:minute on the nth day after the clock's current date.
func (h *harness) day(n int, hour, minute int) time.Time {
	now := h.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, n).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func (h *harness) pair(t *testing.T, a, b string) {
	t.Helper()
	if _, err := h.matching.RegisterPairing(context.Background(), Principal{UserID: a}, a, b); err != nil {
		t.Fatalf("RegisterPairing failed: %v", err)
	}
}

func (h *harness) addSlot(t *testing.T, owner, counterpart string, start, end time.Time) Slot {
	t.Helper()
	slot, err := h.slots.AddSlot(context.Background(), AddSlotParams{
		Principal:     Principal{UserID: owner},
		CounterpartID: counterpart,
		Input:         SlotInput{Start: start, End: end},
	})
	if err != nil {
		t.Fatalf("AddSlot failed: %v", err)
	}
	return slot
}

// propose registers alice and bob, gives both three overlapping slots and
// submits for both sides. bob completes the pair and becomes the requester.
func (h *harness) propose(t *testing.T) Booking {
	t.Helper()
	ctx := context.Background()
	h.pair(t, "alice", "bob")
	for i := 1; i <= 3; i++ {
		h.addSlot(t, "alice", "bob", h.day(i, 10, 0), h.day(i, 12, 0))
		h.addSlot(t, "bob", "alice", h.day(i, 10, 0), h.day(i, 12, 0))
	}
	if _, err := h.matching.Submit(ctx, Principal{UserID: "alice"}, "bob"); err != nil {
		t.Fatalf("Submit alice failed: %v", err)
	}
	result, err := h.matching.Submit(ctx, Principal{UserID: "bob"}, "alice")
	if err != nil {
		t.Fatalf("Submit bob failed: %v", err)
	}
	if result.Booking == nil {
		t.Fatalf("expected a proposed booking")
	}
	return *result.Booking
}

func (h *harness) confirm(t *testing.T, userID, bookingID string) Booking {
	t.Helper()
	h.store.putPayment(bookingID, userID, PaymentSuccess)
	booking, err := h.bookings.ConfirmBooking(context.Background(), Principal{UserID: userID}, bookingID)
	if err != nil {
		t.Fatalf("ConfirmBooking %s failed: %v", userID, err)
	}
	return booking
}

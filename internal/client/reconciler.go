package client

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// ErrNoBooking is returned by BeginTentative for unknown bookings.
var ErrNoBooking = errors.New("client: booking not in local view")

// Reconciler holds the authoritative snapshots received so far plus any
// tentative local changes layered on top of them.
type Reconciler struct {
	mu        sync.Mutex
	bookings  map[string]Booking
	tentative map[string]*overlay
	seq       uint64
	notifier  Notifier
	logger    *slog.Logger
}

type overlay struct {
	seq         uint64
	baseVersion int64
	booking     Booking
	committed   bool
}

// NewReconciler returns an empty view. Rollbacks are reported to notifier.
func NewReconciler(notifier Notifier, logger *slog.Logger) *Reconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		bookings:  make(map[string]Booking),
		tentative: make(map[string]*overlay),
		notifier:  notifier,
		logger:    logger,
	}
}

// ApplyBooking merges one pushed snapshot and reports whether the view
// changed. A higher version replaces the stored booking; an equal version
// replaces it only when its status ranks higher. Replays of applied or older
// snapshots are ignored.
func (r *Reconciler) ApplyBooking(b Booking) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(b, false)
}

// applyLocked merges b. Authoritative snapshots from a poll also replace an
// equal version of equal rank, so details a push lacked are filled in.
func (r *Reconciler) applyLocked(b Booking, authoritative bool) bool {
	if b.ID == "" {
		return false
	}
	current, ok := r.bookings[b.ID]
	if ok {
		if b.Version < current.Version {
			return false
		}
		if b.Version == current.Version {
			rank, currentRank := statusRank(b.Status), statusRank(current.Status)
			if rank < currentRank || (rank == currentRank && !authoritative) {
				return false
			}
		}
		b = keepDetails(b, current)
	}
	r.bookings[b.ID] = b
	if o, ok := r.tentative[b.ID]; ok && o.committed && b.Version > o.baseVersion {
		delete(r.tentative, b.ID)
	}
	return true
}

// keepDetails carries names and a revealed contact over from the stored
// snapshot when b arrives without them. Neither changes once known.
func keepDetails(b, current Booking) Booking {
	if b.RequesterName == "" {
		b.RequesterName = current.RequesterName
	}
	if b.RecipientName == "" {
		b.RecipientName = current.RecipientName
	}
	if b.PartnerContact == nil && b.ContactExchanged {
		b.PartnerContact = current.PartnerContact
	}
	return b
}

// SyncBookings applies a complete poll result. Bookings missing from it are
// dropped along with their overlays. A committed overlay whose booking did
// not move past its base version is discarded, since the server never
// applied the change.
func (r *Reconciler) SyncBookings(bookings []Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		seen[b.ID] = struct{}{}
		r.applyLocked(b, true)
	}
	for id := range r.bookings {
		if _, ok := seen[id]; !ok {
			delete(r.bookings, id)
			delete(r.tentative, id)
		}
	}
	for id, o := range r.tentative {
		if o.committed && r.bookings[id].Version <= o.baseVersion {
			delete(r.tentative, id)
		}
	}
}

// Booking returns the visible state of id, overlay included.
func (r *Reconciler) Booking(id string) (Booking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.tentative[id]; ok {
		return o.booking, true
	}
	b, ok := r.bookings[id]
	return b, ok
}

// Bookings returns the visible view ordered by start then id. Cancelled
// bookings are omitted.
func (r *Reconciler) Bookings() []Booking {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Booking, 0, len(r.bookings))
	for id, b := range r.bookings {
		if o, ok := r.tentative[id]; ok {
			b = o.booking
		}
		if b.Status == StatusCancelled {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Tentative is a pending local change created by BeginTentative.
type Tentative struct {
	r   *Reconciler
	id  string
	seq uint64
}

// BeginTentative shows mutate's result for id immediately. A newer
// tentative change for the same booking replaces an older one.
func (r *Reconciler) BeginTentative(id string, mutate func(*Booking)) (*Tentative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base, ok := r.bookings[id]
	if !ok {
		return nil, ErrNoBooking
	}
	updated := base
	if mutate != nil {
		mutate(&updated)
	}
	r.seq++
	r.tentative[id] = &overlay{seq: r.seq, baseVersion: base.Version, booking: updated}
	return &Tentative{r: r, id: id, seq: r.seq}, nil
}

// Commit keeps the change visible until a snapshot newer than the one it was
// based on arrives.
func (t *Tentative) Commit() {
	if t == nil {
		return
	}
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	o, ok := t.r.tentative[t.id]
	if !ok || o.seq != t.seq {
		return
	}
	if current, ok := t.r.bookings[t.id]; ok && current.Version > o.baseVersion {
		delete(t.r.tentative, t.id)
		return
	}
	o.committed = true
}

// Rollback discards the change and reports cause through the notifier.
func (t *Tentative) Rollback(cause error) {
	if t == nil {
		return
	}
	t.r.mu.Lock()
	o, ok := t.r.tentative[t.id]
	if ok && o.seq == t.seq {
		delete(t.r.tentative, t.id)
	}
	notifier := t.r.notifier
	t.r.mu.Unlock()

	if !ok || o.seq != t.seq {
		return
	}
	t.r.logger.Debug("tentative change rolled back", "booking_id", t.id, "error", cause)
	message := "Something went wrong. Please try again."
	if cause != nil {
		message = "Could not update your date: " + cause.Error()
	}
	notifier.Notify(LevelError, message)
}

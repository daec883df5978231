package client

import (
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Level classifies a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) {
	if f != nil {
		f(level, message)
	}
}

// NopNotifier discards messages.
type NopNotifier struct{}

func (NopNotifier) Notify(Level, string) {}

// LoadingIndicator is told when a background operation starts and ends.
type LoadingIndicator interface {
	SetLoading(operation string, loading bool)
}

// NopLoadingIndicator ignores loading changes.
type NopLoadingIndicator struct{}

func (NopLoadingIndicator) SetLoading(string, bool) {}

const (
	defaultSuppressWindow = 2 * time.Second
	defaultSuppressSize   = 1
)

// NotificationFilter remembers the hashes of the most recent notifications
// and suppresses a repeat seen within the window.
type NotificationFilter struct {
	mu      sync.Mutex
	window  time.Duration
	size    int
	entries []filterEntry
}

type filterEntry struct {
	sum  [blake2b.Size256]byte
	seen time.Time
}

// NewNotificationFilter keeps up to size entries for window. Non-positive
// values select a 2s window over the single most recent notification.
func NewNotificationFilter(window time.Duration, size int) *NotificationFilter {
	if window <= 0 {
		window = defaultSuppressWindow
	}
	if size <= 0 {
		size = defaultSuppressSize
	}
	return &NotificationFilter{window: window, size: size}
}

// ShouldSuppress reports whether content was already shown less than the
// window before now. Content that is not suppressed is remembered at now.
func (f *NotificationFilter) ShouldSuppress(content string, now time.Time) bool {
	sum := blake2b.Sum256([]byte(content))

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].sum != sum {
			continue
		}
		if now.Sub(f.entries[i].seen) < f.window {
			return true
		}
		f.entries = append(f.entries[:i], f.entries[i+1:]...)
		break
	}

	if len(f.entries) >= f.size {
		f.entries = f.entries[1:]
	}
	f.entries = append(f.entries, filterEntry{sum: sum, seen: now})
	return false
}

// FilteredNotifier drops repeats before they reach the wrapped notifier.
type FilteredNotifier struct {
	next   Notifier
	filter *NotificationFilter
	now    func() time.Time
}

// NewFilteredNotifier wraps next. A nil filter uses the defaults.
func NewFilteredNotifier(next Notifier, filter *NotificationFilter, now func() time.Time) *FilteredNotifier {
	if next == nil {
		next = NopNotifier{}
	}
	if filter == nil {
		filter = NewNotificationFilter(0, 0)
	}
	if now == nil {
		now = time.Now
	}
	return &FilteredNotifier{next: next, filter: filter, now: now}
}

func (n *FilteredNotifier) Notify(level Level, message string) {
	if n.filter.ShouldSuppress(message, n.now()) {
		return
	}
	n.next.Notify(level, message)
}

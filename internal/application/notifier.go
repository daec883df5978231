package application

import "context"

// Topic names a per-user realtime channel.
type Topic string

const (
	TopicMatches    Topic = "matches"
	TopicScheduling Topic = "scheduling"
	TopicActivities Topic = "activities"
	TopicMessages   Topic = "messages"
)

// Event is a state change pushed to one user. Payload is the latest full
// snapshot of the entity: Booking, Pairing, Activity or Message.
type Event struct {
	UserID  string
	Topic   Topic
	Type    ActivityType
	Payload any
}

// Notifier delivers events on a best-effort basis. Implementations must not
// block the caller on slow consumers.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event)

// Publish implements Notifier.
func (f NotifierFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, Event) {}

func defaultNotifier(n Notifier) Notifier {
	if n != nil {
		return n
	}
	return nopNotifier{}
}

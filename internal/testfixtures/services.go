package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/payment/vnpay"
	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/storage"
)

// Credentials used by the payment gateway built by ServiceFactory.
const (
	PaymentTmnCode    = "TESTTMN1"
	PaymentHashSecret = "test-hash-secret"
	PaymentURL        = "https://pay.example.test/vpcpay.html"
	PaymentReturnURL  = "https://app.example.test/payments/return"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Policy      application.Policy
	Notifier    application.Notifier
	Venues      application.VenueRecommender
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults. The clock
// starts at ReferenceTime.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(referenceTime),
		IDGenerator: NewIDGenerator("id"),
		Policy:      application.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(referenceTime)
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithPolicy overrides the protocol policy.
func WithPolicy(policy application.Policy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// WithNotifier routes realtime events to notifier.
func WithNotifier(notifier application.Notifier) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Notifier = notifier
	}
}

// WithVenues installs a venue recommender.
func WithVenues(venues application.VenueRecommender) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Venues = venues
	}
}

// Services bundles every application service sharing one store.
type Services struct {
	Matching     *application.MatchingService
	Slots        *application.SlotService
	Bookings     *application.BookingService
	Chat         *application.ChatService
	Payments     *application.PaymentService
	Activities   *application.ActivityService
	Participants *application.ParticipantService
	Repositories application.Repositories
}

// Dependencies returns the dependency set used for store.
func (f *ServiceFactory) Dependencies(store persistence.Store) (application.Dependencies, error) {
	gateway, err := vnpay.New(vnpay.Config{
		PayURL:     PaymentURL,
		TmnCode:    PaymentTmnCode,
		HashSecret: PaymentHashSecret,
		ReturnURL:  PaymentReturnURL,
		Location:   time.UTC,
	})
	if err != nil {
		return application.Dependencies{}, err
	}
	return application.Dependencies{
		Repositories: storage.Repositories(store),
		Policy:       f.Policy,
		Notifier:     f.Notifier,
		Venues:       f.Venues,
		Payments:     gateway,
		Locks:        application.NewPairLocker(),
		IDGenerator:  f.IDGenerator.NextFunc(),
		Now:          f.Clock.NowFunc(),
		Logger:       f.Logger,
	}, nil
}

// NewServices wires every application service over store.
func (f *ServiceFactory) NewServices(store persistence.Store) (*Services, error) {
	deps, err := f.Dependencies(store)
	if err != nil {
		return nil, err
	}
	bookings := application.NewBookingService(deps)
	return &Services{
		Matching:     application.NewMatchingService(deps),
		Slots:        application.NewSlotService(deps),
		Bookings:     bookings,
		Chat:         application.NewChatService(deps),
		Payments:     application.NewPaymentService(deps, bookings),
		Activities:   application.NewActivityService(deps),
		Participants: application.NewParticipantService(deps),
		Repositories: deps.Repositories,
	}, nil
}

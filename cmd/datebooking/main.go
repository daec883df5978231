package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/chatgate"
	"github.com/example/date-booking/internal/config"
	httptransport "github.com/example/date-booking/internal/http"
	"github.com/example/date-booking/internal/payment/vnpay"
	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/realtime"
	"github.com/example/date-booking/internal/storage"
	"github.com/example/date-booking/internal/venue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to close application", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.Hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("date booking API listening", "addr", server.Addr, "storage", cfg.Storage)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// app holds the wired HTTP surface and the resources it owns.
type app struct {
	Handler http.Handler
	Hub     *realtime.Hub
	Store   persistence.Store
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage,
		SQLitePath:  cfg.SQLitePath,
		PostgresURL: cfg.PostgresURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	gateway, err := vnpay.New(vnpay.Config{
		PayURL:     cfg.Payment.URL,
		TmnCode:    cfg.Payment.TmnCode,
		HashSecret: cfg.Payment.HashSecret,
		ReturnURL:  cfg.Payment.ReturnURL,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	catalog, err := loadVenues(cfg.VenuesFile)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("venue catalog loaded", "venues", len(catalog), "file", cfg.VenuesFile)

	hub := realtime.NewHub(realtime.Options{Logger: logger, AllowedOrigins: cfg.AllowedOrigins})

	deps := application.Dependencies{
		Repositories: storage.Repositories(store),
		Policy: application.Policy{
			MinSlotDuration:      cfg.MinSlotDuration,
			MaxScheduleWindow:    cfg.MaxScheduleWindow,
			MinAvailabilitySlots: cfg.MinAvailabilitySlots,
			CancelPenalty:        cfg.CancelPenalty,
			Chat:                 chatgate.Gate{UnlockBefore: cfg.ChatUnlockBefore, LockAfter: cfg.ChatLockAfter},
			PaymentAmount:        cfg.Payment.Amount,
			PairingRegistrars:    cfg.PairingRegistrars,
		},
		Notifier:    hub,
		Venues:      venue.NewRecommender(catalog),
		Payments:    gateway,
		Locks:       application.NewPairLocker(),
		IDGenerator: uuid.NewString,
		Now:         time.Now,
		Logger:      logger,
	}

	matchingService := application.NewMatchingService(deps)
	slotService := application.NewSlotService(deps)
	bookingService := application.NewBookingService(deps)
	chatService := application.NewChatService(deps)
	paymentService := application.NewPaymentService(deps, bookingService)
	activityService := application.NewActivityService(deps)
	participantService := application.NewParticipantService(deps)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Pairings:     httptransport.NewPairingHandler(matchingService, slotService, logger),
		Bookings:     httptransport.NewBookingHandler(bookingService, logger),
		Chat:         httptransport.NewChatHandler(chatService, logger),
		Payments:     httptransport.NewPaymentHandler(paymentService, logger),
		Activities:   httptransport.NewActivityHandler(activityService, logger),
		Participants: httptransport.NewParticipantHandler(participantService, logger),
		Realtime:     httptransport.NewRealtimeHandler(hub, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
		Authenticated: []func(http.Handler) http.Handler{
			httptransport.RequirePrincipal(logger),
			httptransport.RateLimit(httptransport.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				Burst:             cfg.RateLimitBurst,
				Logger:            logger,
			}),
		},
	})

	return &app{Handler: router, Hub: hub, Store: store}, nil
}

// Close stops realtime delivery and releases the store.
func (a *app) Close() error {
	a.Hub.Close()
	return a.Store.Close()
}

// loadVenues reads the configured catalog file, or the built-in catalog when
// none is set.
func loadVenues(path string) (venue.StaticCatalog, error) {
	if path == "" {
		return venue.DefaultCatalog()
	}
	return venue.LoadCatalog(path)
}

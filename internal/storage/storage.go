// Package storage opens the configured persistence backend and exposes it
// through the application repository interfaces.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/persistence/memory"
	"github.com/example/date-booking/internal/persistence/postgres"
	"github.com/example/date-booking/internal/persistence/sqlite"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and locates the backend.
type Options struct {
	Backend     string
	SQLitePath  string
	PostgresURL string
	Logger      *slog.Logger
}

// Open connects to the backend and applies its migrations.
func Open(ctx context.Context, opts Options) (persistence.Store, error) {
	var (
		store persistence.Store
		err   error
	)
	switch opts.Backend {
	case BackendSQLite, "":
		store, err = sqlite.Open(opts.SQLitePath, opts.Logger)
	case BackendPostgres:
		store, err = postgres.Open(ctx, opts.PostgresURL)
	case BackendMemory:
		store = memory.Open()
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", opts.Backend, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("storage: migrate %s: %w", opts.Backend, err)
	}
	return store, nil
}

// Repositories adapts store to the application repository set.
func Repositories(store persistence.Store) application.Repositories {
	a := &adapter{store: store}
	return application.Repositories{
		Slots:        slotAdapter{a},
		Pairings:     pairingAdapter{a},
		Bookings:     bookingAdapter{a},
		Activities:   activityAdapter{a},
		Payments:     paymentAdapter{a},
		Messages:     messageAdapter{a},
		Participants: participantAdapter{a},
	}
}

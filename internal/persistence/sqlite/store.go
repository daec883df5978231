package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/persistence/sqlite/migration"
)

// Storage is the SQLite implementation of persistence.Store.
type Storage struct {
	*SlotRepository
	*PairingRepository
	*BookingRepository
	*ActivityRepository
	*PaymentRepository
	*MessageRepository
	*ParticipantRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open opens a file database with the default production settings.
func Open(path string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path), logger)
}

// OpenWithConfig opens a database with explicit connection settings.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		SlotRepository:        NewSlotRepository(pool),
		PairingRepository:     NewPairingRepository(pool),
		BookingRepository:     NewBookingRepository(pool),
		ActivityRepository:    NewActivityRepository(pool),
		PaymentRepository:     NewPaymentRepository(pool),
		MessageRepository:     NewMessageRepository(pool),
		ParticipantRepository: NewParticipantRepository(pool),
		pool:                  pool,
		logger:                logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewSQLiteExecutor(s.pool.DB()), migration.Embedded(), s.logger)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

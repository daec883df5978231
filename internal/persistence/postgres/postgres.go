// Package postgres implements persistence.Store on PostgreSQL compatible
// databases (PostgreSQL, CockroachDB) through pgx connection pools.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/date-booking/internal/persistence"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage is the pgx implementation of persistence.Store.
type Storage struct {
	pool *pgxpool.Pool
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the database at databaseURL and verifies connectivity.
func Open(ctx context.Context, databaseURL string) (*Storage, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres: database URL is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Storage{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Close releases the pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Reset removes every row from the protocol tables, keeping the schema.
func (s *Storage) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE messages, payments, activities, bookings, slots, pairings, participants CASCADE`); err != nil {
		return fmt.Errorf("postgres: reset: %w", err)
	}
	return nil
}

// Migrate applies the embedded migrations that are not yet recorded in
// schema_migrations, each within its own transaction.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := fs.ReadFile(migrationFiles, "migrations/"+entry.Name())
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", entry.Name(), err)
		}
		if err := s.applyMigration(ctx, entry.Name(), string(contents)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) applyMigration(ctx context.Context, version, contents string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check migration %s: %w", version, err)
		}
		if exists {
			return nil
		}
		if _, err := tx.Exec(ctx, contents); err != nil {
			return fmt.Errorf("postgres: apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, version, time.Now().UTC()); err != nil {
			return fmt.Errorf("postgres: record migration %s: %w", version, err)
		}
		return nil
	})
}

// mapError translates driver errors into persistence sentinels.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return persistence.ErrDuplicate
		case "23503":
			return persistence.ErrForeignKeyViolation
		case "23514", "23502":
			return persistence.ErrConstraintViolation
		case "40001":
			return persistence.ErrVersionConflict
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}

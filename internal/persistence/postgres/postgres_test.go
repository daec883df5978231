package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cockroachdb/cockroach-go/v2/testserver"

	"github.com/example/date-booking/internal/persistence"
	"github.com/example/date-booking/internal/persistence/postgres"
	"github.com/example/date-booking/internal/testfixtures"
)

var testStorage *postgres.Storage

// TestMain boots a throwaway CockroachDB node. When the binary cannot be
// started the tests in this package are skipped.
func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	storage, err := postgres.Open(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}
	if err := storage.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		_ = storage.Close()
		server.Stop()
		os.Exit(1)
	}

	testStorage = storage
	code := m.Run()

	_ = storage.Close()
	server.Stop()
	os.Exit(code)
}

func requireStorage(t *testing.T) *postgres.Storage {
	t.Helper()
	if testStorage == nil {
		t.Skip("cockroach test server unavailable")
	}
	return testStorage
}

func TestStore(t *testing.T) {
	storage := requireStorage(t)

	testfixtures.RunStoreSuite(t, func(t *testing.T) persistence.Store {
		if err := storage.Reset(context.Background()); err != nil {
			t.Fatalf("reset database: %v", err)
		}
		return storage
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	storage := requireStorage(t)

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
}

func TestOpenRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := postgres.Open(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty database URL")
	}
}

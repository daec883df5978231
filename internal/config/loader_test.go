package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

var allKeys = []string{
	"DATEBOOKING_HTTP_PORT",
	"DATEBOOKING_STORAGE",
	"DATEBOOKING_SQLITE_PATH",
	"DATEBOOKING_POSTGRES_URL",
	"DATEBOOKING_MIN_SLOT_DURATION",
	"DATEBOOKING_MAX_SCHEDULE_WINDOW",
	"DATEBOOKING_MIN_AVAILABILITY_SLOTS",
	"DATEBOOKING_CHAT_UNLOCK_BEFORE",
	"DATEBOOKING_CHAT_LOCK_AFTER",
	"DATEBOOKING_CANCEL_PENALTY",
	"DATEBOOKING_PAYMENT_URL",
	"DATEBOOKING_PAYMENT_TMN_CODE",
	"DATEBOOKING_PAYMENT_HASH_SECRET",
	"DATEBOOKING_PAYMENT_RETURN_URL",
	"DATEBOOKING_PAYMENT_AMOUNT",
	"DATEBOOKING_RATE_LIMIT_RPS",
	"DATEBOOKING_RATE_LIMIT_BURST",
	"DATEBOOKING_VENUES_FILE",
	"DATEBOOKING_ALLOWED_ORIGINS",
	"DATEBOOKING_PAIRING_REGISTRARS",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATEBOOKING_PAYMENT_TMN_CODE", "TMN1")
		t.Setenv("DATEBOOKING_PAYMENT_HASH_SECRET", "secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.Storage != StorageSQLite || cfg.SQLitePath != "datebooking.db" {
			t.Fatalf("unexpected server defaults: %+v", cfg)
		}
		if cfg.MinSlotDuration != 90*time.Minute || cfg.MaxScheduleWindow != 504*time.Hour || cfg.MinAvailabilitySlots != 3 {
			t.Fatalf("unexpected matching defaults: %+v", cfg)
		}
		if cfg.ChatUnlockBefore != 4*time.Hour || cfg.ChatLockAfter != 0 || cfg.CancelPenalty != 24*time.Hour {
			t.Fatalf("unexpected booking defaults: %+v", cfg)
		}
		if cfg.Payment.Amount != 100000 || cfg.Payment.TmnCode != "TMN1" || cfg.Payment.URL == "" {
			t.Fatalf("unexpected payment defaults: %+v", cfg.Payment)
		}
		if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 || cfg.AllowedOrigins != nil {
			t.Fatalf("unexpected limiter defaults: %+v", cfg)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATEBOOKING_STORAGE", "postgres")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: DATEBOOKING_POSTGRES_URL, DATEBOOKING_PAYMENT_TMN_CODE, DATEBOOKING_PAYMENT_HASH_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATEBOOKING_PAYMENT_TMN_CODE", "TMN1")
		t.Setenv("DATEBOOKING_PAYMENT_HASH_SECRET", "secret")
		t.Setenv("DATEBOOKING_HTTP_PORT", "-1")
		t.Setenv("DATEBOOKING_STORAGE", "mongo")
		t.Setenv("DATEBOOKING_MIN_SLOT_DURATION", "0s")
		t.Setenv("DATEBOOKING_PAYMENT_AMOUNT", "ten")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "environment variables have invalid values: DATEBOOKING_HTTP_PORT, DATEBOOKING_STORAGE, DATEBOOKING_MIN_SLOT_DURATION, DATEBOOKING_PAYMENT_AMOUNT"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATEBOOKING_PAYMENT_TMN_CODE", "TMN1")
		t.Setenv("DATEBOOKING_PAYMENT_HASH_SECRET", "secret")
		t.Setenv("DATEBOOKING_HTTP_PORT", "9090")
		t.Setenv("DATEBOOKING_STORAGE", "Postgres")
		t.Setenv("DATEBOOKING_POSTGRES_URL", "postgres://localhost/datebooking")
		t.Setenv("DATEBOOKING_MIN_SLOT_DURATION", "60m")
		t.Setenv("DATEBOOKING_CHAT_LOCK_AFTER", "2h")
		t.Setenv("DATEBOOKING_MIN_AVAILABILITY_SLOTS", "2")
		t.Setenv("DATEBOOKING_RATE_LIMIT_RPS", "2.5")
		t.Setenv("DATEBOOKING_ALLOWED_ORIGINS", "https://app.example, ,https://admin.example")
		t.Setenv("DATEBOOKING_PAIRING_REGISTRARS", "match-discovery")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.Storage != StoragePostgres || cfg.PostgresURL != "postgres://localhost/datebooking" {
			t.Fatalf("unexpected server config: %+v", cfg)
		}
		if cfg.MinSlotDuration != time.Hour || cfg.ChatLockAfter != 2*time.Hour || cfg.MinAvailabilitySlots != 2 {
			t.Fatalf("unexpected policy config: %+v", cfg)
		}
		if cfg.RateLimitRPS != 2.5 {
			t.Fatalf("expected rps 2.5, got %v", cfg.RateLimitRPS)
		}
		if want := []string{"https://app.example", "https://admin.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
			t.Fatalf("expected origins %v, got %v", want, cfg.AllowedOrigins)
		}
		if want := []string{"match-discovery"}; !reflect.DeepEqual(cfg.PairingRegistrars, want) {
			t.Fatalf("expected registrars %v, got %v", want, cfg.PairingRegistrars)
		}
	})
}

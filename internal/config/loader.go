package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends selectable through DATEBOOKING_STORAGE.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config captures environment driven configuration values for the date booking service.
type Config struct {
	HTTPPort    int
	Storage     string
	SQLitePath  string
	PostgresURL string

	MinSlotDuration      time.Duration
	MaxScheduleWindow    time.Duration
	MinAvailabilitySlots int
	ChatUnlockBefore     time.Duration

	// ChatLockAfter of zero keeps chat open after the date starts.
	ChatLockAfter time.Duration
	CancelPenalty time.Duration

	Payment PaymentConfig

	RateLimitRPS   float64
	RateLimitBurst int
	VenuesFile     string
	AllowedOrigins []string

	// PairingRegistrars are service principals allowed to register pairings
	// on behalf of two other users.
	PairingRegistrars []string
}

// PaymentConfig holds the payment provider credentials.
type PaymentConfig struct {
	URL        string
	TmnCode    string
	HashSecret string
	ReturnURL  string
	Amount     int64
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Every missing or malformed key is
// collected so a single error names all of them.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:             8080,
		Storage:              StorageSQLite,
		SQLitePath:           "datebooking.db",
		MinSlotDuration:      90 * time.Minute,
		MaxScheduleWindow:    21 * 24 * time.Hour,
		MinAvailabilitySlots: 3,
		ChatUnlockBefore:     4 * time.Hour,
		CancelPenalty:        24 * time.Hour,
		Payment: PaymentConfig{
			URL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			Amount: 100000,
		},
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}

	p := parser{}

	p.positiveInt("DATEBOOKING_HTTP_PORT", &cfg.HTTPPort)
	if storage := env("DATEBOOKING_STORAGE"); storage != "" {
		switch storage = strings.ToLower(storage); storage {
		case StorageSQLite, StoragePostgres, StorageMemory:
			cfg.Storage = storage
		default:
			p.invalid = append(p.invalid, "DATEBOOKING_STORAGE")
		}
	}
	if path := env("DATEBOOKING_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
	cfg.PostgresURL = env("DATEBOOKING_POSTGRES_URL")
	if cfg.Storage == StoragePostgres && cfg.PostgresURL == "" {
		p.missing = append(p.missing, "DATEBOOKING_POSTGRES_URL")
	}

	p.positiveDuration("DATEBOOKING_MIN_SLOT_DURATION", &cfg.MinSlotDuration)
	p.positiveDuration("DATEBOOKING_MAX_SCHEDULE_WINDOW", &cfg.MaxScheduleWindow)
	p.positiveInt("DATEBOOKING_MIN_AVAILABILITY_SLOTS", &cfg.MinAvailabilitySlots)
	p.duration("DATEBOOKING_CHAT_UNLOCK_BEFORE", &cfg.ChatUnlockBefore)
	p.duration("DATEBOOKING_CHAT_LOCK_AFTER", &cfg.ChatLockAfter)
	p.duration("DATEBOOKING_CANCEL_PENALTY", &cfg.CancelPenalty)

	if url := env("DATEBOOKING_PAYMENT_URL"); url != "" {
		cfg.Payment.URL = url
	}
	p.required("DATEBOOKING_PAYMENT_TMN_CODE", &cfg.Payment.TmnCode)
	p.required("DATEBOOKING_PAYMENT_HASH_SECRET", &cfg.Payment.HashSecret)
	cfg.Payment.ReturnURL = env("DATEBOOKING_PAYMENT_RETURN_URL")
	if amountValue := env("DATEBOOKING_PAYMENT_AMOUNT"); amountValue != "" {
		amount, err := strconv.ParseInt(amountValue, 10, 64)
		if err != nil || amount <= 0 {
			p.invalid = append(p.invalid, "DATEBOOKING_PAYMENT_AMOUNT")
		} else {
			cfg.Payment.Amount = amount
		}
	}

	if rpsValue := env("DATEBOOKING_RATE_LIMIT_RPS"); rpsValue != "" {
		rps, err := strconv.ParseFloat(rpsValue, 64)
		if err != nil || rps <= 0 {
			p.invalid = append(p.invalid, "DATEBOOKING_RATE_LIMIT_RPS")
		} else {
			cfg.RateLimitRPS = rps
		}
	}
	p.positiveInt("DATEBOOKING_RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	cfg.VenuesFile = env("DATEBOOKING_VENUES_FILE")
	cfg.AllowedOrigins = list("DATEBOOKING_ALLOWED_ORIGINS")
	cfg.PairingRegistrars = list("DATEBOOKING_PAIRING_REGISTRARS")

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(p.invalid, ", "))
	}

	return cfg, nil
}

// list splits a comma separated value, dropping blank entries.
func list(key string) []string {
	var out []string
	for _, item := range strings.Split(env(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

type parser struct {
	missing []string
	invalid []string
}

func (p *parser) required(key string, dst *string) {
	if value := env(key); value != "" {
		*dst = value
		return
	}
	p.missing = append(p.missing, key)
}

func (p *parser) positiveInt(key string, dst *int) {
	value := env(key)
	if value == "" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		p.invalid = append(p.invalid, key)
		return
	}
	*dst = n
}

// duration accepts zero.
func (p *parser) duration(key string, dst *time.Duration) {
	value := env(key)
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		p.invalid = append(p.invalid, key)
		return
	}
	*dst = d
}

func (p *parser) positiveDuration(key string, dst *time.Duration) {
	value := env(key)
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, key)
		return
	}
	*dst = d
}

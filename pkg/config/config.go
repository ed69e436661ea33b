package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Buffer policies understood by the conflict checker.
const (
	BufferPolicyExisting = "existing"
	BufferPolicyTrailing = "trailing"
	BufferPolicyMax      = "max"
)

// Staff selection strategies for unassigned reservations.
const (
	StaffSelectionFirstFree   = "first_free"
	StaffSelectionLeastLoaded = "least_loaded"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Booking       BookingConfig
	Idempotency   IdempotencyConfig
	RateLimit     RateLimitConfig
	Notifications NotificationConfig
	Reminders     ReminderConfig
	Payments      PaymentsConfig
	ManageLinks   ManageLinkConfig
	Realtime      RealtimeConfig
}

type DatabaseConfig struct {
	Host             string
	Port             int
	User             string
	Password         string
	Name             string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	StatementTimeout time.Duration
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BookingConfig tunes availability and the reservation transaction.
type BookingConfig struct {
	BufferPolicy   string
	StaffSelection string
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	LockTimeout    time.Duration
	MaxRangeDays   int
}

// IdempotencyConfig controls replay of POST /bookings responses.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// RateLimitConfig throttles booking creation per client address.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// NotificationConfig configures the booking event dispatcher.
type NotificationConfig struct {
	Enabled       bool
	WebhookURL    string
	WebhookSecret string
	Workers       int
	BufferSize    int
	Retries       int
	RetryDelay    time.Duration
	RatePerSecond float64
	Timeout       time.Duration
}

// ReminderConfig drives the 24h / 2h reminder sweeper.
type ReminderConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// PaymentsConfig verifies payment collaborator webhooks.
type PaymentsConfig struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// ManageLinkConfig signs guest booking management links.
type ManageLinkConfig struct {
	Secret        string
	TTL           time.Duration
	PublicBaseURL string
}

// RealtimeConfig toggles the tenant websocket feed.
type RealtimeConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:             v.GetString("DB_HOST"),
		Port:             v.GetInt("DB_PORT"),
		User:             v.GetString("DB_USER"),
		Password:         v.GetString("DB_PASSWORD"),
		Name:             v.GetString("DB_NAME"),
		SSLMode:          v.GetString("DB_SSL_MODE"),
		MaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:     v.GetInt("DB_MAX_IDLE_CONNS"),
		StatementTimeout: parseDuration(v.GetString("DB_STATEMENT_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Booking = BookingConfig{
		BufferPolicy:   strings.ToLower(strings.TrimSpace(v.GetString("BOOKING_BUFFER_POLICY"))),
		StaffSelection: strings.ToLower(strings.TrimSpace(v.GetString("BOOKING_STAFF_SELECTION"))),
		MaxAttempts:    v.GetInt("BOOKING_MAX_ATTEMPTS"),
		RetryBaseDelay: parseDuration(v.GetString("BOOKING_RETRY_BASE_DELAY"), 25*time.Millisecond),
		RetryMaxDelay:  parseDuration(v.GetString("BOOKING_RETRY_MAX_DELAY"), 400*time.Millisecond),
		LockTimeout:    parseDuration(v.GetString("BOOKING_LOCK_TIMEOUT"), 2*time.Second),
		MaxRangeDays:   v.GetInt("BOOKING_MAX_RANGE_DAYS"),
	}

	cfg.Idempotency = IdempotencyConfig{
		Enabled: v.GetBool("ENABLE_IDEMPOTENCY"),
		TTL:     parseDuration(v.GetString("IDEMPOTENCY_TTL"), 24*time.Hour),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("ENABLE_RATE_LIMIT"),
		RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:   v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:       v.GetBool("ENABLE_NOTIFICATIONS"),
		WebhookURL:    v.GetString("NOTIFY_WEBHOOK_URL"),
		WebhookSecret: v.GetString("NOTIFY_WEBHOOK_SECRET"),
		Workers:       v.GetInt("NOTIFY_WORKERS"),
		BufferSize:    v.GetInt("NOTIFY_BUFFER"),
		Retries:       v.GetInt("NOTIFY_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 2*time.Second),
		RatePerSecond: v.GetFloat64("NOTIFY_RATE_PER_SECOND"),
		Timeout:       parseDuration(v.GetString("NOTIFY_TIMEOUT"), 5*time.Second),
	}

	cfg.Reminders = ReminderConfig{
		Enabled:   v.GetBool("ENABLE_REMINDERS"),
		Interval:  parseDuration(v.GetString("REMINDER_INTERVAL"), time.Minute),
		BatchSize: v.GetInt("REMINDER_BATCH_SIZE"),
	}

	cfg.Payments = PaymentsConfig{
		WebhookSecret:    v.GetString("PAYMENT_WEBHOOK_SECRET"),
		WebhookTolerance: parseDuration(v.GetString("PAYMENT_WEBHOOK_TOLERANCE"), 5*time.Minute),
	}

	cfg.ManageLinks = ManageLinkConfig{
		Secret:        v.GetString("MANAGE_LINK_SECRET"),
		TTL:           parseDuration(v.GetString("MANAGE_LINK_TTL"), 30*24*time.Hour),
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled: v.GetBool("ENABLE_REALTIME"),
	}

	return cfg
}

// Validate reports settings that would make the booking core misbehave.
func (c *Config) Validate() error {
	var problems []string
	switch c.Booking.BufferPolicy {
	case BufferPolicyExisting, BufferPolicyTrailing, BufferPolicyMax:
	default:
		problems = append(problems, fmt.Sprintf("BOOKING_BUFFER_POLICY %q must be one of existing, trailing, max", c.Booking.BufferPolicy))
	}
	switch c.Booking.StaffSelection {
	case StaffSelectionFirstFree, StaffSelectionLeastLoaded:
	default:
		problems = append(problems, fmt.Sprintf("BOOKING_STAFF_SELECTION %q must be one of first_free, least_loaded", c.Booking.StaffSelection))
	}
	if c.Booking.MaxAttempts <= 0 {
		problems = append(problems, "BOOKING_MAX_ATTEMPTS must be positive")
	}
	if c.Booking.MaxRangeDays <= 0 {
		problems = append(problems, "BOOKING_MAX_RANGE_DAYS must be positive")
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == "" || c.JWT.Secret == "dev_secret" {
			problems = append(problems, "JWT_SECRET must be set in production")
		}
		if c.Payments.WebhookSecret == "" || c.Payments.WebhookSecret == "dev_payment_secret" {
			problems = append(problems, "PAYMENT_WEBHOOK_SECRET must be set in production")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bookbetter")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "bookbetter")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "bookbetter")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BOOKING_BUFFER_POLICY", BufferPolicyExisting)
	v.SetDefault("BOOKING_STAFF_SELECTION", StaffSelectionFirstFree)
	v.SetDefault("BOOKING_MAX_ATTEMPTS", 4)
	v.SetDefault("BOOKING_RETRY_BASE_DELAY", "25ms")
	v.SetDefault("BOOKING_RETRY_MAX_DELAY", "400ms")
	v.SetDefault("BOOKING_LOCK_TIMEOUT", "2s")
	v.SetDefault("BOOKING_MAX_RANGE_DAYS", 62)

	v.SetDefault("ENABLE_IDEMPOTENCY", true)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")

	v.SetDefault("ENABLE_RATE_LIMIT", true)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_WEBHOOK_SECRET", "")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER", 256)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "2s")
	v.SetDefault("NOTIFY_RATE_PER_SECOND", 10)
	v.SetDefault("NOTIFY_TIMEOUT", "5s")

	v.SetDefault("ENABLE_REMINDERS", true)
	v.SetDefault("REMINDER_INTERVAL", "1m")
	v.SetDefault("REMINDER_BATCH_SIZE", 100)

	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "dev_payment_secret")
	v.SetDefault("PAYMENT_WEBHOOK_TOLERANCE", "5m")

	v.SetDefault("MANAGE_LINK_SECRET", "dev_manage_secret")
	v.SetDefault("MANAGE_LINK_TTL", "720h")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")

	v.SetDefault("ENABLE_REALTIME", true)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

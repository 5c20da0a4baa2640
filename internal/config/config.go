package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Durable store configuration
	DataDir string

	// Daily cycle configuration
	Timezone string

	// Limit configuration.
	// LimitThreshold is the fraction of the daily cap at which the limit
	// counts as reached. The original product used 0.90, 0.95 and 0.99 at
	// different call sites; one knob replaces all of them.
	LimitThreshold       float64
	ApproachingThreshold float64

	// Counter progression configuration
	CounterTickEvery   time.Duration
	WatchdogEvery      time.Duration
	WatchdogStaleAfter time.Duration
	CounterSeed        int64

	// Reconciliation configuration
	ReconcileEvery time.Duration

	// Trial configuration
	TrialDuration time.Duration

	// Notification configuration
	TelegramBotToken string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Ad-rates configuration
	AdRatesURL string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 6571),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "lucrum"),

		DataDir:  getEnv("DATA_DIR", filepath.Join(home, ".lucrum")),
		Timezone: getEnv("TIMEZONE", "Europe/Paris"),

		LimitThreshold:       getEnvAsFloat("LIMIT_THRESHOLD", 0.90),
		ApproachingThreshold: getEnvAsFloat("APPROACHING_THRESHOLD", 0.80),

		CounterTickEvery:   getEnvAsDuration("COUNTER_TICK_EVERY", 45*time.Second),
		WatchdogEvery:      getEnvAsDuration("WATCHDOG_EVERY", time.Minute),
		WatchdogStaleAfter: getEnvAsDuration("WATCHDOG_STALE_AFTER", 5*time.Minute),
		CounterSeed:        int64(getEnvAsInt("COUNTER_SEED", 0)),

		ReconcileEvery: getEnvAsDuration("RECONCILE_EVERY", 30*time.Second),

		TrialDuration: getEnvAsDuration("TRIAL_DURATION", 48*time.Hour),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.example.com"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		AdRatesURL: getEnv("AD_RATES_URL", ""),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	if c.LimitThreshold <= 0 || c.LimitThreshold > 1 {
		return fmt.Errorf("LIMIT_THRESHOLD must be in (0, 1], got %v", c.LimitThreshold)
	}

	if c.ApproachingThreshold <= 0 || c.ApproachingThreshold > c.LimitThreshold {
		return fmt.Errorf("APPROACHING_THRESHOLD must be in (0, LIMIT_THRESHOLD], got %v", c.ApproachingThreshold)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	return nil
}

// Location returns the timezone the daily cycle boundary is computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(name string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

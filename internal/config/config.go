package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay service.
type Config struct {
	Port   string
	Env    string
	Driver string
	DSN    string

	// Queue tuning
	MaxPayloadBytes int
	PoisonThreshold int
	LeaseDuration   time.Duration
	StoreTimeout    time.Duration
	DeadLetterTable string
	SweepInterval   time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first if present; RELAY_CREDENTIALS_FILE names
// an additional env file (database DSNs and the like) that must exist when
// set. Values already present in the environment win over file values.
func Load() (*Config, error) {
	_ = godotenv.Load()
	if path := os.Getenv("RELAY_CREDENTIALS_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("error loading credentials file %s: %s", path, err)
		}
	}

	cfg := &Config{
		Port:            getEnv("RELAY_PORT", "8080"),
		Env:             getEnv("RELAY_ENV", "development"),
		Driver:          getEnv("RELAY_DB_DRIVER", "sqlite3"),
		DSN:             getEnv("RELAY_DB_DSN", "file:relay.db?_busy_timeout=5000&_journal_mode=WAL"),
		DeadLetterTable: getEnv("RELAY_DEAD_LETTER_TABLE", "dead_letter"),
	}

	var err error
	if cfg.MaxPayloadBytes, err = getEnvInt("RELAY_MAX_PAYLOAD_BYTES", 64<<10); err != nil {
		return nil, err
	}
	if cfg.PoisonThreshold, err = getEnvInt("RELAY_POISON_THRESHOLD", 5); err != nil {
		return nil, err
	}
	if cfg.LeaseDuration, err = getEnvDuration("RELAY_LEASE_DURATION", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = getEnvDuration("RELAY_STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("RELAY_SWEEP_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}

	// The sqlite default is fine for development; production must say where
	// its database lives.
	if cfg.Env == "production" && os.Getenv("RELAY_DB_DSN") == "" {
		return nil, fmt.Errorf("RELAY_DB_DSN is required in production")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %s", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %s", key, err)
	}
	return d, nil
}

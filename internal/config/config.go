package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port   string
	Env    string
	APIKey string

	DB     DatabaseConfig
	Redis  RedisConfig
	Import ImportConfig
	Worker WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ImportConfig contains global knobs for the tariff import pipeline.
type ImportConfig struct {
	// SFTPDisabled is the global kill-switch for the encrypted-transfer
	// capability. When set, every SFTP connection attempt fails with a
	// capability-unavailable error; FTP and IMAP providers keep working.
	SFTPDisabled bool

	// SeedPath points at an optional provider bootstrap file applied once at
	// startup. Resolved through ResolveSeedPath, not read from here directly.
	SeedPath string

	// CurrencyDecimals is the monetary precision applied to committed prices.
	CurrencyDecimals int

	// LockTTL bounds how long a provider run may hold its advisory lock.
	LockTTL time.Duration
}

// WorkerConfig contains scheduling configuration for background workers.
type WorkerConfig struct {
	// AutoRunHour is the local hour (0-23) of the daily automatic import run.
	AutoRunHour int

	// AutoRunCheckInterval is how often the worker checks whether the daily
	// run is due. Mostly useful to shorten in tests.
	AutoRunCheckInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.APIKey = getEnv("API_KEY", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Import pipeline
	cfg.Import = ImportConfig{
		SFTPDisabled:     getEnvBool("SFTP_DISABLED", false),
		SeedPath:         getEnv("PROVIDERS_SEED_PATH", ""),
		CurrencyDecimals: getEnvInt("CURRENCY_DECIMALS", 2),
	}
	var err error
	if cfg.Import.LockTTL, err = parseDurationEnv("PROVIDER_LOCK_TTL", "2h"); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_LOCK_TTL: %w", err)
	}

	// Workers
	cfg.Worker.AutoRunHour = getEnvInt("AUTO_RUN_HOUR", 7)
	if cfg.Worker.AutoRunHour < 0 || cfg.Worker.AutoRunHour > 23 {
		return nil, errors.New("AUTO_RUN_HOUR must be between 0 and 23")
	}
	if cfg.Worker.AutoRunCheckInterval, err = parseDurationEnv("AUTO_RUN_CHECK_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid AUTO_RUN_CHECK_INTERVAL: %w", err)
	}
	if cfg.Import.CurrencyDecimals < 0 || cfg.Import.CurrencyDecimals > 6 {
		return nil, errors.New("CURRENCY_DECIMALS must be between 0 and 6")
	}

	// Basic validation for DB parameters, keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	if cfg.APIKey == "" {
		return nil, errors.New("API_KEY must be set for authentication")
	}

	return cfg, nil
}

// SeedSource is one named location a seed path may come from.
type SeedSource struct {
	Name  string
	Value string
}

// ResolveSeedPath returns the first non-empty value from an ordered list of
// named sources. Called once at startup; there is no ambient fallback.
func ResolveSeedPath(sources ...SeedSource) (string, string) {
	for _, s := range sources {
		if s.Value != "" {
			return s.Value, s.Name
		}
	}
	return "", ""
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvBool returns the value of an environment variable as a boolean or a default if empty/invalid.
func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds process settings. Only main reads it; the ledger receives
// already-constructed collaborators.
type Config struct {
	Port            string
	DBDriver        string
	DBPath          string // SQLite file
	DatabaseURL     string // Postgres connection string
	LogLevel        logrus.Level
	SeedCustomers   bool
	ShutdownTimeout time.Duration
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Debug(".env file not found, using environment only")
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	seed, err := strconv.ParseBool(getEnv("SEED_CUSTOMERS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_CUSTOMERS: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "3001"),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:          getEnv("DB_PATH", "banking.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		LogLevel:        level,
		SeedCustomers:   seed,
		ShutdownTimeout: timeout,
	}

	switch cfg.DBDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
		}
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

// getEnv returns the environment variable or a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

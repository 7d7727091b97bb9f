// Package config loads server configuration from the environment, with
// optional .env support for local development.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/splitledger/splitledger/internal/currency"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Database
	SQLiteDBPath string

	// Ledger
	DefaultCurrency string

	// Rates holds static exchange rates as "FROM/TO=decimal" pairs
	// separated by commas, e.g. "EUR/USD=1.10,GBP/USD=1.27".
	Rates string

	// Logging
	LogLevel string
}

func Load() *Config {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/splitledger.db"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),
		Rates:           getEnv("RATES", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if len(c.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Sprintf("invalid default currency '%s': must be a 3-letter ISO code", c.DefaultCurrency))
	}

	if c.Rates != "" {
		if _, err := c.RateProvider(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn, or error", c.LogLevel))
	}

	if c.ShutdownTimeout < time.Second || c.ShutdownTimeout > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid shutdown timeout %v: must be between 1s and 1m", c.ShutdownTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// RateProvider parses the configured rate table into a static provider.
func (c *Config) RateProvider() (*currency.StaticProvider, error) {
	provider := currency.NewStaticProvider()
	if c.Rates == "" {
		return provider, nil
	}

	for _, entry := range strings.Split(c.Rates, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pair, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate entry '%s': want FROM/TO=decimal", entry)
		}
		from, to, ok := strings.Cut(pair, "/")
		if !ok || len(from) != 3 || len(to) != 3 {
			return nil, fmt.Errorf("invalid rate pair '%s': want FROM/TO with 3-letter codes", pair)
		}
		r, ok := new(big.Rat).SetString(value)
		if !ok || r.Sign() <= 0 {
			return nil, fmt.Errorf("invalid rate value '%s' for %s: want a positive decimal", value, pair)
		}
		provider.Set(currency.Rate{
			From:  strings.ToUpper(from),
			To:    strings.ToUpper(to),
			Value: r,
			AsOf:  time.Now(),
		})
	}
	return provider, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"math/big"
	"os"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Port:            "8080",
		ShutdownTimeout: 10 * time.Second,
		SQLiteDBPath:    "./test.db",
		DefaultCurrency: "USD",
		LogLevel:        "info",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000",
		},
		{
			name:        "empty database path",
			mutate:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "invalid default currency",
			mutate:      func(c *Config) { c.DefaultCurrency = "DOLLARS" },
			wantErr:     true,
			errorString: "must be a 3-letter ISO code",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.LogLevel = "verbose" },
			wantErr:     true,
			errorString: "invalid log level 'verbose'",
		},
		{
			name:        "invalid shutdown timeout",
			mutate:      func(c *Config) { c.ShutdownTimeout = 5 * time.Minute },
			wantErr:     true,
			errorString: "invalid shutdown timeout",
		},
		{
			name:        "malformed rate entry",
			mutate:      func(c *Config) { c.Rates = "EURUSD 1.10" },
			wantErr:     true,
			errorString: "invalid rate entry",
		},
		{
			name:        "negative rate value",
			mutate:      func(c *Config) { c.Rates = "EUR/USD=-1.10" },
			wantErr:     true,
			errorString: "invalid rate value",
		},
		{
			name:   "valid rate table",
			mutate: func(c *Config) { c.Rates = "EUR/USD=1.10, GBP/USD=1.27" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() error = nil, want error")
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Validate() error = %v, want error containing %q", err, tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestConfig_RateProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Rates = "EUR/USD=1.10,GBP/USD=1.27"

	provider, err := cfg.RateProvider()
	if err != nil {
		t.Fatalf("RateProvider() error = %v", err)
	}

	rate, err := provider.Rate("EUR", "USD")
	if err != nil {
		t.Fatalf("Rate(EUR, USD) error = %v", err)
	}
	if want := big.NewRat(11, 10); rate.Value.Cmp(want) != 0 {
		t.Errorf("EUR/USD = %v, want %v", rate.Value, want)
	}

	// Reverse direction answered by inversion.
	inv, err := provider.Rate("USD", "GBP")
	if err != nil {
		t.Fatalf("Rate(USD, GBP) error = %v", err)
	}
	if want := big.NewRat(100, 127); inv.Value.Cmp(want) != 0 {
		t.Errorf("USD/GBP = %v, want %v", inv.Value, want)
	}

	if _, err := provider.Rate("JPY", "USD"); err == nil {
		t.Error("Rate(JPY, USD) = nil error, want ErrNoRate")
	}
}

func TestLoad(t *testing.T) {
	originalVars := map[string]string{
		"PORT":             os.Getenv("PORT"),
		"SQLITE_DB_PATH":   os.Getenv("SQLITE_DB_PATH"),
		"DEFAULT_CURRENCY": os.Getenv("DEFAULT_CURRENCY"),
		"RATES":            os.Getenv("RATES"),
		"LOG_LEVEL":        os.Getenv("LOG_LEVEL"),
		"SHUTDOWN_TIMEOUT": os.Getenv("SHUTDOWN_TIMEOUT"),
	}
	for key := range originalVars {
		os.Unsetenv(key)
	}
	defer func() {
		for key, value := range originalVars {
			if value != "" {
				os.Setenv(key, value)
			} else {
				os.Unsetenv(key)
			}
		}
	}()

	t.Run("default values", func(t *testing.T) {
		cfg := Load()
		if cfg.Port != "8080" {
			t.Errorf("Port = %v, want 8080", cfg.Port)
		}
		if cfg.DefaultCurrency != "USD" {
			t.Errorf("DefaultCurrency = %v, want USD", cfg.DefaultCurrency)
		}
		if cfg.ShutdownTimeout != 10*time.Second {
			t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		os.Setenv("PORT", "9090")
		os.Setenv("DEFAULT_CURRENCY", "EUR")
		os.Setenv("SHUTDOWN_TIMEOUT", "30s")

		cfg := Load()
		if cfg.Port != "9090" {
			t.Errorf("Port = %v, want 9090", cfg.Port)
		}
		if cfg.DefaultCurrency != "EUR" {
			t.Errorf("DefaultCurrency = %v, want EUR", cfg.DefaultCurrency)
		}
		if cfg.ShutdownTimeout != 30*time.Second {
			t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
		}
	})
}

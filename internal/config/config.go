package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Statistics Canada download endpoints. Empty means the built-in
	// table 18-10-0004 URLs.
	StatsCanCSVURL string
	StatsCanZipURL string

	// Dataset cache
	CacheMaxAge time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Refresh worker
	RefreshInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cpi.db"),

		StatsCanCSVURL: getEnv("STATSCAN_CSV_URL", ""),
		StatsCanZipURL: getEnv("STATSCAN_ZIP_URL", ""),

		CacheMaxAge: getEnvDuration("CACHE_MAX_AGE", 24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cpidash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "cpi_refreshed"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 6*time.Hour),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate download endpoints when overridden
	for name, raw := range map[string]string{
		"STATSCAN_CSV_URL": c.StatsCanCSVURL,
		"STATSCAN_ZIP_URL": c.StatsCanZipURL,
	} {
		if raw == "" {
			continue
		}
		if parsed, err := url.Parse(raw); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", name, raw, err))
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", name, parsed.Scheme))
		}
	}

	// Validate cache max age
	if c.CacheMaxAge < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid cache max age %v: must be at least 1 minute", c.CacheMaxAge))
	} else if c.CacheMaxAge > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache max age %v: must be at most 30 days", c.CacheMaxAge))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate refresh worker configuration
	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 7 days", c.RefreshInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

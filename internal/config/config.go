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
	Port           string
	APIPrefix      string
	CORSOrigins    []string
	RateLimitRPM   int
	TrustedProxies []string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	SQLiteDBPath string

	// AMQP, disabled when the URL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Exchange rates
	ExchangeRateAPIBase      string
	ExchangeRateAPIKey       string
	ExchangeRateBaseCurrency string
	ExchangeRateRPS          float64
	RateCacheTTL             time.Duration

	DefaultDisplayCurrency string
	CSVBackgroundThreshold int

	// Background tasks
	TaskPollInterval time.Duration
	TaskBatchSize    int
	TaskMaxRetries   int

	// Scheduler
	SchedulerTick       time.Duration
	SchedulerJobTimeout time.Duration

	// Google Sheets mirror, disabled when the spreadsheet id is empty
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		APIPrefix:      getEnv("API_PREFIX", "/api/v1"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "fintrack_tasks"),

		ExchangeRateAPIBase:      getEnv("EXCHANGE_RATE_API_BASE", "https://open.er-api.com/v6/latest"),
		ExchangeRateAPIKey:       getEnv("EXCHANGE_RATE_API_KEY", ""),
		ExchangeRateBaseCurrency: strings.ToUpper(getEnv("EXCHANGE_RATE_BASE_CURRENCY", "USD")),
		ExchangeRateRPS:          getEnvFloat("EXCHANGE_RATE_RPS", 1),
		RateCacheTTL:             getEnvDuration("RATE_CACHE_TTL", 24*time.Hour),

		DefaultDisplayCurrency: strings.ToUpper(getEnv("DEFAULT_DISPLAY_CURRENCY", "USD")),
		CSVBackgroundThreshold: getEnvInt("CSV_BACKGROUND_THRESHOLD", 1000),

		TaskPollInterval: getEnvDuration("TASK_POLL_INTERVAL", 10*time.Second),
		TaskBatchSize:    getEnvInt("TASK_BATCH_SIZE", 10),
		TaskMaxRetries:   getEnvInt("TASK_MAX_RETRIES", 3),

		SchedulerTick:       getEnvDuration("SCHEDULER_TICK", time.Minute),
		SchedulerJobTimeout: getEnvDuration("SCHEDULER_JOB_TIMEOUT", 10*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}

	return cfg
}

// AMQPEnabled reports whether a broker URL is configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// SheetsEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !strings.HasPrefix(c.APIPrefix, "/") {
		errors = append(errors, fmt.Sprintf("invalid API prefix '%s': must start with '/'", c.APIPrefix))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
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

	if u, err := url.Parse(c.ExchangeRateAPIBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid exchange rate API base '%s': must be an http(s) URL", c.ExchangeRateAPIBase))
	}
	if len(c.ExchangeRateBaseCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid exchange rate base currency '%s': must be a 3-letter code", c.ExchangeRateBaseCurrency))
	}
	if len(c.DefaultDisplayCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid default display currency '%s': must be a 3-letter code", c.DefaultDisplayCurrency))
	}
	if c.ExchangeRateRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid exchange rate RPS %v: must be positive", c.ExchangeRateRPS))
	}
	if c.RateCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate cache TTL %v: must be at least 1 minute", c.RateCacheTTL))
	}

	if c.CSVBackgroundThreshold < 1 {
		errors = append(errors, fmt.Sprintf("invalid CSV background threshold %d: must be at least 1", c.CSVBackgroundThreshold))
	}

	// Validate worker configuration
	if c.TaskBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid task batch size %d: must be at least 1", c.TaskBatchSize))
	} else if c.TaskBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid task batch size %d: must be at most 1000", c.TaskBatchSize))
	}
	if c.TaskMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid task max retries %d: must be at least 1", c.TaskMaxRetries))
	}
	if c.TaskPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid task poll interval %v: must be at least 1 second", c.TaskPollInterval))
	} else if c.TaskPollInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid task poll interval %v: must be at most 24 hours", c.TaskPollInterval))
	}

	if c.SchedulerTick < time.Second {
		errors = append(errors, fmt.Sprintf("invalid scheduler tick %v: must be at least 1 second", c.SchedulerTick))
	}
	if c.SchedulerJobTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid scheduler job timeout %v: must be at least 1 second", c.SchedulerJobTimeout))
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	// The mirror needs credentials from somewhere.
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet id is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets mirror")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
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

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

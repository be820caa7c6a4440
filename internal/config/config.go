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

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// Memory backend
	MemorySeedDir string

	// AMQP (optional; empty URL disables change events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	SpreadsheetID       string
	ServiceAccountEmail string
	PrivateKey          string
	ServiceAccountJSON  string
	ServiceAccountFile  string
	TransactionsSheet   string
	UsersSheet          string

	// Login directory fallback, "user:pass:Display Name;..."
	AppUsers string

	StoreTimeout       time.Duration
	RateLimitPerMinute int

	// CLI
	APIBaseURL string
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		DataBackend: getEnv("DATA_BACKEND", "sheets"),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/qltc.db"),
		MemorySeedDir: getEnv("MEMORY_SEED_DIR", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "qltc"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "qltc_audit"),

		SpreadsheetID:       getEnv("SPREADSHEET_ID", getEnv("GOOGLE_SPREADSHEET_ID", "")),
		ServiceAccountEmail: getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
		PrivateKey:          NormalizePrivateKey(getEnv("GOOGLE_PRIVATE_KEY", "")),
		ServiceAccountJSON:  getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountFile:  getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		TransactionsSheet:   getEnv("TRANSACTIONS_SHEET", "Data"),
		UsersSheet:          getEnv("USERS_SHEET", "Users"),

		AppUsers: getEnv("APP_USERS", ""),

		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:3000"),
	}

	return cfg
}

// NormalizePrivateKey turns a key pasted into a single env line back into PEM:
// surrounding quotes are dropped and literal "\n" sequences become newlines.
func NormalizePrivateKey(k string) string {
	k = strings.TrimSpace(k)
	if len(k) >= 2 && (k[0] == '"' && k[len(k)-1] == '"' || k[0] == '\'' && k[len(k)-1] == '\'') {
		k = k[1 : len(k)-1]
	}
	return strings.ReplaceAll(k, `\n`, "\n")
}

// MissingSheetsSettings lists the names of the settings the sheets backend
// still needs. Values are never included.
func (c *Config) MissingSheetsSettings() []string {
	var missing []string
	if strings.TrimSpace(c.SpreadsheetID) == "" {
		missing = append(missing, "SPREADSHEET_ID")
	}
	hasJSON := c.ServiceAccountJSON != "" || c.ServiceAccountFile != ""
	if !hasJSON {
		if c.ServiceAccountEmail == "" {
			missing = append(missing, "GOOGLE_SERVICE_ACCOUNT_EMAIL")
		}
		if c.PrivateKey == "" {
			missing = append(missing, "GOOGLE_PRIVATE_KEY")
		}
	}
	return missing
}

// Validate validates the configuration and returns an error if invalid.
// Missing sheets credentials are not a validation failure: the server starts
// and reports them per request.
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"sheets", "memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
	}

	if c.DataBackend == "sheets" && c.ServiceAccountFile != "" {
		if _, err := os.Stat(c.ServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.ServiceAccountFile))
		}
	}

	if c.TransactionsSheet == "" {
		errors = append(errors, "transactions sheet name cannot be empty")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
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

	if c.StoreTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be at least 100ms", c.StoreTimeout))
	} else if c.StoreTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be at most 2m", c.StoreTimeout))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateAPIBaseURL checks the URL used by the terminal client.
func (c *Config) ValidateAPIBaseURL() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme)
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/core"
)

// Data backends.
const (
	BackendGoogle = "google"
	BackendMemory = "memory"
)

// Allocation modes.
const (
	AllocationRacy       = "racy"
	AllocationSerialized = "serialized"
)

// Default OAuth scopes: list owned spreadsheets and read/append their values.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.metadata.readonly",
	"https://www.googleapis.com/auth/spreadsheets",
}

type Config struct {
	// HTTP server
	Port               string
	BaseURL            string
	LogLevel           string
	RateLimitPerMinute int

	// Backend selection
	DataBackend string

	// Google OAuth
	GoogleOAuthClientJSON string
	GoogleOAuthClientFile string
	GoogleOAuthScopes     []string
	AuthReadyTimeout      time.Duration
	OAuthRedirectPort     int

	// Sessions
	SessionSecret      string
	SessionIdleTimeout time.Duration

	// Ledger
	AllocationMode   string
	WriteQueueSize   int
	DocumentPageSize int
	DocumentCacheTTL time.Duration
	Accounts         []string

	// Journal
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	port := getEnv("PORT", "8081")
	return &Config{
		Port:               port,
		BaseURL:            strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),

		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthScopes:     getEnvList("GOOGLE_OAUTH_SCOPES", DefaultScopes),
		AuthReadyTimeout:      getEnvDuration("AUTH_READY_TIMEOUT", 10*time.Second),
		OAuthRedirectPort:     getEnvInt("OAUTH_REDIRECT_PORT", 8085),

		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 12*time.Hour),

		AllocationMode:   getEnv("ALLOCATION_MODE", AllocationRacy),
		WriteQueueSize:   getEnvInt("WRITE_QUEUE_SIZE", 32),
		DocumentPageSize: getEnvInt("DOCUMENT_PAGE_SIZE", 20),
		DocumentCacheTTL: getEnvDuration("DOCUMENT_CACHE_TTL", time.Minute),
		Accounts:         getEnvList("ACCOUNTS", core.DefaultAccounts),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kakeibo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "entry_appended"),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid base URL '%s': must be absolute", c.BaseURL))
	}

	validBackends := []string{BackendGoogle, BackendMemory}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendGoogle {
		hasClientFile := c.GoogleOAuthClientFile != ""
		if !hasClientFile && c.GoogleOAuthClientJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for google backend")
		}
		if hasClientFile {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if len(c.GoogleOAuthScopes) == 0 {
			errors = append(errors, "GOOGLE_OAUTH_SCOPES cannot be empty for google backend")
		}
		if len(c.SessionSecret) < 32 {
			errors = append(errors, "SESSION_SECRET must be at least 32 bytes for google backend")
		}
	}

	if c.AuthReadyTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid auth ready timeout %v: must be positive", c.AuthReadyTimeout))
	}
	if c.SessionIdleTimeout < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session idle timeout %v: must be at least 1 minute", c.SessionIdleTimeout))
	}

	validModes := []string{AllocationRacy, AllocationSerialized}
	if !slices.Contains(validModes, c.AllocationMode) {
		errors = append(errors, fmt.Sprintf("invalid allocation mode '%s': must be one of %v", c.AllocationMode, validModes))
	}
	if c.WriteQueueSize < 1 || c.WriteQueueSize > 1024 {
		errors = append(errors, fmt.Sprintf("invalid write queue size %d: must be between 1 and 1024", c.WriteQueueSize))
	}
	if c.DocumentPageSize < 1 || c.DocumentPageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid document page size %d: must be between 1 and 1000", c.DocumentPageSize))
	}
	if c.DocumentCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid document cache TTL %v: must not be negative", c.DocumentCacheTTL))
	}
	if len(c.Accounts) == 0 {
		errors = append(errors, "ACCOUNTS cannot be empty")
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.OAuthRedirectPort < 1 || c.OAuthRedirectPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid OAuth redirect port %d: must be between 1 and 65535", c.OAuthRedirectPort))
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

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

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// RedirectURL is the OAuth callback served by the web server.
func (c *Config) RedirectURL() string {
	return c.BaseURL + "/auth/callback"
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return slices.Clone(defaultValue)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

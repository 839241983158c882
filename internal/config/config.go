// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingEnv is returned when a required environment variable is not set
var ErrMissingEnv = errors.New("missing required environment variable")

// ErrInvalidEnv is returned when a numeric or boolean environment variable cannot be parsed
var ErrInvalidEnv = errors.New("invalid environment variable")

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the local databases (always absolute)
	LogLevel  string
	LogPretty bool

	StoreAPIURL   string
	StoreAPIToken string

	ExchangeRateAPIKey string
	ExchangeRateAPIURL string

	Trading212BaseURL string

	Sync     SyncConfig
	Server   ServerConfig
	Earnings EarningsConfig
}

// SyncConfig holds sync engine settings
type SyncConfig struct {
	Concurrency            int
	Schedule               string // Empty = one-shot
	ContinueOnAccountError bool
	StrictMetadataOrdering bool
}

// ServerConfig holds store API server settings
type ServerConfig struct {
	Port                int
	StoreDBPath         string
	MaintenanceSchedule string // Empty disables scheduled VACUUM
}

// EarningsConfig holds earnings calendar refresh settings
type EarningsConfig struct {
	OutputPath string
	Schedule   string
	S3         S3Config
}

// S3Config holds the optional S3-compatible upload target
type S3Config struct {
	Bucket          string
	Key             string
	Endpoint        string // Custom endpoint for R2/MinIO, empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether an upload target is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	env := &envReader{}
	cfg := &Config{
		DataDir:            dataDir,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          env.getEnvAsBool("LOG_PRETTY", false),
		StoreAPIURL:        strings.TrimRight(getEnv("STORE_API_URL", ""), "/"),
		StoreAPIToken:      getEnv("STORE_API_TOKEN", ""),
		ExchangeRateAPIKey: getEnv("EXCHANGE_RATE_API_KEY", ""),
		ExchangeRateAPIURL: getEnv("EXCHANGE_RATE_API_URL", "https://v6.exchangerate-api.com"),
		Trading212BaseURL:  getEnv("TRADING212_BASE_URL", "https://live.trading212.com"),
		Sync: SyncConfig{
			Concurrency:            env.getEnvAsInt("SYNC_CONCURRENCY", 5),
			Schedule:               getEnv("SYNC_SCHEDULE", ""),
			ContinueOnAccountError: env.getEnvAsBool("SYNC_CONTINUE_ON_ACCOUNT_ERROR", false),
			StrictMetadataOrdering: env.getEnvAsBool("SYNC_STRICT_METADATA_ORDERING", false),
		},
		Server: ServerConfig{
			Port:                env.getEnvAsInt("SERVER_PORT", 8080),
			StoreDBPath:         getEnv("STORE_DB_PATH", filepath.Join(dataDir, "store.db")),
			MaintenanceSchedule: getEnv("STORE_MAINTENANCE_SCHEDULE", "0 3 * * 0"),
		},
		Earnings: EarningsConfig{
			OutputPath: getEnv("EARNINGS_OUTPUT_PATH", filepath.Join(dataDir, "earnings", "calendar.json")),
			Schedule:   getEnv("EARNINGS_SCHEDULE", ""),
			S3: S3Config{
				Bucket:          getEnv("EARNINGS_S3_BUCKET", ""),
				Key:             getEnv("EARNINGS_S3_KEY", "earnings/calendar.json"),
				Endpoint:        getEnv("EARNINGS_S3_ENDPOINT", ""),
				Region:          getEnv("EARNINGS_S3_REGION", "auto"),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			},
		},
	}
	if len(env.invalid) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnv, strings.Join(env.invalid, ", "))
	}

	return cfg, nil
}

// ClientDataDBPath is where the client-data cache lives
func (c *Config) ClientDataDBPath() string {
	return filepath.Join(c.DataDir, "client_data.db")
}

// ValidateSync checks the settings the sync command cannot run without
func (c *Config) ValidateSync() error {
	if err := requireValues(map[string]string{
		"STORE_API_URL":         c.StoreAPIURL,
		"STORE_API_TOKEN":       c.StoreAPIToken,
		"EXCHANGE_RATE_API_KEY": c.ExchangeRateAPIKey,
	}); err != nil {
		return err
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1, got %d", c.Sync.Concurrency)
	}
	return nil
}

// ValidateServer checks the store API server settings
func (c *Config) ValidateServer() error {
	return requireValues(map[string]string{
		"STORE_API_TOKEN": c.StoreAPIToken,
		"STORE_DB_PATH":   c.Server.StoreDBPath,
	})
}

// ValidateEarnings checks the earnings refresh settings
func (c *Config) ValidateEarnings() error {
	if err := requireValues(map[string]string{"EARNINGS_OUTPUT_PATH": c.Earnings.OutputPath}); err != nil {
		return err
	}
	// Credentials are only needed when uploading; the SDK default chain is not used
	if c.Earnings.S3.Enabled() {
		return requireValues(map[string]string{
			"S3_ACCESS_KEY_ID":     c.Earnings.S3.AccessKeyID,
			"S3_SECRET_ACCESS_KEY": c.Earnings.S3.SecretAccessKey,
		})
	}
	return nil
}

func requireValues(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed values and remembers every key that failed to parse
type envReader struct {
	invalid []string
}

func (r *envReader) getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		r.invalid = append(r.invalid, fmt.Sprintf("%s=%q", key, value))
		return defaultValue
	}
	return intVal
}

func (r *envReader) getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		r.invalid = append(r.invalid, fmt.Sprintf("%s=%q", key, value))
		return defaultValue
	}
	return boolVal
}

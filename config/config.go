package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"travelkit/adapters/redis"
	"travelkit/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

const redacted = "[REDACTED]"

// Config holds the complete application configuration
type Config struct {
	Environment Environment `json:"environment" yaml:"environment" env:"TRAVELKIT_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"TRAVELKIT_PROFILE"`

	Server    ServerConfig    `json:"server" yaml:"server"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Catalog   CatalogConfig   `json:"catalog" yaml:"catalog"`
	Recommend RecommendConfig `json:"recommend" yaml:"recommend"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	Webhooks  WebhookConfig   `json:"webhooks" yaml:"webhooks"`
	Analytics AnalyticsConfig `json:"analytics" yaml:"analytics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" env:"TRAVELKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"TRAVELKIT_SERVER_PATH_PREFIX"`
	CORSOrigins       []string      `json:"cors_origins" yaml:"cors_origins" env:"TRAVELKIT_SERVER_CORS_ORIGINS"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"TRAVELKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"TRAVELKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"TRAVELKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"TRAVELKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"TRAVELKIT_SERVER_SHUTDOWN_TIMEOUT"`
	// DispatchMode selects how engine events reach subscribers: "sync" or "async".
	DispatchMode string `json:"dispatch_mode" yaml:"dispatch_mode" env:"TRAVELKIT_SERVER_DISPATCH_MODE"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" yaml:"adapter" env:"TRAVELKIT_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" yaml:"redis"`
	SQL     sqlx.Config  `json:"sql,omitempty" yaml:"sql"`
	File    FileConfig   `json:"file,omitempty" yaml:"file"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" yaml:"path" env:"TRAVELKIT_STORAGE_FILE_PATH"`
}

// CatalogConfig points at a YAML catalog file or directory. Empty uses the embedded catalog.
type CatalogConfig struct {
	Path string `json:"path,omitempty" yaml:"path" env:"TRAVELKIT_CATALOG_PATH"`
}

// RecommendConfig bounds recommendation list sizes.
type RecommendConfig struct {
	DefaultLimit int `json:"default_limit" yaml:"default_limit" env:"TRAVELKIT_RECOMMEND_DEFAULT_LIMIT"`
	MaxLimit     int `json:"max_limit" yaml:"max_limit" env:"TRAVELKIT_RECOMMEND_MAX_LIMIT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"TRAVELKIT_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"TRAVELKIT_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"TRAVELKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes" env:"TRAVELKIT_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled" env:"TRAVELKIT_METRICS_ENABLED"`
	Path          string `json:"path" yaml:"path" env:"TRAVELKIT_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" yaml:"collect_system" env:"TRAVELKIT_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"TRAVELKIT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys" env:"TRAVELKIT_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" env:"TRAVELKIT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size" env:"TRAVELKIT_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"TRAVELKIT_SECURITY_RATE_LIMIT_CLEANUP"`
}

// WebhookConfig lists endpoints that receive engine events.
type WebhookConfig struct {
	Endpoints  []string      `json:"endpoints,omitempty" yaml:"endpoints" env:"TRAVELKIT_WEBHOOK_ENDPOINTS"`
	Secret     string        `json:"secret,omitempty" yaml:"secret" env:"TRAVELKIT_WEBHOOK_SECRET"`
	EventTypes []string      `json:"event_types,omitempty" yaml:"event_types" env:"TRAVELKIT_WEBHOOK_EVENT_TYPES"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" env:"TRAVELKIT_WEBHOOK_TIMEOUT"`
}

// AnalyticsConfig controls KPI aggregation and export.
type AnalyticsConfig struct {
	Enabled             bool          `json:"enabled" yaml:"enabled" env:"TRAVELKIT_ANALYTICS_ENABLED"`
	AggregationInterval time.Duration `json:"aggregation_interval" yaml:"aggregation_interval" env:"TRAVELKIT_ANALYTICS_AGGREGATION_INTERVAL"`
	ExportInterval      time.Duration `json:"export_interval" yaml:"export_interval" env:"TRAVELKIT_ANALYTICS_EXPORT_INTERVAL"`
	ExportEndpoint      string        `json:"export_endpoint,omitempty" yaml:"export_endpoint" env:"TRAVELKIT_ANALYTICS_EXPORT_ENDPOINT"`
	ExportAPIKey        string        `json:"export_api_key,omitempty" yaml:"export_api_key" env:"TRAVELKIT_ANALYTICS_EXPORT_API_KEY"`
	ExportBatch         int           `json:"export_batch" yaml:"export_batch" env:"TRAVELKIT_ANALYTICS_EXPORT_BATCH"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return errors.New("config file must have a .json, .yaml, .yml or .toml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON, YAML or TOML file. The profile named in the
// file (or TRAVELKIT_PROFILE) seeds the defaults; file values and then environment
// variables override it.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := baseForFile(path, data)
	if err != nil {
		return nil, err
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(data, v)
	case ".toml":
		var raw map[string]any
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return err
		}
		// Re-encoded as YAML so the yaml tags and duration strings apply.
		b, err := yaml.Marshal(raw)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(b, v)
	}
	return yaml.Unmarshal(data, v)
}

// baseForFile picks the defaults a file is layered on: the named profile when the file
// or environment selects one, DefaultConfig otherwise.
func baseForFile(path string, data []byte) (*Config, error) {
	var head struct {
		Profile string `json:"profile" yaml:"profile"`
	}
	if err := decode(path, data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	name := head.Profile
	if env := os.Getenv("TRAVELKIT_PROFILE"); env != "" {
		name = env
	}
	if name == "" || name == "default" {
		return DefaultConfig(), nil
	}
	return profileConfig(name)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigins:       []string{"*"},
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			DispatchMode:      "async",
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/travelkit.json",
			},
		},
		Recommend: RecommendConfig{
			DefaultLimit: 6,
			MaxLimit:     50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Webhooks: WebhookConfig{
			Timeout: 5 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:             true,
			AggregationInterval: time.Hour,
			ExportInterval:      5 * time.Minute,
			ExportBatch:         100,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"server", &c.Server},
		{"storage", &c.Storage},
		{"recommend", &c.Recommend},
		{"logging", &c.Logging},
		{"metrics", &c.Metrics},
		{"security", c.Security},
		{"webhooks", &c.Webhooks},
		{"analytics", &c.Analytics},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = redacted
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if len(cfg.Security.APIKeys) > 0 {
		keys := make([]string, len(cfg.Security.APIKeys))
		for i := range keys {
			keys[i] = redacted
		}
		cfg.Security.APIKeys = keys
	}
	if cfg.Webhooks.Secret != "" {
		cfg.Webhooks.Secret = redacted
	}
	if cfg.Analytics.ExportAPIKey != "" {
		cfg.Analytics.ExportAPIKey = redacted
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 6, cfg.Recommend.DefaultLimit)
	assert.Equal(t, "travelkit", cfg.Storage.Redis.KeyPrefix)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRAVELKIT_SERVER_ADDR", ":7070")
	t.Setenv("TRAVELKIT_SERVER_READ_TIMEOUT", "3s")
	t.Setenv("TRAVELKIT_SECURITY_API_KEYS", "k1, ,k2")
	t.Setenv("TRAVELKIT_LOG_ATTRIBUTES", "service=travelkit, region = dhaka")
	t.Setenv("TRAVELKIT_RECOMMEND_DEFAULT_LIMIT", "10")
	t.Setenv("TRAVELKIT_REDIS_CACHE_TTL", "1m")
	t.Setenv("TRAVELKIT_SQL_DRIVER", "mysql")
	t.Setenv("TRAVELKIT_WEBHOOK_EVENT_TYPES", "level_up,achievement_unlocked")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Equal(t, map[string]string{"service": "travelkit", "region": "dhaka"}, cfg.Logging.Attributes)
	assert.Equal(t, 10, cfg.Recommend.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.Storage.Redis.CacheTTL)
	assert.EqualValues(t, "mysql", cfg.Storage.SQL.Driver)
	assert.Equal(t, []string{"level_up", "achievement_unlocked"}, cfg.Webhooks.EventTypes)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("TRAVELKIT_METRICS_ENABLED", "maybe")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRAVELKIT_METRICS_ENABLED")
}

func TestLoadFromFile(t *testing.T) {
	path := writeTemp(t, "config.json", `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		}
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "/api", cfg.Server.PathPrefix, "unset fields keep defaults")
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := writeTemp(t, "travelkit.yaml", `
environment: staging
storage:
  adapter: redis
  redis:
    addr: redis:6379
    key_prefix: tk
    cache_ttl: 30s
catalog:
  path: ./catalog
recommend:
  default_limit: 4
  max_limit: 20
webhooks:
  endpoints: ["https://hooks.example.com/travel"]
  secret: s3cr3t
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "tk", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, 30*time.Second, cfg.Storage.Redis.CacheTTL)
	assert.Equal(t, 10, cfg.Storage.Redis.PoolSize, "nested defaults survive")
	assert.Equal(t, "./catalog", cfg.Catalog.Path)
	assert.Equal(t, 4, cfg.Recommend.DefaultLimit)
	assert.Equal(t, []string{"https://hooks.example.com/travel"}, cfg.Webhooks.Endpoints)
}

func TestLoadFromFile_TOML(t *testing.T) {
	path := writeTemp(t, "travelkit.toml", `
environment = "staging"

[server]
address = ":7070"
read_timeout = "20s"
cors_origins = ["https://travel.example.com"]

[storage]
adapter = "file"

[storage.file]
path = "/var/lib/travelkit/travelers.json"

[logging]
level = "warn"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://travel.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/var/lib/travelkit/travelers.json", cfg.Storage.File.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadEnvFile(t *testing.T) {
	path := writeTemp(t, "travelkit.env", "TRAVELKIT_SERVER_ADDR=:6060\nTRAVELKIT_LOG_LEVEL=debug\n# comment\n")
	t.Setenv("TRAVELKIT_LOG_LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("TRAVELKIT_SERVER_ADDR") })

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Address)
	assert.Equal(t, "error", cfg.Logging.Level, "variables already set win")

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadFromFile_ProfileBase(t *testing.T) {
	path := writeTemp(t, "travelkit.yml", "profile: testing\nserver:\n  address: \":9999\"\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, "sync", cfg.Server.DispatchMode)
	assert.Equal(t, ":9999", cfg.Server.Address)
}

func TestLoadFromFile_EnvWinsOverFile(t *testing.T) {
	path := writeTemp(t, "config.json", `{"server": {"address": ":9090"}}`)
	t.Setenv("TRAVELKIT_SERVER_ADDR", ":1234")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.Server.Address)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := writeTemp(t, "config.json", `{"storage": {"adapter": "cassandra"}}`)
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter must be one of")

	path = writeTemp(t, "broken.yaml", "server: [")
	_, err = LoadFromFile(path)
	require.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeout:       time.Second,
			WriteTimeout:      time.Second,
			IdleTimeout:       time.Second,
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   time.Second,
			DispatchMode:      "sync",
		},
		Storage: StorageConfig{
			Adapter: "memory",
		},
		Recommend: RecommendConfig{DefaultLimit: 6},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "" }, wantErr: "environment cannot be empty"},
		{name: "invalid server timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: "read_timeout must be positive"},
		{name: "bad dispatch mode", mutate: func(c *Config) { c.Server.DispatchMode = "later" }, wantErr: "dispatch_mode"},
		{name: "sql without dsn", mutate: func(c *Config) {
			c.Storage.Adapter = "sql"
			c.Storage.SQL.Driver = "postgres"
		}, wantErr: "dsn cannot be empty"},
		{name: "unknown sql driver", mutate: func(c *Config) {
			c.Storage.Adapter = "sql"
			c.Storage.SQL.Driver = "sqlite"
			c.Storage.SQL.DSN = "file::memory:"
		}, wantErr: "driver must be one of: postgres, pgx, mysql"},
		{name: "file without path", mutate: func(c *Config) { c.Storage.Adapter = "file" }, wantErr: "path cannot be empty"},
		{name: "default above max", mutate: func(c *Config) { c.Recommend.MaxLimit = 3 }, wantErr: "default_limit cannot exceed max_limit"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "level must be one of"},
		{name: "rate limit without rpm", mutate: func(c *Config) { c.Security.EnableRateLimit = true }, wantErr: "requests_per_minute"},
		{name: "relative webhook", mutate: func(c *Config) {
			c.Webhooks.Endpoints = []string{"/hooks"}
			c.Webhooks.Timeout = time.Second
		}, wantErr: "endpoints[0]"},
		{name: "unknown webhook event", mutate: func(c *Config) { c.Webhooks.EventTypes = []string{"points_awarded"} }, wantErr: "unknown event type"},
		{name: "analytics without interval", mutate: func(c *Config) { c.Analytics.Enabled = true }, wantErr: "aggregation_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = ""
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, strings.Split(err.Error(), "; "), 2)
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.SQL.DSN = "postgres://u:p@db/travel"
	cfg.Storage.Redis.Password = "hunter2"
	cfg.Security.APIKeys = []string{"key-1"}
	cfg.Webhooks.Secret = "whsec"
	cfg.Analytics.ExportAPIKey = "exp"

	out := cfg.String()
	for _, secret := range []string{"postgres://u:p@db/travel", "hunter2", "key-1", "whsec", `"exp"`} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, redacted)
	assert.Equal(t, "key-1", cfg.Security.APIKeys[0], "original config untouched")
}

func TestProfiles(t *testing.T) {
	t.Setenv("TRAVELKIT_SQL_DSN", "postgres://localhost/travelkit")

	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
				assert.Equal(t, tt.profileName, cfg.Profile)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestProfiles_ProductionNeedsDSN(t *testing.T) {
	_, err := LoadProfile("production")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn cannot be empty")
}

func TestSecrets(t *testing.T) {
	store := NewEnvironmentSecretStore()

	testKey := "TEST_SECRET_KEY"
	testValue := "test_secret_value"
	t.Setenv(testKey, testValue)

	ctx := context.Background()

	value, err := store.Get(ctx, testKey)
	assert.NoError(t, err)
	assert.Equal(t, testValue, value)

	_, err = store.Get(ctx, "NONEXISTENT_KEY")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	defaultValue := "default"
	value = store.GetWithDefault(ctx, "NONEXISTENT_KEY", defaultValue)
	assert.Equal(t, defaultValue, value)

	value = store.GetWithDefault(ctx, testKey, defaultValue)
	assert.Equal(t, testValue, value)
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("TK_DSN", "postgres://db/travel")
	t.Setenv("TK_KEY", "api-key")

	cfg := DefaultConfig()
	cfg.Storage.SQL.DSN = "secret://TK_DSN"
	cfg.Security.APIKeys = []string{"plain", "secret://TK_KEY"}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), NewEnvironmentSecretStore()))
	assert.Equal(t, "postgres://db/travel", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"plain", "api-key"}, cfg.Security.APIKeys)

	cfg.Webhooks.Secret = "secret://TK_MISSING"
	err := cfg.ResolveSecrets(context.Background(), NewEnvironmentSecretStore())
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "config.json")
	yamlPath := filepath.Join(dir, "config.yaml")
	tomlPath := filepath.Join(dir, "config.toml")
	txtPath := filepath.Join(dir, "config.txt")
	for _, p := range []string{jsonPath, yamlPath, tomlPath, txtPath} {
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o600))
	}

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", jsonPath, false},
		{"valid yaml file", yamlPath, false},
		{"valid toml file", tomlPath, false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"non-config file", txtPath, true},
		{"nonexistent file", filepath.Join(dir, "nonexistent.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"travelkit/adapters/sqlx"
	"travelkit/core"
)

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func oneOf(field, v string, allowed ...string) string {
	if slices.Contains(allowed, v) {
		return ""
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", "))
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}

	if msg := oneOf("dispatch_mode", s.DispatchMode, "sync", "async"); msg != "" {
		errs = append(errs, msg)
	}

	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	if msg := oneOf("adapter", s.Adapter, "memory", "redis", "sql", "file"); msg != "" {
		errs = append(errs, msg)
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
		if s.Redis.CacheTTL < 0 {
			errs = append(errs, "redis config: cache_ttl cannot be negative")
		}
	case "sql":
		drivers := make([]string, len(sqlx.Drivers))
		for i, d := range sqlx.Drivers {
			drivers[i] = string(d)
		}
		if msg := oneOf("sql config: driver", string(s.SQL.Driver), drivers...); msg != "" {
			errs = append(errs, msg)
		}
		if s.SQL.DSN == "" {
			errs = append(errs, "sql config: dsn cannot be empty")
		}
	}

	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string
	for _, msg := range []string{
		oneOf("level", l.Level, "debug", "info", "warn", "error"),
		oneOf("format", l.Format, "json", "text"),
		oneOf("output", l.Output, "stdout", "stderr"),
	} {
		if msg != "" {
			errs = append(errs, msg)
		}
	}
	return joinErrs(errs)
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		return errors.New("path must start with / when metrics are enabled")
	}
	return nil
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

// Validate checks the recommendation limits.
func (r *RecommendConfig) Validate() error {
	var errs []string
	if r.DefaultLimit <= 0 {
		errs = append(errs, "default_limit must be positive")
	}
	if r.MaxLimit < 0 {
		errs = append(errs, "max_limit cannot be negative")
	}
	if r.MaxLimit > 0 && r.DefaultLimit > r.MaxLimit {
		errs = append(errs, "default_limit cannot exceed max_limit")
	}
	return joinErrs(errs)
}

// Validate checks webhook endpoints and event filters.
func (w *WebhookConfig) Validate() error {
	var errs []string
	for i, ep := range w.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an absolute http(s) URL", i))
		}
	}
	for _, t := range w.EventTypes {
		if !slices.Contains(core.AllEventTypes, core.EventType(t)) {
			errs = append(errs, fmt.Sprintf("unknown event type %q", t))
		}
	}
	if len(w.Endpoints) > 0 && w.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	return joinErrs(errs)
}

// Validate checks aggregation and export settings.
func (a *AnalyticsConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	var errs []string
	if a.AggregationInterval <= 0 {
		errs = append(errs, "aggregation_interval must be positive")
	}
	if a.ExportEndpoint != "" {
		if a.ExportInterval <= 0 {
			errs = append(errs, "export_interval must be positive when an export endpoint is set")
		}
		if a.ExportBatch <= 0 {
			errs = append(errs, "export_batch must be positive when an export endpoint is set")
		}
	}
	return joinErrs(errs)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travelkit/adapters/jsonfile"
	mem "travelkit/adapters/memory"
	redisAdapter "travelkit/adapters/redis"
	sqlxAdapter "travelkit/adapters/sqlx"
	"travelkit/analytics"
	"travelkit/api/httpapi"
	"travelkit/catalog"
	"travelkit/config"
	"travelkit/core"
	"travelkit/engine"
	"travelkit/integrations/webhook"
	"travelkit/realtime"
	"travelkit/travel"
)

// configFileEnv names an optional JSON, YAML or TOML config file.
const configFileEnv = "TRAVELKIT_CONFIG_FILE"

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Service   *engine.TravelService
	Analytics *analytics.Service
	Handler   http.Handler
	Server    *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	if path := os.Getenv(config.EnvFileEnv); path != "" {
		if err := config.LoadEnvFile(path); err != nil {
			return nil, err
		}
	}
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv(configFileEnv); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveSecrets(ctx, config.NewEnvironmentSecretStore()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, func(), error) {
	return setupStorage(ctx, cfg)
}

func provideCatalog(cfg *config.Config, logger *slog.Logger) (catalog.Provider, error) {
	if cfg.Catalog.Path == "" {
		return catalog.NewStatic(catalog.Default()), nil
	}
	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded", "path", cfg.Catalog.Path,
		"destinations", len(c.Destinations), "plans", len(c.Plans))
	return catalog.NewStatic(c), nil
}

func provideRegistry(cfg *config.Config) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled && cfg.Metrics.CollectSystem {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return reg
}

// provideAnalytics returns nil when analytics are disabled.
func provideAnalytics(cfg *config.Config, reg *prometheus.Registry, logger *slog.Logger) (*analytics.Service, error) {
	if !cfg.Analytics.Enabled {
		return nil, nil
	}
	acfg := analytics.Config{
		AggregationInterval: cfg.Analytics.AggregationInterval,
		ExportInterval:      cfg.Analytics.ExportInterval,
		ExportEndpoint:      cfg.Analytics.ExportEndpoint,
		ExportAPIKey:        cfg.Analytics.ExportAPIKey,
		ExportBatch:         cfg.Analytics.ExportBatch,
		Logger:              logger,
	}
	if cfg.Metrics.Enabled {
		acfg.Registerer = reg
	}
	return analytics.NewService(acfg)
}

// provideWebhook returns nil when no endpoints are configured.
func provideWebhook(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	if len(cfg.Webhooks.Endpoints) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(cfg.Webhooks.EventTypes))
	for _, t := range cfg.Webhooks.EventTypes {
		types = append(types, core.EventType(t))
	}
	return webhook.New(cfg.Webhooks.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Webhooks.Timeout}),
		webhook.WithEventTypes(types...),
		webhook.WithSecret(cfg.Webhooks.Secret),
		webhook.WithLogger(logger),
	)
}

func provideService(
	cfg *config.Config,
	logger *slog.Logger,
	hub *realtime.Hub,
	storage engine.Storage,
	provider catalog.Provider,
	stats *analytics.Service,
	sink *webhook.Sink,
) *engine.TravelService {
	mode := engine.DispatchAsync
	if cfg.Server.DispatchMode == "sync" {
		mode = engine.DispatchSync
	}
	var hooks []travel.Hook
	if stats != nil {
		hooks = append(hooks, stats)
	}
	if sink != nil {
		hooks = append(hooks, sink)
	}
	return travel.New(
		travel.WithRealtime(hub),
		travel.WithStorage(storage),
		travel.WithCatalog(provider),
		travel.WithDispatchMode(mode),
		travel.WithHooks(hooks...),
		travel.WithLogger(logger),
		travel.WithMaxLimit(cfg.Recommend.MaxLimit),
	)
}

func provideHandler(
	cfg *config.Config,
	logger *slog.Logger,
	svc *engine.TravelService,
	hub *realtime.Hub,
	reg *prometheus.Registry,
	stats *analytics.Service,
) http.Handler {
	opts := httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		CORSOrigins:      cfg.Server.CORSOrigins,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		DefaultLimit:     cfg.Recommend.DefaultLimit,
		Logger:           logger,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		opts.MetricsPath = cfg.Metrics.Path
	}
	if stats != nil {
		opts.Analytics = stats
	}
	return httpapi.NewMux(svc, hub, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the configured storage adapter and its cleanup.
func setupStorage(ctx context.Context, cfg *config.Config) (engine.Storage, func(), error) {
	noop := func() {}
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis storage: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "sql":
		s, err := sqlxAdapter.New(ctx, cfg.Storage.SQL)
		if err != nil {
			return nil, nil, fmt.Errorf("sql storage: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file storage: %w", err)
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}

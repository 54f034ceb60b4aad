package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"travelkit/core"
)

// Config controls the analytics pipeline.
type Config struct {
	AggregationInterval time.Duration
	ExportInterval      time.Duration
	// ExportEndpoint receives rollups over HTTP when set.
	ExportEndpoint string
	ExportAPIKey   string
	ExportBatch    int
	// Registerer enables the Prometheus hook when non-nil.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Service composes the metrics collector, rollups, exporters and Prometheus counters
// behind a single hook.
type Service struct {
	metrics    *TravelMetrics
	aggregator *AggregationEngine
	exporter   *ExportManager
	hook       Hook
	cfg        Config
	logger     *slog.Logger
}

func NewService(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AggregationInterval <= 0 {
		cfg.AggregationInterval = time.Hour
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = 6 * time.Hour
	}

	metrics := NewTravelMetrics()
	hooks := []Hook{metrics}
	if cfg.Registerer != nil {
		prom, err := NewPrometheusHook(cfg.Registerer)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, prom)
	}

	exporters := []Exporter{NewLogExporter(logger)}
	if cfg.ExportEndpoint != "" {
		exporters = append(exporters, NewHTTPExporter(cfg.ExportEndpoint, cfg.ExportAPIKey, cfg.ExportBatch))
	}

	return &Service{
		metrics:    metrics,
		aggregator: NewAggregationEngine(metrics, cfg.AggregationInterval, logger),
		exporter:   NewExportManager(exporters...),
		hook:       NewBridge(hooks...),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// OnEvent feeds every collector.
func (s *Service) OnEvent(e core.Event) { s.hook.OnEvent(e) }

func (s *Service) Metrics() *TravelMetrics { return s.metrics }

func (s *Service) Summary(topN int) Summary { return s.metrics.Summary(topN) }

// Start runs aggregation and periodic export until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go s.aggregator.Start(ctx)
	go s.exportLoop(ctx)
}

func (s *Service) exportLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ExportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ExportNow(ctx); err != nil {
				s.logger.Error("analytics export failed", "error", err)
			}
		}
	}
}

// ExportNow aggregates and ships the daily rollups immediately.
func (s *Service) ExportNow(ctx context.Context) error {
	if err := s.aggregator.AggregateNow(); err != nil {
		return err
	}
	return s.exporter.ExportData(ctx, s.aggregator.GetAllAggregatedData(PeriodDaily))
}

// Close flushes exporters.
func (s *Service) Close() error { return s.exporter.Close() }

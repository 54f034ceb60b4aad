package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Exporter ships rollups somewhere outside the process.
type Exporter interface {
	Export(ctx context.Context, data *AggregatedData) error
	Flush(ctx context.Context) error
	Close() error
}

// Batch is the body posted by HTTPExporter.
type Batch struct {
	ID         string            `json:"batch_id"`
	Source     string            `json:"source"`
	ExportedAt time.Time         `json:"exported_at"`
	Rollups    []*AggregatedData `json:"rollups"`
}

const batchSource = "travelkit"

// HTTPExporter buffers rollups and posts them as JSON batches of at most batchSize.
// A failed batch stays buffered and is retried on the next flush.
type HTTPExporter struct {
	endpoint  string
	apiKey    string
	batchSize int
	client    *http.Client

	mu      sync.Mutex
	pending []*AggregatedData
}

func NewHTTPExporter(endpoint, apiKey string, batchSize int) *HTTPExporter {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &HTTPExporter{
		endpoint:  endpoint,
		apiKey:    apiKey,
		batchSize: batchSize,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPExporter) Export(ctx context.Context, data *AggregatedData) error {
	e.mu.Lock()
	e.pending = append(e.pending, data)
	ready := len(e.pending) >= e.batchSize
	e.mu.Unlock()
	if !ready {
		return nil
	}
	return e.Flush(ctx)
}

// Flush posts everything buffered, one batch at a time.
func (e *HTTPExporter) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.pending) > 0 {
		n := min(len(e.pending), e.batchSize)
		if err := e.post(ctx, e.pending[:n]); err != nil {
			return err
		}
		e.pending = e.pending[n:]
	}
	e.pending = nil
	return nil
}

// Pending reports how many rollups wait for delivery.
func (e *HTTPExporter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *HTTPExporter) post(ctx context.Context, rollups []*AggregatedData) error {
	batch := Batch{
		ID:         uuid.NewString(),
		Source:     batchSource,
		ExportedAt: time.Now().UTC(),
		Rollups:    rollups,
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode rollup batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rollup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", batch.ID)
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post rollup batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rollup endpoint answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func (e *HTTPExporter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Flush(ctx)
}

// LogExporter writes each rollup as a structured log line.
type LogExporter struct {
	logger *slog.Logger
}

func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

func (e *LogExporter) Export(ctx context.Context, data *AggregatedData) error {
	e.logger.InfoContext(ctx, "analytics rollup",
		"period", data.Period,
		"key", data.Key,
		"active_users", data.ActiveUsers,
		"points_awarded", data.PointsAwarded,
		"level_ups", data.LevelUps,
		"achievements_unlocked", data.AchievementsUnlocked,
	)
	return nil
}

func (e *LogExporter) Flush(context.Context) error { return nil }

func (e *LogExporter) Close() error { return nil }

// ExportManager fans rollups out to every exporter. One failing exporter does not
// stop the others; their errors are joined.
type ExportManager struct {
	exporters []Exporter
}

func NewExportManager(exporters ...Exporter) *ExportManager {
	return &ExportManager{exporters: exporters}
}

func (em *ExportManager) ExportData(ctx context.Context, data []*AggregatedData) error {
	var errs []error
	for _, exp := range em.exporters {
		if err := exportAll(ctx, exp, data); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", exp, err))
		}
	}
	return errors.Join(errs...)
}

func exportAll(ctx context.Context, exp Exporter, data []*AggregatedData) error {
	for _, d := range data {
		if err := exp.Export(ctx, d); err != nil {
			return err
		}
	}
	return exp.Flush(ctx)
}

func (em *ExportManager) Close() error {
	var errs []error
	for _, exp := range em.exporters {
		errs = append(errs, exp.Close())
	}
	return errors.Join(errs...)
}

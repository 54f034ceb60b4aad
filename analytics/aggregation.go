package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// AggregatedData is a rollup of TravelMetrics over one period.
type AggregatedData struct {
	Period    AggregationPeriod `json:"period"`
	Key       string            `json:"key"` // e.g., "2024-01-01" for daily, "2024-W01" for weekly
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`

	ActiveUsers          int   `json:"active_users"`
	PointsAwarded        int64 `json:"points_awarded"`
	LevelUps             int64 `json:"level_ups"`
	AchievementsUnlocked int64 `json:"achievements_unlocked"`

	CreatedAt time.Time `json:"created_at"`
}

// AggregationEngine periodically rolls TravelMetrics up into daily, weekly and monthly data.
type AggregationEngine struct {
	mu sync.RWMutex

	metrics *TravelMetrics
	logger  *slog.Logger

	rollups map[AggregationPeriod]map[string]*AggregatedData

	aggregationInterval time.Duration
	lastAggregation     time.Time
}

func NewAggregationEngine(metrics *TravelMetrics, aggregationInterval time.Duration, logger *slog.Logger) *AggregationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregationEngine{
		metrics: metrics,
		logger:  logger,
		rollups: map[AggregationPeriod]map[string]*AggregatedData{
			PeriodDaily:   {},
			PeriodWeekly:  {},
			PeriodMonthly: {},
		},
		aggregationInterval: aggregationInterval,
	}
}

// AggregateNow forces an immediate aggregation of all periods
func (ae *AggregationEngine) AggregateNow() error {
	return ae.aggregateAt(time.Now().UTC())
}

func (ae *AggregationEngine) aggregateAt(now time.Time) error {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Calculate week start (Monday)
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	weekStart := day.AddDate(0, 0, -daysSinceMonday)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	periods := []struct {
		period AggregationPeriod
		key    string
		start  time.Time
		end    time.Time
		active int
	}{
		{PeriodDaily, dayKey(now), day, day.AddDate(0, 0, 1), ae.metrics.DailyActiveUsers(dayKey(now))},
		{PeriodWeekly, weekKey(now), weekStart, weekStart.AddDate(0, 0, 7), ae.metrics.WeeklyActiveUsers(weekKey(now))},
		{PeriodMonthly, monthKey(now), monthStart, monthStart.AddDate(0, 1, 0), ae.metrics.MonthlyActiveUsers(monthKey(now))},
	}
	for _, p := range periods {
		if !p.end.After(p.start) {
			return fmt.Errorf("empty %s window %s", p.period, p.key)
		}
		data := &AggregatedData{
			Period:      p.period,
			Key:         p.key,
			StartTime:   p.start,
			EndTime:     p.end,
			ActiveUsers: p.active,
			CreatedAt:   now,
		}
		for d := p.start; d.Before(p.end); d = d.AddDate(0, 0, 1) {
			k := dayKey(d)
			data.PointsAwarded += ae.metrics.PointsAwardedByDay(k)
			data.LevelUps += ae.metrics.LevelUpsByDay(k)
			data.AchievementsUnlocked += ae.metrics.AchievementsByDay(k)
		}
		ae.rollups[p.period][p.key] = data
	}

	ae.lastAggregation = now
	return nil
}

// GetAggregatedData returns aggregated data for a specific period and key
func (ae *AggregationEngine) GetAggregatedData(period AggregationPeriod, key string) (*AggregatedData, bool) {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	data, exists := ae.rollups[period][key]
	return data, exists
}

// GetAllAggregatedData returns all aggregated data for a period ordered by key.
func (ae *AggregationEngine) GetAllAggregatedData(period AggregationPeriod) []*AggregatedData {
	ae.mu.RLock()
	defer ae.mu.RUnlock()

	result := make([]*AggregatedData, 0, len(ae.rollups[period]))
	for _, data := range ae.rollups[period] {
		result = append(result, data)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Start aggregates immediately and then on every interval until ctx is done.
func (ae *AggregationEngine) Start(ctx context.Context) {
	if err := ae.AggregateNow(); err != nil {
		ae.logger.Error("initial aggregation failed", "error", err)
	}
	if ae.aggregationInterval <= 0 {
		return
	}
	ticker := time.NewTicker(ae.aggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ae.AggregateNow(); err != nil {
				ae.logger.Error("periodic aggregation failed", "error", err)
			}
		}
	}
}

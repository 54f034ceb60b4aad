package analytics

import (
	"github.com/prometheus/client_golang/prometheus"

	"travelkit/core"
)

// PrometheusHook exports event counters to a Prometheus registry.
type PrometheusHook struct {
	points       prometheus.Counter
	levelUps     *prometheus.CounterVec
	achievements *prometheus.CounterVec
	events       *prometheus.CounterVec
}

// NewPrometheusHook registers the travelkit collectors with reg.
func NewPrometheusHook(reg prometheus.Registerer) (*PrometheusHook, error) {
	h := &PrometheusHook{
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelkit_score_points_total",
			Help: "Travel score points awarded across all travelers.",
		}),
		levelUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelkit_level_ups_total",
			Help: "Level ups by the level reached.",
		}, []string{"level"}),
		achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelkit_achievements_unlocked_total",
			Help: "Achievements unlocked by achievement id.",
		}, []string{"achievement"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelkit_events_total",
			Help: "Domain events published by type.",
		}, []string{"type"}),
	}
	for _, c := range []prometheus.Collector{h.points, h.levelUps, h.achievements, h.events} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *PrometheusHook) OnEvent(e core.Event) {
	h.events.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case core.EventScoreUpdated:
		if e.Delta > 0 {
			h.points.Add(float64(e.Delta))
		}
	case core.EventLevelUp:
		h.levelUps.WithLabelValues(string(e.Level)).Inc()
	case core.EventAchievementUnlocked:
		if e.Achievement != nil {
			h.achievements.WithLabelValues(string(e.Achievement.ID)).Inc()
		}
	}
}

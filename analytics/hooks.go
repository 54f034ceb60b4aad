package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"travelkit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// TravelMetrics aggregates engagement KPIs from score, level and achievement events.
type TravelMetrics struct {
	mu sync.RWMutex

	// User engagement
	dailyActiveUsers   map[string]map[core.UserID]struct{}
	weeklyActiveUsers  map[string]map[core.UserID]struct{}
	monthlyActiveUsers map[string]map[core.UserID]struct{}

	// Score
	pointsAwardedByDay map[string]int64
	pointsAwardedTotal int64

	// Levels
	levelUpsByDay   map[string]int64
	levelUpsByLevel map[core.LevelName]int64

	// Achievements
	achievementsByDay  map[string]int64
	achievementsByID   map[core.AchievementID]int64
	achievementHolders map[core.AchievementID]map[core.UserID]struct{}

	// rolling 24 hour counters
	realtime struct {
		points       int64
		levelUps     int64
		achievements int64
		lastReset    time.Time
	}
	now func() time.Time
}

func NewTravelMetrics() *TravelMetrics {
	m := &TravelMetrics{
		dailyActiveUsers:   make(map[string]map[core.UserID]struct{}),
		weeklyActiveUsers:  make(map[string]map[core.UserID]struct{}),
		monthlyActiveUsers: make(map[string]map[core.UserID]struct{}),
		pointsAwardedByDay: make(map[string]int64),
		levelUpsByDay:      make(map[string]int64),
		levelUpsByLevel:    make(map[core.LevelName]int64),
		achievementsByDay:  make(map[string]int64),
		achievementsByID:   make(map[core.AchievementID]int64),
		achievementHolders: make(map[core.AchievementID]map[core.UserID]struct{}),
		now:                time.Now,
	}
	m.realtime.lastReset = m.now()
	return m
}

func (m *TravelMetrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(e.Time)
	m.trackUser(e.UserID, day, weekKey(e.Time), monthKey(e.Time))

	switch e.Type {
	case core.EventScoreUpdated:
		// only growth counts as awarded points
		if e.Delta > 0 {
			m.pointsAwardedByDay[day] += e.Delta
			m.pointsAwardedTotal += e.Delta
			m.realtime.points += e.Delta
		}
	case core.EventLevelUp:
		m.levelUpsByDay[day]++
		m.levelUpsByLevel[e.Level]++
		m.realtime.levelUps++
	case core.EventAchievementUnlocked:
		if e.Achievement == nil {
			return
		}
		id := e.Achievement.ID
		m.achievementsByDay[day]++
		m.achievementsByID[id]++
		if m.achievementHolders[id] == nil {
			m.achievementHolders[id] = make(map[core.UserID]struct{})
		}
		m.achievementHolders[id][e.UserID] = struct{}{}
		m.realtime.achievements++
	}

	if m.now().Sub(m.realtime.lastReset) > 24*time.Hour {
		m.realtime.points, m.realtime.levelUps, m.realtime.achievements = 0, 0, 0
		m.realtime.lastReset = m.now()
	}
}

func (m *TravelMetrics) trackUser(user core.UserID, day, week, month string) {
	addUser(m.dailyActiveUsers, day, user)
	addUser(m.weeklyActiveUsers, week, user)
	addUser(m.monthlyActiveUsers, month, user)
}

func addUser(m map[string]map[core.UserID]struct{}, key string, user core.UserID) {
	if m[key] == nil {
		m[key] = make(map[core.UserID]struct{})
	}
	m[key][user] = struct{}{}
}

func (m *TravelMetrics) DailyActiveUsers(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActiveUsers[day])
}

func (m *TravelMetrics) WeeklyActiveUsers(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActiveUsers[week])
}

func (m *TravelMetrics) MonthlyActiveUsers(month string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monthlyActiveUsers[month])
}

func (m *TravelMetrics) PointsAwardedByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pointsAwardedByDay[day]
}

func (m *TravelMetrics) LevelUpsByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelUpsByDay[day]
}

func (m *TravelMetrics) LevelUps(level core.LevelName) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelUpsByLevel[level]
}

func (m *TravelMetrics) AchievementsByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.achievementsByDay[day]
}

func (m *TravelMetrics) Achievements(id core.AchievementID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.achievementsByID[id]
}

// UniqueHolders returns how many distinct travelers unlocked the achievement.
func (m *TravelMetrics) UniqueHolders(id core.AchievementID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.achievementHolders[id])
}

// RealtimeStats returns the rolling 24 hour counters.
func (m *TravelMetrics) RealtimeStats() (points, levelUps, achievements int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.realtime.points, m.realtime.levelUps, m.realtime.achievements
}

// AchievementCount pairs an achievement with its unlock count.
type AchievementCount struct {
	ID      core.AchievementID `json:"id"`
	Count   int64              `json:"count"`
	Holders int                `json:"holders"`
}

// Summary is a point-in-time report of the collected KPIs.
type Summary struct {
	Day                 string                   `json:"day"`
	DailyActiveUsers    int                      `json:"daily_active_users"`
	PointsAwardedToday  int64                    `json:"points_awarded_today"`
	PointsAwardedTotal  int64                    `json:"points_awarded_total"`
	LevelUpsByLevel     map[core.LevelName]int64 `json:"level_ups_by_level"`
	TopAchievements     []AchievementCount       `json:"top_achievements"`
	Realtime24hPoints   int64                    `json:"realtime_24h_points"`
	Realtime24hLevelUps int64                    `json:"realtime_24h_level_ups"`
}

// Summary reports today's figures and the top achievements, most unlocked first.
func (m *TravelMetrics) Summary(topN int) Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := dayKey(m.now())
	out := Summary{
		Day:                 day,
		DailyActiveUsers:    len(m.dailyActiveUsers[day]),
		PointsAwardedToday:  m.pointsAwardedByDay[day],
		PointsAwardedTotal:  m.pointsAwardedTotal,
		LevelUpsByLevel:     make(map[core.LevelName]int64, len(m.levelUpsByLevel)),
		Realtime24hPoints:   m.realtime.points,
		Realtime24hLevelUps: m.realtime.levelUps,
	}
	for lvl, n := range m.levelUpsByLevel {
		out.LevelUpsByLevel[lvl] = n
	}

	top := make([]AchievementCount, 0, len(m.achievementsByID))
	for id, n := range m.achievementsByID {
		top = append(top, AchievementCount{ID: id, Count: n, Holders: len(m.achievementHolders[id])})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].ID < top[j].ID
	})
	if topN >= 0 && len(top) > topN {
		top = top[:topN]
	}
	out.TopAchievements = top
	return out
}

// Helper functions
func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }

package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventScoreUpdated        EventType = "score_updated"
	EventLevelUp             EventType = "level_up"
	EventAchievementUnlocked EventType = "achievement_unlocked"
)

// AllEventTypes lists every event the service publishes.
var AllEventTypes = []EventType{EventScoreUpdated, EventLevelUp, EventAchievementUnlocked}

// Event represents an immutable domain event.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	UserID      UserID         `json:"user_id"`
	Delta       int64          `json:"delta,omitempty"`
	Total       int64          `json:"total,omitempty"`
	Level       LevelName      `json:"level,omitempty"`
	Achievement *Achievement   `json:"achievement,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, user UserID) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), UserID: user}
}

func NewScoreUpdated(user UserID, delta int64, total int64) Event {
	ev := newEvent(EventScoreUpdated, user)
	ev.Delta, ev.Total = delta, total
	return ev
}

func NewLevelUp(user UserID, level Level, total int64) Event {
	ev := newEvent(EventLevelUp, user)
	ev.Level, ev.Total = level.Name, total
	ev.Metadata = map[string]any{"icon": level.Icon, "rank": level.Rank()}
	return ev
}

func NewAchievementUnlocked(user UserID, a Achievement) Event {
	ev := newEvent(EventAchievementUnlocked, user)
	ev.Achievement = &a
	return ev
}

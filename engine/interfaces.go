package engine

import (
	"context"

	"travelkit/core"
)

// Storage abstracts persistence for traveler activity snapshots.
// GetSnapshot returns an empty snapshot for unknown users rather than an error.
type Storage interface {
	GetSnapshot(ctx context.Context, user core.UserID) (core.ActivitySnapshot, error)
	SaveSnapshot(ctx context.Context, snap core.ActivitySnapshot) error
	IncrementStat(ctx context.Context, user core.UserID, stat core.Stat, delta int64) (newTotal int64, err error)
	AddVisit(ctx context.Context, user core.UserID, destinationID string) (added bool, err error)
	SetVerified(ctx context.Context, user core.UserID, verified bool) error
	SetPreferences(ctx context.Context, user core.UserID, prefs core.Preferences) error
}

// RuleEngine evaluates profile transitions and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, t core.Transition) []core.Event
}

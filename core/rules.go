package core

import "context"

// Transition is a before/after pair of profiles for the same traveler.
type Transition struct {
	Before TravelProfile
	After  TravelProfile
}

// Rule determines whether a profile transition should emit derived events.
type Rule interface {
	Evaluate(ctx context.Context, t Transition) []Event
}

// ScoreRule emits a score update whenever the travel score changes.
type ScoreRule struct{}

func (ScoreRule) Evaluate(_ context.Context, t Transition) []Event {
	delta := t.After.TravelScore - t.Before.TravelScore
	if delta == 0 {
		return nil
	}
	return []Event{NewScoreUpdated(t.After.UserID, delta, t.After.TravelScore)}
}

// LevelUpRule emits a level up when the level rank increases.
type LevelUpRule struct{}

func (LevelUpRule) Evaluate(_ context.Context, t Transition) []Event {
	if t.After.Level.Rank() <= t.Before.Level.Rank() {
		return nil
	}
	return []Event{NewLevelUp(t.After.UserID, t.After.Level, t.After.TravelScore)}
}

// UnlockRule emits one event per badge held after but not before, in badge order.
type UnlockRule struct{}

func (UnlockRule) Evaluate(_ context.Context, t Transition) []Event {
	var out []Event
	for _, a := range t.After.Achievements {
		if !t.Before.HasAchievement(a.ID) {
			out = append(out, NewAchievementUnlocked(t.After.UserID, a))
		}
	}
	return out
}

// DefaultRules returns the rules the service evaluates on every transition.
func DefaultRules() []Rule {
	return []Rule{ScoreRule{}, LevelUpRule{}, UnlockRule{}}
}

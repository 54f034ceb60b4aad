package core

import (
	"encoding/json"
	"math"
)

// LevelName names a traveler tier.
type LevelName string

const (
	LevelNewbie     LevelName = "Newbie"
	LevelExplorer   LevelName = "Explorer"
	LevelWanderer   LevelName = "Wanderer"
	LevelAdventurer LevelName = "Adventurer"
	LevelExpert     LevelName = "Expert"
)

// Unbounded is the MaxScore of the terminal level.
const Unbounded int64 = math.MaxInt64

// Level is a named, inclusive score band.
type Level struct {
	Name     LevelName
	Icon     string
	MinScore int64
	MaxScore int64
}

// Terminal reports whether the level has no upper bound.
func (l Level) Terminal() bool { return l.MaxScore == Unbounded }

// Contains reports whether score falls inside the level's inclusive range.
func (l Level) Contains(score int64) bool {
	return score >= l.MinScore && score <= l.MaxScore
}

// Rank returns the level's position in the ladder, starting at 0 for Newbie.
func (l Level) Rank() int {
	for i, lv := range levels {
		if lv.Name == l.Name {
			return i
		}
	}
	return 0
}

type levelJSON struct {
	Name     LevelName `json:"name"`
	Icon     string    `json:"icon"`
	MinScore int64     `json:"min_score"`
	MaxScore *int64    `json:"max_score"`
}

// MarshalJSON encodes an unbounded MaxScore as null.
func (l Level) MarshalJSON() ([]byte, error) {
	out := levelJSON{Name: l.Name, Icon: l.Icon, MinScore: l.MinScore}
	if !l.Terminal() {
		m := l.MaxScore
		out.MaxScore = &m
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts a null max_score as unbounded.
func (l *Level) UnmarshalJSON(b []byte) error {
	var in levelJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*l = Level{Name: in.Name, Icon: in.Icon, MinScore: in.MinScore, MaxScore: Unbounded}
	if in.MaxScore != nil {
		l.MaxScore = *in.MaxScore
	}
	return nil
}

// levels partitions [0, ∞) without gaps or overlaps.
var levels = []Level{
	{Name: LevelNewbie, Icon: "🌱", MinScore: 0, MaxScore: 99},
	{Name: LevelExplorer, Icon: "🎒", MinScore: 100, MaxScore: 299},
	{Name: LevelWanderer, Icon: "🧭", MinScore: 300, MaxScore: 599},
	{Name: LevelAdventurer, Icon: "⛰️", MinScore: 600, MaxScore: 999},
	{Name: LevelExpert, Icon: "🏆", MinScore: 1000, MaxScore: Unbounded},
}

// Levels returns a copy of the level ladder in ascending order.
func Levels() []Level {
	return append([]Level(nil), levels...)
}

// TravelerLevel resolves the level containing score. Scores outside every band
// (only possible for negative input) resolve to Newbie.
func TravelerLevel(score int64) Level {
	for _, l := range levels {
		if l.Contains(score) {
			return l
		}
	}
	return levels[0]
}

// Milestone describes progress from the current level toward the next one.
type Milestone struct {
	Reached         bool    `json:"reached"`
	NextThreshold   int64   `json:"next_threshold,omitempty"`
	PointsToNext    int64   `json:"points_to_next,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
}

// NextMilestone reports progress toward the next level. The terminal level is always
// reached at 100 percent.
func NextMilestone(score int64) Milestone {
	lvl := TravelerLevel(score)
	if lvl.Terminal() {
		return Milestone{Reached: true, ProgressPercent: 100}
	}
	next := lvl.MaxScore + 1
	span := float64(lvl.MaxScore - lvl.MinScore + 1)
	pct := float64(score-lvl.MinScore) / span * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return Milestone{
		NextThreshold:   next,
		PointsToNext:    max(next-score, 0),
		ProgressPercent: pct,
	}
}

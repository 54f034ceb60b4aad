package core

import (
	"errors"
	"math"
	"strings"
)

// UserID uniquely identifies a traveler.
type UserID string

// BudgetRange is a traveler's preferred spending band.
type BudgetRange string

const (
	BudgetLow    BudgetRange = "low"
	BudgetMedium BudgetRange = "medium"
	BudgetHigh   BudgetRange = "high"
)

// Valid reports whether b is one of the known budget ranges.
func (b BudgetRange) Valid() bool {
	switch b {
	case BudgetLow, BudgetMedium, BudgetHigh:
		return true
	}
	return false
}

// Stat names one of the activity counters.
type Stat string

const (
	StatDestinationsVisited Stat = "destinations_visited"
	StatPlansCreated        Stat = "plans_created"
	StatStoriesShared       Stat = "stories_shared"
	StatReviewsWritten      Stat = "reviews_written"
)

// AllStats lists the counters in display order.
var AllStats = []Stat{StatDestinationsVisited, StatPlansCreated, StatStoriesShared, StatReviewsWritten}

// Stats holds a traveler's accumulated activity counters.
type Stats struct {
	DestinationsVisited int64 `json:"destinations_visited" yaml:"destinations_visited"`
	PlansCreated        int64 `json:"plans_created" yaml:"plans_created"`
	StoriesShared       int64 `json:"stories_shared" yaml:"stories_shared"`
	ReviewsWritten      int64 `json:"reviews_written" yaml:"reviews_written"`
}

// Get returns the counter named by s, or 0 for an unknown stat.
func (s Stats) Get(stat Stat) int64 {
	switch stat {
	case StatDestinationsVisited:
		return s.DestinationsVisited
	case StatPlansCreated:
		return s.PlansCreated
	case StatStoriesShared:
		return s.StoriesShared
	case StatReviewsWritten:
		return s.ReviewsWritten
	}
	return 0
}

// Set assigns the counter named by stat. Unknown stats are ignored.
func (s *Stats) Set(stat Stat, v int64) {
	switch stat {
	case StatDestinationsVisited:
		s.DestinationsVisited = v
	case StatPlansCreated:
		s.PlansCreated = v
	case StatStoriesShared:
		s.StoriesShared = v
	case StatReviewsWritten:
		s.ReviewsWritten = v
	}
}

// Preferences drive recommendation bonuses.
type Preferences struct {
	FavoriteTypes []string    `json:"favorite_types" yaml:"favorite_types"`
	BudgetRange   BudgetRange `json:"budget_range,omitempty" yaml:"budget_range"`
}

// ActivitySnapshot is an immutable view of everything the engine knows about a traveler.
// Engine functions work on normalized copies and never modify the caller's value.
type ActivitySnapshot struct {
	UserID                UserID      `json:"user_id" yaml:"user_id"`
	Stats                 Stats       `json:"stats" yaml:"stats"`
	Verified              bool        `json:"verified" yaml:"verified"`
	VisitedDestinationIDs []string    `json:"visited_destination_ids" yaml:"visited_destination_ids"`
	TravelScore           int64       `json:"travel_score" yaml:"travel_score"`
	Preferences           Preferences `json:"preferences" yaml:"preferences"`
}

// Clone returns a deep copy of the snapshot.
func (a ActivitySnapshot) Clone() ActivitySnapshot {
	cp := a
	cp.VisitedDestinationIDs = append([]string(nil), a.VisitedDestinationIDs...)
	cp.Preferences.FavoriteTypes = append([]string(nil), a.Preferences.FavoriteTypes...)
	return cp
}

// Normalize returns a copy with defaults filled in: negative counters become zero,
// id sets are trimmed and deduplicated, an unknown budget range is cleared and
// TravelScore is re-derived from the counters.
func (a ActivitySnapshot) Normalize() ActivitySnapshot {
	out := a.Clone()
	out.UserID = UserID(strings.ToLower(strings.TrimSpace(string(a.UserID))))
	for _, st := range AllStats {
		if out.Stats.Get(st) < 0 {
			out.Stats.Set(st, 0)
		}
	}
	out.VisitedDestinationIDs = uniqueStrings(a.VisitedDestinationIDs)
	out.Preferences.FavoriteTypes = uniqueStrings(a.Preferences.FavoriteTypes)
	budget := BudgetRange(strings.ToLower(strings.TrimSpace(string(a.Preferences.BudgetRange))))
	if !budget.Valid() {
		budget = ""
	}
	out.Preferences.BudgetRange = budget
	out.TravelScore = CalculateTravelScore(out)
	return out
}

// HasVisited reports whether the destination id is in the visited set.
func (a ActivitySnapshot) HasVisited(id string) bool {
	for _, v := range a.VisitedDestinationIDs {
		if v == id {
			return true
		}
	}
	return false
}

// NewSnapshot returns an empty snapshot for the user.
func NewSnapshot(user UserID) ActivitySnapshot {
	return ActivitySnapshot{
		UserID:                user,
		VisitedDestinationIDs: []string{},
		Preferences:           Preferences{FavoriteTypes: []string{}},
	}
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	for _, r := range s {
		if r == '/' || r == ':' || r < ' ' {
			return "", errors.New("invalid user id")
		}
	}
	return UserID(strings.ToLower(s)), nil
}

// uniqueStrings trims values, drops empties and keeps the first occurrence of each.
func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// stringSet builds a lookup set from already-normalized values.
func stringSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

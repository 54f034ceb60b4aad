package core

import "strings"

// Difficulty grades how demanding a travel plan is.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyModerate, DifficultyHard:
		return true
	}
	return false
}

// Destination is a catalog entry for a place travelers can visit.
type Destination struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Location       string   `json:"location,omitempty" yaml:"location"`
	Type           string   `json:"type" yaml:"type"`
	HypePercentage float64  `json:"hype_percentage" yaml:"hype_percentage"`
	Rating         float64  `json:"rating,omitempty" yaml:"rating"`
	Tags           []string `json:"tags,omitempty" yaml:"tags"`
	Description    string   `json:"description,omitempty" yaml:"description"`
}

// Normalize returns a copy with negative metrics zeroed and tags deduplicated.
func (d Destination) Normalize() Destination {
	out := d
	out.ID = strings.TrimSpace(d.ID)
	out.Type = strings.TrimSpace(d.Type)
	if out.HypePercentage < 0 {
		out.HypePercentage = 0
	}
	if out.Rating < 0 {
		out.Rating = 0
	}
	out.Tags = uniqueStrings(d.Tags)
	return out
}

// BudgetBounds is a plan's estimated cost range in local currency.
type BudgetBounds struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

// Plan is a community-authored itinerary.
type Plan struct {
	ID            string       `json:"id" yaml:"id"`
	Title         string       `json:"title" yaml:"title"`
	DestinationID string       `json:"destination_id,omitempty" yaml:"destination_id"`
	Difficulty    Difficulty   `json:"difficulty" yaml:"difficulty"`
	Likes         int64        `json:"likes" yaml:"likes"`
	Views         int64        `json:"views" yaml:"views"`
	Bookmarks     int64        `json:"bookmarks" yaml:"bookmarks"`
	Budget        BudgetBounds `json:"budget" yaml:"budget"`
	DurationDays  int          `json:"duration_days,omitempty" yaml:"duration_days"`
	Tags          []string     `json:"tags,omitempty" yaml:"tags"`
}

// Normalize returns a copy with negative counters zeroed, an unknown difficulty cleared
// and tags deduplicated.
func (p Plan) Normalize() Plan {
	out := p
	out.ID = strings.TrimSpace(p.ID)
	out.DestinationID = strings.TrimSpace(p.DestinationID)
	diff := Difficulty(strings.ToLower(strings.TrimSpace(string(p.Difficulty))))
	if !diff.Valid() {
		diff = ""
	}
	out.Difficulty = diff
	out.Likes = max(out.Likes, 0)
	out.Views = max(out.Views, 0)
	out.Bookmarks = max(out.Bookmarks, 0)
	out.Budget.Min = max(out.Budget.Min, 0)
	out.Budget.Max = max(out.Budget.Max, 0)
	if out.DurationDays < 0 {
		out.DurationDays = 0
	}
	out.Tags = uniqueStrings(p.Tags)
	return out
}

// RankedDestination is a destination decorated with its ranking score.
type RankedDestination struct {
	Destination
	RecommendationScore float64 `json:"recommendation_score"`
}

// RankedPlan is a plan decorated with its ranking score.
type RankedPlan struct {
	Plan
	RecommendationScore float64 `json:"recommendation_score"`
}

// Package recommend ranks catalog entries for a traveler.
//
// Every function is pure: catalogs and snapshots are read, never modified, and the
// returned slices are freshly allocated. Sorting is stable so entries with equal
// scores keep their catalog order.
package recommend

import (
	"sort"

	"travelkit/core"
)

// Bonuses applied by the personalized rankers.
const (
	FavoriteTypeBonus = 20.0
	FavoriteTagBonus  = 5.0

	NewbieEasyBonus       = 20.0
	ExplorerNotHardBonus  = 15.0
	SeasonedTravelerBonus = 10.0

	LowBudgetBonus      = 15.0
	MediumBudgetBonus   = 15.0
	HighBudgetBonus     = 10.0
	LowBudgetCeiling    = 10_000
	MediumBudgetCeiling = 20_000

	// DefaultLimit is the list size callers use when none is requested.
	DefaultLimit = 6

	viewWeight     = 0.1
	bookmarkWeight = 2.0
)

// TrendingDestinations ranks the whole catalog by hype percentage.
func TrendingDestinations(catalog []core.Destination, limit int) []core.RankedDestination {
	if limit <= 0 {
		return []core.RankedDestination{}
	}
	ranked := make([]core.RankedDestination, 0, len(catalog))
	for _, d := range catalog {
		d = d.Normalize()
		ranked = append(ranked, core.RankedDestination{Destination: d, RecommendationScore: d.HypePercentage})
	}
	return topDestinations(ranked, limit)
}

// Destinations ranks unvisited destinations for user. A nil user gets the trending list.
func Destinations(user *core.ActivitySnapshot, catalog []core.Destination, limit int) []core.RankedDestination {
	if user == nil {
		return TrendingDestinations(catalog, limit)
	}
	if limit <= 0 {
		return []core.RankedDestination{}
	}
	snap := user.Normalize()
	favorites := set(snap.Preferences.FavoriteTypes)
	visited := set(snap.VisitedDestinationIDs)

	ranked := make([]core.RankedDestination, 0, len(catalog))
	for _, d := range catalog {
		d = d.Normalize()
		if _, seen := visited[d.ID]; seen {
			continue
		}
		score := d.HypePercentage
		if _, ok := favorites[d.Type]; ok {
			score += FavoriteTypeBonus
		}
		for _, tag := range d.Tags {
			if _, ok := favorites[tag]; ok {
				score += FavoriteTagBonus
			}
		}
		ranked = append(ranked, core.RankedDestination{Destination: d, RecommendationScore: score})
	}
	return topDestinations(ranked, limit)
}

// EngagementScore is the popularity of a plan: likes + 0.1*views + 2*bookmarks.
func EngagementScore(p core.Plan) float64 {
	return float64(p.Likes) + viewWeight*float64(p.Views) + bookmarkWeight*float64(p.Bookmarks)
}

// TrendingPlans ranks the whole catalog by engagement.
func TrendingPlans(catalog []core.Plan, limit int) []core.RankedPlan {
	if limit <= 0 {
		return []core.RankedPlan{}
	}
	ranked := make([]core.RankedPlan, 0, len(catalog))
	for _, p := range catalog {
		p = p.Normalize()
		ranked = append(ranked, core.RankedPlan{Plan: p, RecommendationScore: EngagementScore(p)})
	}
	return topPlans(ranked, limit)
}

// Plans ranks plans for user by likes plus level and budget fit. A nil user gets
// the trending list.
func Plans(user *core.ActivitySnapshot, catalog []core.Plan, limit int) []core.RankedPlan {
	if user == nil {
		return TrendingPlans(catalog, limit)
	}
	if limit <= 0 {
		return []core.RankedPlan{}
	}
	snap := user.Normalize()
	level := core.TravelerLevel(snap.TravelScore).Name
	budget := snap.Preferences.BudgetRange

	ranked := make([]core.RankedPlan, 0, len(catalog))
	for _, p := range catalog {
		p = p.Normalize()
		score := float64(p.Likes) + levelBonus(level, p.Difficulty) + budgetBonus(budget, p.Budget)
		ranked = append(ranked, core.RankedPlan{Plan: p, RecommendationScore: score})
	}
	return topPlans(ranked, limit)
}

func levelBonus(level core.LevelName, d core.Difficulty) float64 {
	switch level {
	case core.LevelNewbie:
		if d == core.DifficultyEasy {
			return NewbieEasyBonus
		}
	case core.LevelExplorer:
		if d != core.DifficultyHard {
			return ExplorerNotHardBonus
		}
	case core.LevelAdventurer, core.LevelExpert:
		return SeasonedTravelerBonus
	}
	return 0
}

// budgetBonus rewards plans that fit the traveler's budget band. The high band is
// rewarded regardless of price.
func budgetBonus(b core.BudgetRange, bounds core.BudgetBounds) float64 {
	switch b {
	case core.BudgetLow:
		if bounds.Max <= LowBudgetCeiling {
			return LowBudgetBonus
		}
	case core.BudgetMedium:
		if bounds.Max <= MediumBudgetCeiling {
			return MediumBudgetBonus
		}
	case core.BudgetHigh:
		return HighBudgetBonus
	}
	return 0
}

func topDestinations(ranked []core.RankedDestination, limit int) []core.RankedDestination {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RecommendationScore > ranked[j].RecommendationScore
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func topPlans(ranked []core.RankedPlan, limit int) []core.RankedPlan {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RecommendationScore > ranked[j].RecommendationScore
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func set(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

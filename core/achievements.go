package core

// AchievementID is the stable key of a badge.
type AchievementID string

const (
	AchievementFirstPlan      AchievementID = "first-plan"
	AchievementExplorer       AchievementID = "explorer"
	AchievementStoryteller    AchievementID = "storyteller"
	AchievementBeachLover     AchievementID = "beach-lover"
	AchievementHillClimber    AchievementID = "hill-climber"
	AchievementExpertTraveler AchievementID = "expert-traveler"
)

// Achievement is a badge a traveler has unlocked.
type Achievement struct {
	ID          AchievementID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
}

// AchievementRule pairs a badge with the predicate that unlocks it.
// Predicates receive a normalized snapshot and must be pure.
type AchievementRule struct {
	Achievement
	Predicate func(ActivitySnapshot) bool
}

var (
	beachDestinations = []string{"coxs-bazar-beach", "inani-beach", "kuakata-beach"}
	hillDestinations  = []string{"nilgiri", "boga-lake", "nafakhum"}
)

// VisitedAtLeast returns a predicate satisfied when at least n of ids were visited.
func VisitedAtLeast(n int, ids ...string) func(ActivitySnapshot) bool {
	want := stringSet(ids)
	return func(a ActivitySnapshot) bool {
		count := 0
		for _, v := range a.VisitedDestinationIDs {
			if _, ok := want[v]; ok {
				count++
			}
		}
		return count >= n
	}
}

// DefaultAchievementRules returns the built-in badge table in evaluation order.
func DefaultAchievementRules() []AchievementRule {
	return []AchievementRule{
		{
			Achievement: Achievement{ID: AchievementFirstPlan, Name: "Trip Planner", Description: "Created your first travel plan", Icon: "📝"},
			Predicate:   func(a ActivitySnapshot) bool { return a.Stats.PlansCreated >= 1 },
		},
		{
			Achievement: Achievement{ID: AchievementExplorer, Name: "Explorer", Description: "Visited 10 destinations", Icon: "🗺️"},
			Predicate:   func(a ActivitySnapshot) bool { return a.Stats.DestinationsVisited >= 10 },
		},
		{
			Achievement: Achievement{ID: AchievementStoryteller, Name: "Storyteller", Description: "Shared 5 travel stories", Icon: "📖"},
			Predicate:   func(a ActivitySnapshot) bool { return a.Stats.StoriesShared >= 5 },
		},
		{
			Achievement: Achievement{ID: AchievementBeachLover, Name: "Beach Lover", Description: "Visited 2 of the coastal beaches", Icon: "🏖️"},
			Predicate:   VisitedAtLeast(2, beachDestinations...),
		},
		{
			Achievement: Achievement{ID: AchievementHillClimber, Name: "Hill Climber", Description: "Visited 2 of the hill destinations", Icon: "🏔️"},
			Predicate:   VisitedAtLeast(2, hillDestinations...),
		},
		{
			Achievement: Achievement{ID: AchievementExpertTraveler, Name: "Expert Traveler", Description: "Reached a travel score of 1000", Icon: "🏆"},
			Predicate:   func(a ActivitySnapshot) bool { return a.TravelScore >= 1000 },
		},
	}
}

// Evaluator checks an ordered list of achievement rules against a snapshot.
// It is immutable and safe for concurrent use.
type Evaluator struct {
	rules []AchievementRule
}

// NewEvaluator builds an evaluator over rules. Rules with a nil predicate or a
// duplicate id are skipped; the first occurrence of an id wins.
func NewEvaluator(rules ...AchievementRule) *Evaluator {
	return (&Evaluator{}).With(rules...)
}

// DefaultEvaluator evaluates the built-in badge table.
func DefaultEvaluator() *Evaluator { return NewEvaluator(DefaultAchievementRules()...) }

// With returns a new evaluator with rules appended after the existing ones.
func (e *Evaluator) With(rules ...AchievementRule) *Evaluator {
	out := &Evaluator{rules: make([]AchievementRule, 0, len(e.rules)+len(rules))}
	seen := make(map[AchievementID]struct{}, cap(out.rules))
	for _, r := range append(append([]AchievementRule(nil), e.rules...), rules...) {
		if r.Predicate == nil || r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out.rules = append(out.rules, r)
	}
	return out
}

// Catalog lists every achievement the evaluator can award, in evaluation order.
func (e *Evaluator) Catalog() []Achievement {
	out := make([]Achievement, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Achievement)
	}
	return out
}

// Evaluate returns the achievements satisfied by the snapshot in rule order.
// Every predicate is checked independently.
func (e *Evaluator) Evaluate(a ActivitySnapshot) []Achievement {
	snap := a.Normalize()
	out := make([]Achievement, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Predicate(snap) {
			out = append(out, r.Achievement)
		}
	}
	return out
}

var defaultEvaluator = DefaultEvaluator()

// GetAchievements evaluates the built-in badge table.
func GetAchievements(a ActivitySnapshot) []Achievement {
	return defaultEvaluator.Evaluate(a)
}

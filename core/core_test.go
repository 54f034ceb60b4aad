package core

import (
	"context"
	"encoding/json"
	"math"
	"testing"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
	if _, err := NormalizeUserID("a:b"); err == nil {
		t.Fatalf("expected invalid id error")
	}
}

func TestCalculateTravelScore(t *testing.T) {
	snap := ActivitySnapshot{
		Stats:    Stats{DestinationsVisited: 24, PlansCreated: 12, StoriesShared: 18, ReviewsWritten: 31},
		Verified: true,
	}
	if got := CalculateTravelScore(snap); got != 841 {
		t.Fatalf("want 841 got %d", got)
	}
	if got := CalculateTravelScore(ActivitySnapshot{}); got != 0 {
		t.Fatalf("empty snapshot: want 0 got %d", got)
	}
	if got := CalculateTravelScore(ActivitySnapshot{Verified: true}); got != 50 {
		t.Fatalf("verified only: want 50 got %d", got)
	}
	if got := CalculateTravelScore(ActivitySnapshot{Stats: Stats{PlansCreated: -3, ReviewsWritten: 2}}); got != 10 {
		t.Fatalf("negative counters: want 10 got %d", got)
	}
}

func TestCalculateTravelScoreFormula(t *testing.T) {
	for d := int64(0); d < 4; d++ {
		for p := int64(0); p < 4; p++ {
			for s := int64(0); s < 4; s++ {
				for r := int64(0); r < 4; r++ {
					for _, v := range []bool{false, true} {
						want := 10*d + 15*p + 12*s + 5*r
						if v {
							want += 50
						}
						got := CalculateTravelScore(ActivitySnapshot{Stats: Stats{d, p, s, r}, Verified: v})
						if got != want {
							t.Fatalf("stats %d/%d/%d/%d verified=%v: want %d got %d", d, p, s, r, v, want, got)
						}
					}
				}
			}
		}
	}
}

func TestCalculateTravelScoreSaturates(t *testing.T) {
	cases := []ActivitySnapshot{
		{Stats: Stats{PlansCreated: 1 << 60}},
		{Stats: Stats{DestinationsVisited: 1 << 59, PlansCreated: 1 << 59, StoriesShared: 1 << 59, ReviewsWritten: 1 << 59}},
		{Stats: Stats{DestinationsVisited: math.MaxInt64}, Verified: true},
		{Stats: Stats{ReviewsWritten: math.MaxInt64 / 5}, Verified: true},
	}
	for _, a := range cases {
		got := CalculateTravelScore(a)
		if got != math.MaxInt64 {
			t.Fatalf("%+v: want saturated score, got %d", a.Stats, got)
		}
		if TravelerLevel(got).Name != LevelExpert {
			t.Fatalf("%+v: saturated score should be Expert", a.Stats)
		}
	}
	if got := CalculateTravelScore(ActivitySnapshot{Stats: Stats{PlansCreated: 1 << 40}}); got != 15<<40 {
		t.Fatalf("large but representable: got %d", got)
	}
}

func TestTravelerLevelBoundaries(t *testing.T) {
	cases := map[int64]LevelName{
		0: LevelNewbie, 99: LevelNewbie,
		100: LevelExplorer, 299: LevelExplorer,
		300: LevelWanderer, 599: LevelWanderer,
		600: LevelAdventurer, 999: LevelAdventurer,
		1000: LevelExpert, 1 << 40: LevelExpert,
		-5: LevelNewbie,
	}
	for score, want := range cases {
		if got := TravelerLevel(score).Name; got != want {
			t.Fatalf("score %d: want %s got %s", score, want, got)
		}
	}
}

func TestLevelsPartition(t *testing.T) {
	ls := Levels()
	if ls[0].MinScore != 0 {
		t.Fatal("ladder must start at 0")
	}
	for i := 1; i < len(ls); i++ {
		if ls[i].MinScore != ls[i-1].MaxScore+1 {
			t.Fatalf("gap or overlap between %s and %s", ls[i-1].Name, ls[i].Name)
		}
	}
	if !ls[len(ls)-1].Terminal() {
		t.Fatal("last level must be unbounded")
	}
}

func TestNextMilestone(t *testing.T) {
	m := NextMilestone(250)
	if m.Reached || m.NextThreshold != 300 || m.PointsToNext != 50 || m.ProgressPercent != 75 {
		t.Fatalf("unexpected milestone: %+v", m)
	}
	m = NextMilestone(1500)
	if !m.Reached || m.ProgressPercent != 100 {
		t.Fatalf("expert should be reached: %+v", m)
	}
	m = NextMilestone(0)
	if m.NextThreshold != 100 || m.ProgressPercent != 0 {
		t.Fatalf("unexpected milestone at 0: %+v", m)
	}
}

func TestLevelJSON(t *testing.T) {
	b, err := json.Marshal(TravelerLevel(5000))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if raw["max_score"] != nil {
		t.Fatalf("expert max_score should be null, got %v", raw["max_score"])
	}
	var back Level
	if err := json.Unmarshal(b, &back); err != nil || !back.Terminal() {
		t.Fatalf("round trip: %+v %v", back, err)
	}
}

func TestGetAchievementsFirstPlanOnly(t *testing.T) {
	got := GetAchievements(ActivitySnapshot{Stats: Stats{PlansCreated: 1}, VisitedDestinationIDs: []string{}})
	if len(got) != 1 || got[0].ID != AchievementFirstPlan {
		t.Fatalf("want [first-plan] got %+v", got)
	}
}

func TestGetAchievementsAllInOrder(t *testing.T) {
	snap := ActivitySnapshot{
		Stats:                 Stats{DestinationsVisited: 60, PlansCreated: 10, StoriesShared: 10},
		VisitedDestinationIDs: []string{"coxs-bazar-beach", "inani-beach", "nilgiri", "nafakhum"},
	}
	got := GetAchievements(snap)
	want := []AchievementID{AchievementFirstPlan, AchievementExplorer, AchievementStoryteller, AchievementBeachLover, AchievementHillClimber, AchievementExpertTraveler}
	if len(got) != len(want) {
		t.Fatalf("want %d achievements got %+v", len(want), got)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: want %s got %s", i, want[i], got[i].ID)
		}
	}
}

func TestGetAchievementsDuplicateVisitsCountOnce(t *testing.T) {
	got := GetAchievements(ActivitySnapshot{VisitedDestinationIDs: []string{"inani-beach", "inani-beach", " inani-beach "}})
	if len(got) != 0 {
		t.Fatalf("duplicate visits must not unlock beach-lover: %+v", got)
	}
}

func TestGetAchievementsMonotonic(t *testing.T) {
	base := ActivitySnapshot{Stats: Stats{PlansCreated: 1, StoriesShared: 5}, VisitedDestinationIDs: []string{"boga-lake", "nilgiri"}}
	before := GetAchievements(base)
	more := base.Clone()
	more.Stats.DestinationsVisited += 3
	more.Stats.ReviewsWritten += 7
	more.VisitedDestinationIDs = append(more.VisitedDestinationIDs, "kuakata-beach")
	after := GetAchievements(more)
	have := map[AchievementID]bool{}
	for _, a := range after {
		have[a.ID] = true
	}
	for _, a := range before {
		if !have[a.ID] {
			t.Fatalf("achievement %s lost after adding activity", a.ID)
		}
	}
}

func TestEvaluatorWith(t *testing.T) {
	custom := AchievementRule{
		Achievement: Achievement{ID: "critic", Name: "Critic"},
		Predicate:   func(a ActivitySnapshot) bool { return a.Stats.ReviewsWritten >= 3 },
	}
	base := DefaultEvaluator()
	ext := base.With(custom, AchievementRule{Achievement: Achievement{ID: AchievementFirstPlan}, Predicate: func(ActivitySnapshot) bool { return true }})
	if len(base.Catalog()) != 6 {
		t.Fatal("With must not modify the receiver")
	}
	if n := len(ext.Catalog()); n != 7 {
		t.Fatalf("duplicate id should be skipped, got %d rules", n)
	}
	got := ext.Evaluate(ActivitySnapshot{Stats: Stats{ReviewsWritten: 3}})
	if len(got) != 1 || got[0].ID != "critic" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestSnapshotNormalize(t *testing.T) {
	in := ActivitySnapshot{
		UserID:                " Rahim ",
		Stats:                 Stats{DestinationsVisited: -1, PlansCreated: 2},
		VisitedDestinationIDs: []string{"a", "", "a", "b"},
		TravelScore:           9999,
		Preferences:           Preferences{FavoriteTypes: []string{"beach", "beach"}, BudgetRange: "LUXURY"},
	}
	out := in.Normalize()
	if out.UserID != "rahim" || out.Stats.DestinationsVisited != 0 || out.TravelScore != 30 {
		t.Fatalf("unexpected normalized snapshot: %+v", out)
	}
	if len(out.VisitedDestinationIDs) != 2 || len(out.Preferences.FavoriteTypes) != 1 || out.Preferences.BudgetRange != "" {
		t.Fatalf("unexpected normalized sets: %+v", out)
	}
	if in.VisitedDestinationIDs[1] != "" || in.TravelScore != 9999 {
		t.Fatal("Normalize must not modify the input")
	}
}

func TestRules(t *testing.T) {
	before := BuildProfile(ActivitySnapshot{UserID: "u", Stats: Stats{DestinationsVisited: 9}}, nil)
	after := BuildProfile(ActivitySnapshot{UserID: "u", Stats: Stats{DestinationsVisited: 10, PlansCreated: 1}}, nil)
	var events []Event
	for _, r := range DefaultRules() {
		events = append(events, r.Evaluate(context.Background(), Transition{Before: before, After: after})...)
	}
	if len(events) != 4 {
		t.Fatalf("want score, level up and two unlocks, got %+v", events)
	}
	if events[0].Type != EventScoreUpdated || events[0].Delta != 25 || events[0].Total != 115 {
		t.Fatalf("unexpected score event: %+v", events[0])
	}
	if events[1].Type != EventLevelUp || events[1].Level != LevelExplorer {
		t.Fatalf("unexpected level event: %+v", events[1])
	}
	if events[2].Achievement.ID != AchievementFirstPlan || events[3].Achievement.ID != AchievementExplorer {
		t.Fatalf("unexpected unlocks: %+v %+v", events[2], events[3])
	}
	for _, r := range DefaultRules() {
		if evs := r.Evaluate(context.Background(), Transition{Before: after, After: after}); len(evs) != 0 {
			t.Fatalf("no-op transition emitted %+v", evs)
		}
	}
}

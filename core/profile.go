package core

// TravelProfile is the result of one engine pass over a snapshot.
type TravelProfile struct {
	UserID       UserID        `json:"user_id"`
	Stats        Stats         `json:"stats"`
	Verified     bool          `json:"verified"`
	TravelScore  int64         `json:"travel_score"`
	Level        Level         `json:"level"`
	Milestone    Milestone     `json:"milestone"`
	Achievements []Achievement `json:"achievements"`
}

// HasAchievement reports whether the profile holds the badge.
func (p TravelProfile) HasAchievement(id AchievementID) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// BuildProfile scores, levels and badges a snapshot. A nil evaluator uses the
// built-in badge table.
func BuildProfile(a ActivitySnapshot, ev *Evaluator) TravelProfile {
	if ev == nil {
		ev = defaultEvaluator
	}
	snap := a.Normalize()
	return TravelProfile{
		UserID:       snap.UserID,
		Stats:        snap.Stats,
		Verified:     snap.Verified,
		TravelScore:  snap.TravelScore,
		Level:        TravelerLevel(snap.TravelScore),
		Milestone:    NextMilestone(snap.TravelScore),
		Achievements: ev.Evaluate(snap),
	}
}

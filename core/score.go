package core

import "math"

// Score weights per activity. The score is purely additive.
const (
	PointsPerDestination int64 = 10
	PointsPerPlan        int64 = 15
	PointsPerStory       int64 = 12
	PointsPerReview      int64 = 5
	VerifiedBonus        int64 = 50
)

// CalculateTravelScore derives the travel score from the activity counters.
// Negative counters count as zero and the sum saturates at math.MaxInt64, so the
// result is never negative.
func CalculateTravelScore(a ActivitySnapshot) int64 {
	s := a.Stats
	var score int64
	score = addWeighted(score, s.DestinationsVisited, PointsPerDestination)
	score = addWeighted(score, s.PlansCreated, PointsPerPlan)
	score = addWeighted(score, s.StoriesShared, PointsPerStory)
	score = addWeighted(score, s.ReviewsWritten, PointsPerReview)
	if a.Verified {
		score = addWeighted(score, 1, VerifiedBonus)
	}
	return score
}

func addWeighted(acc, n, weight int64) int64 {
	if n <= 0 {
		return acc
	}
	if n > (math.MaxInt64-acc)/weight {
		return math.MaxInt64
	}
	return acc + n*weight
}

// PointsFor returns the score weight of a single unit of stat.
func PointsFor(stat Stat) int64 {
	switch stat {
	case StatDestinationsVisited:
		return PointsPerDestination
	case StatPlansCreated:
		return PointsPerPlan
	case StatStoriesShared:
		return PointsPerStory
	case StatReviewsWritten:
		return PointsPerReview
	}
	return 0
}

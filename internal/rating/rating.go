// Package rating holds the pure ELO computation used by the stats
// aggregator. Nothing in here touches storage.
package rating

import (
	"math"

	"github.com/Krutik08064/CricSaga-Bot/internal/domain"
)

const (
	// KFactor is fixed; placement matches use the same K.
	KFactor = 32

	// Performance bonus tuning: one bonus point per marginRunsPerPoint runs
	// of victory margin, capped at maxPerformanceBonus.
	marginRunsPerPoint  = 10
	maxPerformanceBonus = 8
)

type Outcome int

const (
	OutcomeNoResult Outcome = iota
	OutcomeAWins
	OutcomeBWins
)

// Change is the result of one rating computation. Deltas are raw, before the
// rating floor is applied against a concrete profile.
type Change struct {
	DeltaA   int
	DeltaB   int
	NewTierA string
	NewTierB string
}

// ComputeRatingChange runs the ELO update for a pair of ratings. The margin
// bonus raises the winner's gain and shaves the same amount off the loser's
// penalty, so a decided pair with a bonus is intentionally not zero-sum. The
// softened penalty is capped at zero: a loss never turns into a gain.
func ComputeRatingChange(ratingA, ratingB int, outcome Outcome, marginBonus int) Change {
	expectedA := expectedScore(ratingA, ratingB)
	expectedB := 1 - expectedA

	var actualA, actualB float64
	switch outcome {
	case OutcomeAWins:
		actualA, actualB = 1, 0
	case OutcomeBWins:
		actualA, actualB = 0, 1
	default:
		actualA, actualB = 0.5, 0.5
	}

	deltaA := int(math.Round(KFactor * (actualA - expectedA)))
	deltaB := int(math.Round(KFactor * (actualB - expectedB)))

	if marginBonus > 0 {
		switch outcome {
		case OutcomeAWins:
			deltaA += marginBonus
			deltaB = capAtZero(deltaB + marginBonus)
		case OutcomeBWins:
			deltaB += marginBonus
			deltaA = capAtZero(deltaA + marginBonus)
		}
	}

	return Change{
		DeltaA:   deltaA,
		DeltaB:   deltaB,
		NewTierA: TierForRating(applyFloor(ratingA + deltaA)),
		NewTierB: TierForRating(applyFloor(ratingB + deltaB)),
	}
}

func expectedScore(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// capAtZero keeps a softened loss from crossing into a gain.
func capAtZero(delta int) int {
	if delta > 0 {
		return 0
	}
	return delta
}

func applyFloor(rating int) int {
	if rating < 0 {
		return 0
	}
	return rating
}

// ApplyDelta applies a delta against a current rating, honoring the floor.
func ApplyDelta(rating, delta int) int {
	return applyFloor(rating + delta)
}

// PerformanceBonus derives the margin-of-victory bonus from the run margin.
func PerformanceBonus(runMargin int) int {
	if runMargin < 0 {
		runMargin = -runMargin
	}
	bonus := runMargin / marginRunsPerPoint
	if bonus > maxPerformanceBonus {
		return maxPerformanceBonus
	}
	return bonus
}

// MultiplierPolicy scales a player's rating delta from their profile and
// head-to-head pattern. Historically trust and pattern flags scaled deltas
// down to 0.3; current policy is a constant 1.0 and any reintroduction is a
// wiring change, not a code change.
type MultiplierPolicy interface {
	Multiplier(profile *domain.PlayerCareerProfile, pattern *domain.MatchPattern) float64
}

// IdentityPolicy applies no scaling.
type IdentityPolicy struct{}

func (IdentityPolicy) Multiplier(*domain.PlayerCareerProfile, *domain.MatchPattern) float64 {
	return 1.0
}

// ScaleDelta applies a policy multiplier to a raw delta, rounding toward the
// nearest point.
func ScaleDelta(delta int, multiplier float64) int {
	return int(math.Round(float64(delta) * multiplier))
}

package rating

import "math"

// KFactor controls how far a single match moves a rating.
const KFactor = 32

// Outcome is the result of a match for the rated player.
type Outcome int

const (
	Loss Outcome = iota
	Win
	Draw
)

// Compute returns playerRating updated for outcome against opponentRating.
// A draw applies half of the delta a win would have produced, not the logistic
// draw term. Ratings never go below zero.
func Compute(playerRating, opponentRating int, outcome Outcome) int {
	switch outcome {
	case Win:
		return eloUpdate(playerRating, opponentRating, 1)
	case Draw:
		winDelta := eloUpdate(playerRating, opponentRating, 1) - playerRating
		return floor(playerRating + int(math.Round(float64(winDelta)*0.5)))
	default:
		return eloUpdate(playerRating, opponentRating, 0)
	}
}

// Expected is the logistic expected score of player against opponent.
func Expected(playerRating, opponentRating int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponentRating-playerRating)/400.0))
}

func eloUpdate(playerRating, opponentRating int, actual float64) int {
	expected := Expected(playerRating, opponentRating)
	return floor(int(math.Round(float64(playerRating) + KFactor*(actual-expected))))
}

func floor(r int) int {
	if r < 0 {
		return 0
	}
	return r
}

package pipeline

import (
	"RangePulse/internal/domain/models"
)

// BreakoutEvaluator decides whether the close of a bar escapes a computed
// band far enough, and whether the move holds or folds back inside within
// the return window.
type BreakoutEvaluator struct{}

// NewBreakoutEvaluator creates an evaluator. Stateless and safe for
// concurrent use.
func NewBreakoutEvaluator() *BreakoutEvaluator {
	return &BreakoutEvaluator{}
}

// Evaluate checks the bar at index against rng. The breakout is measured at
// that bar's own close. Too little forward data is a defined non-breakout
// outcome. A distance exactly equal to the threshold counts as valid; a
// single re-entry into the band during the return window invalidates the
// breakout regardless of distance.
func (e *BreakoutEvaluator) Evaluate(series *models.Series, index int, rng models.RangeResult, params models.BreakoutParams) (bool, models.BreakoutResult) {
	result := models.BreakoutResult{
		AnchorIndex:   rng.AnchorIndex,
		BreakoutIndex: index,
		Direction:     models.DirectionNone,
	}

	if index < 0 || index+params.MaxCandlesToReturn >= series.Len() {
		return false, result
	}

	closePrice := series.At(index).Close
	forward := series.Closes(index+1, index+1+params.MaxCandlesToReturn)

	var distance float64
	var returned bool

	switch {
	case closePrice > rng.UpperLimit:
		result.Direction = models.DirectionBullish
		distance = (closePrice - rng.UpperLimit) / rng.UpperLimit * 100
		for _, p := range forward {
			if p <= rng.UpperLimit {
				returned = true
				break
			}
		}

	case closePrice < rng.LowerLimit:
		result.Direction = models.DirectionBearish
		distance = (rng.LowerLimit - closePrice) / rng.LowerLimit * 100
		for _, p := range forward {
			if p >= rng.LowerLimit {
				returned = true
				break
			}
		}

	default:
		return false, result
	}

	result.BreakoutDistancePct = distance
	result.IsValid = distance >= params.BreakoutThresholdPercentage && !returned

	return result.IsValid, result
}

package optimizer

import (
	"math"

	"RangePulse/internal/domain/models"
)

// DefaultMaxParams caps the number of grid combinations evaluated per stage.
const DefaultMaxParams = 50

// linspace returns n evenly spaced values from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// round2 rounds to two decimal places, the precision grid values are
// generated and persisted at.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DetectionGrid enumerates detection parameter combinations in a fixed
// order: volume percentile outermost, then body percentage, then lookback.
// The list is truncated to maxParams preserving that order.
func DetectionGrid(maxParams int) []models.DetectionParams {
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}

	volumePercentiles := linspace(70, 95, 6)
	bodyPercentages := linspace(20, 50, 6)
	lookbacks := []int{20, 30, 50, 70, 100}

	grid := make([]models.DetectionParams, 0, maxParams)
	for _, vpt := range volumePercentiles {
		for _, bpt := range bodyPercentages {
			for _, lb := range lookbacks {
				grid = append(grid, models.DetectionParams{
					VolumePercentileThreshold: round2(vpt),
					BodyPercentageThreshold:   round2(bpt),
					LookbackCandles:           lb,
				})
				if len(grid) >= maxParams {
					return grid
				}
			}
		}
	}
	return grid
}

// RangeGrid enumerates range parameter combinations, ATR period outermost.
func RangeGrid(maxParams int) []models.RangeParams {
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}

	periods := []int{5, 7, 10, 14, 21, 28}
	multipliers := linspace(0.5, 3.0, 10)

	grid := make([]models.RangeParams, 0, maxParams)
	for _, period := range periods {
		for _, mult := range multipliers {
			grid = append(grid, models.RangeParams{
				ATRPeriod:     period,
				ATRMultiplier: round2(mult),
			})
			if len(grid) >= maxParams {
				return grid
			}
		}
	}
	return grid
}

// BreakoutGrid enumerates breakout parameter combinations, threshold
// outermost.
func BreakoutGrid(maxParams int) []models.BreakoutParams {
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}

	thresholds := linspace(0.1, 2.0, 10)
	returnWindows := []int{1, 2, 3, 5, 7}

	grid := make([]models.BreakoutParams, 0, maxParams)
	for _, threshold := range thresholds {
		for _, window := range returnWindows {
			grid = append(grid, models.BreakoutParams{
				BreakoutThresholdPercentage: round2(threshold),
				MaxCandlesToReturn:          window,
			})
			if len(grid) >= maxParams {
				return grid
			}
		}
	}
	return grid
}

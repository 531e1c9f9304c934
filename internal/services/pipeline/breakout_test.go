package pipeline

import (
	"testing"

	"RangePulse/internal/domain/models"
)

// closesSeries builds bars whose closes follow the given sequence; highs
// and lows hug the close so only the close column matters.
func closesSeries(t *testing.T, closes []float64) *models.Series {
	t.Helper()
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: int64(i+1) * 60000,
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    100,
		}
	}
	return mustSeries(t, candles)
}

func TestBreakoutBullish(t *testing.T) {
	rng := models.RangeResult{AnchorIndex: 0, ReferencePrice: 100, ATRValue: 2, UpperLimit: 103, LowerLimit: 97}
	params := models.BreakoutParams{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 2}

	t.Run("price folds back inside", func(t *testing.T) {
		series := closesSeries(t, []float64{100, 104, 105, 102, 100, 100})

		valid, result := NewBreakoutEvaluator().Evaluate(series, 1, rng, params)
		if valid {
			t.Error("breakout that re-enters the band must be invalid")
		}
		if result.Direction != models.DirectionBullish {
			t.Errorf("Direction = %v, want bullish", result.Direction)
		}
		if result.IsValid {
			t.Error("IsValid must be false after re-entry")
		}
		wantDist := (104.0 - 103.0) / 103.0 * 100
		if !almostEqual(result.BreakoutDistancePct, wantDist) {
			t.Errorf("BreakoutDistancePct = %v, want %v", result.BreakoutDistancePct, wantDist)
		}
	})

	t.Run("price holds above", func(t *testing.T) {
		series := closesSeries(t, []float64{100, 104, 106, 107})

		valid, result := NewBreakoutEvaluator().Evaluate(series, 1, rng, params)
		if !valid || !result.IsValid {
			t.Errorf("expected valid breakout, got %+v", result)
		}
		if result.Direction != models.DirectionBullish {
			t.Errorf("Direction = %v, want bullish", result.Direction)
		}
		if result.BreakoutIndex != 1 || result.AnchorIndex != 0 {
			t.Errorf("indices = (%d, %d), want (0, 1)", result.AnchorIndex, result.BreakoutIndex)
		}
	})
}

func TestBreakoutBearish(t *testing.T) {
	rng := models.RangeResult{AnchorIndex: 0, ReferencePrice: 100, ATRValue: 2, UpperLimit: 103, LowerLimit: 97}
	params := models.BreakoutParams{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 2}

	t.Run("price holds below", func(t *testing.T) {
		series := closesSeries(t, []float64{100, 96, 95.5, 95})

		valid, result := NewBreakoutEvaluator().Evaluate(series, 1, rng, params)
		if !valid {
			t.Errorf("expected valid bearish breakout, got %+v", result)
		}
		if result.Direction != models.DirectionBearish {
			t.Errorf("Direction = %v, want bearish", result.Direction)
		}
		wantDist := (97.0 - 96.0) / 97.0 * 100
		if !almostEqual(result.BreakoutDistancePct, wantDist) {
			t.Errorf("BreakoutDistancePct = %v, want %v", result.BreakoutDistancePct, wantDist)
		}
	})

	t.Run("price recovers into the band", func(t *testing.T) {
		series := closesSeries(t, []float64{100, 96, 98, 99})

		valid, result := NewBreakoutEvaluator().Evaluate(series, 1, rng, params)
		if valid || result.IsValid {
			t.Errorf("expected invalid breakout after recovery, got %+v", result)
		}
		if result.Direction != models.DirectionBearish {
			t.Errorf("Direction = %v, want bearish", result.Direction)
		}
	})
}

func TestBreakoutInsideBand(t *testing.T) {
	rng := models.RangeResult{UpperLimit: 103, LowerLimit: 97}
	params := models.BreakoutParams{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 2}
	series := closesSeries(t, []float64{100, 101, 102, 100})

	valid, result := NewBreakoutEvaluator().Evaluate(series, 1, rng, params)
	if valid {
		t.Error("close inside the band must not be a breakout")
	}
	if result.Direction != models.DirectionNone {
		t.Errorf("Direction = %v, want none", result.Direction)
	}
	if result.BreakoutDistancePct != 0 || result.IsValid {
		t.Errorf("expected zero distance and invalid, got %+v", result)
	}
}

func TestBreakoutDistanceAtThreshold(t *testing.T) {
	rng := models.RangeResult{UpperLimit: 100, LowerLimit: 90}
	params := models.BreakoutParams{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 2}
	// Distance is exactly 0.5 percent and the price never folds back.
	series := closesSeries(t, []float64{95, 100.5, 101, 102})

	valid, result := NewBreakoutEvaluator().Evaluate(series, 1, rng, params)
	if !valid {
		t.Errorf("distance equal to the threshold must count as valid, got %+v", result)
	}
	if !almostEqual(result.BreakoutDistancePct, 0.5) {
		t.Errorf("BreakoutDistancePct = %v, want 0.5", result.BreakoutDistancePct)
	}
}

func TestBreakoutInsufficientForwardData(t *testing.T) {
	rng := models.RangeResult{UpperLimit: 103, LowerLimit: 97}
	params := models.BreakoutParams{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 3}
	series := closesSeries(t, []float64{100, 104, 105})

	valid, result := NewBreakoutEvaluator().Evaluate(series, 1, rng, params)
	if valid {
		t.Error("expected no verdict without the full return window")
	}
	if result.Direction != models.DirectionNone {
		t.Errorf("Direction = %v, want none", result.Direction)
	}
}

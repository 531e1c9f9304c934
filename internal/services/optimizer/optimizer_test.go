package optimizer

import (
	"context"
	"math"
	"testing"

	"RangePulse/internal/domain/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// spikeSeries has a volume spike every tenth bar over an otherwise flat
// tape, so around ten percent of bars are key candidates for moderate
// percentile thresholds.
func spikeSeries(t *testing.T, n int) *models.Series {
	t.Helper()
	candles := make([]models.Candle, n)
	for i := range candles {
		vol := 100.0
		if i%10 == 0 {
			vol = 1000
		}
		candles[i] = models.Candle{
			Timestamp: int64(i+1) * 60000,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    vol,
		}
	}
	s, err := models.NewSeries(candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func flatSeries(t *testing.T, n int) *models.Series {
	t.Helper()
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: int64(i+1) * 60000,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    100,
		}
	}
	s, err := models.NewSeries(candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func TestDetectionOptimizerFindsBandCandidate(t *testing.T) {
	series := spikeSeries(t, 200)

	opt := NewDetectionOptimizer(WithWorkers(4))
	best, results, err := opt.Optimize(context.Background(), series, DefaultMaxParams)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected scored candidates")
	}
	if best.Prevalence < 5 || best.Prevalence > 15 {
		t.Errorf("winner prevalence = %v, want within [5, 15]", best.Prevalence)
	}
	if best.ValidCandles != 200-best.Params.LookbackCandles {
		t.Errorf("ValidCandles = %d, want %d", best.ValidCandles, 200-best.Params.LookbackCandles)
	}

	// Reports come back in grid enumeration order.
	for i := 1; i < len(results); i++ {
		if results[i].GridIndex <= results[i-1].GridIndex {
			t.Fatal("reports out of grid order")
		}
	}
}

func TestDetectionOptimizerIsDeterministic(t *testing.T) {
	series := spikeSeries(t, 200)

	var winners []models.DetectionParams
	for _, workers := range []int{1, 4, 16} {
		opt := NewDetectionOptimizer(WithWorkers(workers))
		best, _, err := opt.Optimize(context.Background(), series, DefaultMaxParams)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		winners = append(winners, best.Params)
	}

	for i := 1; i < len(winners); i++ {
		if winners[i] != winners[0] {
			t.Fatalf("winner depends on worker count: %+v vs %+v", winners[0], winners[i])
		}
	}
}

func TestDetectionOptimizerTooShortSeries(t *testing.T) {
	series := flatSeries(t, 5)

	opt := NewDetectionOptimizer()
	if _, _, err := opt.Optimize(context.Background(), series, DefaultMaxParams); err == nil {
		t.Error("expected error when no candidate can be scored")
	}
}

func TestRangeCoverageScoring(t *testing.T) {
	// Band 97..103 around bars that are fully inside, straddling the lower
	// boundary, and fully below it.
	candles := []models.Candle{
		{Timestamp: 60000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: 120000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: 180000, Open: 97, High: 98, Low: 96, Close: 97, Volume: 1},
		{Timestamp: 240000, Open: 95.5, High: 96, Low: 94, Close: 95, Volume: 1},
	}
	series, err := models.NewSeries(candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}

	opt := NewRangeOptimizer()
	rng := models.RangeResult{AnchorIndex: 0, UpperLimit: 103, LowerLimit: 97}

	coverage, ok := opt.coverage(series, 0, rng)
	if !ok {
		t.Fatal("expected scorable coverage")
	}
	// 1 inside + 0.5 straddle + 0 outside over three bars.
	if !almostEqual(coverage, 1.5/3*100) {
		t.Errorf("coverage = %v, want 50", coverage)
	}

	if _, ok := opt.coverage(series, 3, rng); ok {
		t.Error("anchor at the last bar must be unscorable")
	}
}

func TestRangeOptimizerTieBreaksByGridOrder(t *testing.T) {
	// Every candidate band holds the flat tape completely, so every score
	// ties and the first grid entry must win.
	series := flatSeries(t, 120)
	keyIndices := []int{40, 70, 100}

	opt := NewRangeOptimizer(WithWorkers(8))
	if _, _, err := opt.Optimize(context.Background(), series, nil, DefaultMaxParams); err == nil {
		t.Fatal("expected no candidates without key indices")
	}

	best, results, err := opt.Optimize(context.Background(), series, keyIndices, DefaultMaxParams)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(results) != DefaultMaxParams {
		t.Fatalf("candidates = %d, want %d", len(results), DefaultMaxParams)
	}
	if !almostEqual(best.AvgCoverage, 100) {
		t.Errorf("AvgCoverage = %v, want 100", best.AvgCoverage)
	}
	want := models.RangeParams{ATRPeriod: 5, ATRMultiplier: 0.5}
	if best.Params != want {
		t.Errorf("winner = %+v, want first grid entry %+v", best.Params, want)
	}
}

func TestBreakoutOptimizer(t *testing.T) {
	closes := []float64{100, 104, 105, 106, 107, 102, 100, 100, 100, 100}
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
	series, err := models.NewSeries(candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}

	ranges := []models.RangeResult{
		{AnchorIndex: 0, ReferencePrice: 100, ATRValue: 2, UpperLimit: 103, LowerLimit: 97},
	}

	opt := NewBreakoutOptimizer(WithWorkers(4))
	best, results, err := opt.Optimize(context.Background(), series, ranges, DefaultMaxParams)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected scored candidates")
	}

	// The first escape sits about 0.97 percent out and folds back within
	// five bars, so short return windows with low thresholds all tie at
	// the top and the earliest grid entry wins.
	want := models.BreakoutParams{BreakoutThresholdPercentage: 0.1, MaxCandlesToReturn: 1}
	if best.Params != want {
		t.Errorf("winner = %+v, want %+v", best.Params, want)
	}
	if best.TotalBreakouts != 1 || best.ValidBreakouts != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", best.TotalBreakouts, best.ValidBreakouts)
	}
	// Entry 104, exit five bars later at 100: held but unprofitable.
	if best.ProfitableTrades != 0 {
		t.Errorf("ProfitableTrades = %d, want 0", best.ProfitableTrades)
	}
	if !almostEqual(best.CombinedScore, 40) {
		t.Errorf("CombinedScore = %v, want 40", best.CombinedScore)
	}
}

func TestBreakoutOptimizerNoBreakouts(t *testing.T) {
	series := flatSeries(t, 30)
	ranges := []models.RangeResult{
		{AnchorIndex: 5, UpperLimit: 103, LowerLimit: 97},
	}

	opt := NewBreakoutOptimizer()
	if _, _, err := opt.Optimize(context.Background(), series, ranges, DefaultMaxParams); err == nil {
		t.Error("expected error when no candidate ever sees a breakout")
	}
}

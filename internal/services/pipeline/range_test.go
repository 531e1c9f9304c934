package pipeline

import (
	"context"
	"errors"
	"testing"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
)

type fakeATRSource struct {
	value float64
	err   error
	calls int
}

func (f *fakeATRSource) ATR(ctx context.Context, symbol string, period int, tf domrepo.Timeframe) (float64, error) {
	f.calls++
	return f.value, f.err
}

type stubMetrics struct {
	atrFallbacks int
}

func (m *stubMetrics) RecordCandlesScanned(symbol string, n int)  {}
func (m *stubMetrics) RecordCandlesIngested(symbol string, n int) {}
func (m *stubMetrics) RecordKeyCandle(symbol string)              {}
func (m *stubMetrics) RecordSignal(symbol, direction string)      {}
func (m *stubMetrics) RecordGridEvaluation(stage string)          {}
func (m *stubMetrics) RecordError(kind string)                    {}
func (m *stubMetrics) RecordATRFallback()                         { m.atrFallbacks++ }
func (m *stubMetrics) RecordLatency(op string, seconds float64)   {}

func flatSeries(t *testing.T, n int) *models.Series {
	t.Helper()
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = flatCandle(int64(i+1)*60000, 100)
	}
	return mustSeries(t, candles)
}

func TestRangeCalculatorLocal(t *testing.T) {
	series := flatSeries(t, 20)

	rc := NewRangeCalculator()
	params := models.RangeParams{ATRPeriod: 14, ATRMultiplier: 1.5}

	result := rc.Calculate(context.Background(), series, 19, params)

	if !almostEqual(result.ReferencePrice, 100) {
		t.Errorf("ReferencePrice = %v, want 100", result.ReferencePrice)
	}
	if !almostEqual(result.ATRValue, 2) {
		t.Errorf("ATRValue = %v, want 2", result.ATRValue)
	}
	if !almostEqual(result.UpperLimit, 103) || !almostEqual(result.LowerLimit, 97) {
		t.Errorf("band = [%v, %v], want [97, 103]", result.LowerLimit, result.UpperLimit)
	}
	if result.AnchorIndex != 19 {
		t.Errorf("AnchorIndex = %d, want 19", result.AnchorIndex)
	}
}

func TestRangeBandIsSymmetric(t *testing.T) {
	series := flatSeries(t, 30)
	rc := NewRangeCalculator()

	multipliers := []float64{0.5, 1, 1.5, 2.5}
	for _, mult := range multipliers {
		params := models.RangeParams{ATRPeriod: 10, ATRMultiplier: mult}
		result := rc.Calculate(context.Background(), series, 25, params)

		width := result.UpperLimit - result.LowerLimit
		wantWidth := 2 * mult * result.ATRValue
		if !almostEqual(width, wantWidth) {
			t.Errorf("mult %v: width = %v, want %v", mult, width, wantWidth)
		}
		mid := (result.UpperLimit + result.LowerLimit) / 2
		if !almostEqual(mid, result.ReferencePrice) {
			t.Errorf("mult %v: band midpoint %v != reference %v", mult, mid, result.ReferencePrice)
		}
	}
}

func TestRangeUsesExternalATRWhenHealthy(t *testing.T) {
	series := flatSeries(t, 20)
	src := &fakeATRSource{value: 5}

	rc := NewRangeCalculator(WithATRSource(src, "BTCUSDT", domrepo.TF5m))
	params := models.RangeParams{ATRPeriod: 14, ATRMultiplier: 2}

	result := rc.Calculate(context.Background(), series, 19, params)

	if src.calls != 1 {
		t.Fatalf("external source calls = %d, want 1", src.calls)
	}
	if !almostEqual(result.ATRValue, 5) {
		t.Errorf("ATRValue = %v, want external value 5", result.ATRValue)
	}
	if !almostEqual(result.UpperLimit, 110) || !almostEqual(result.LowerLimit, 90) {
		t.Errorf("band = [%v, %v], want [90, 110]", result.LowerLimit, result.UpperLimit)
	}
}

func TestRangeFallsBackToLocalATR(t *testing.T) {
	series := flatSeries(t, 20)
	metrics := &stubMetrics{}

	tests := []struct {
		name string
		src  *fakeATRSource
	}{
		{"source error", &fakeATRSource{err: errors.New("connection refused")}},
		{"non-positive value", &fakeATRSource{value: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := NewRangeCalculator(
				WithATRSource(tt.src, "BTCUSDT", domrepo.TF5m),
				WithRangeMetrics(metrics),
			)
			params := models.RangeParams{ATRPeriod: 14, ATRMultiplier: 1.5}

			result := rc.Calculate(context.Background(), series, 19, params)
			if !almostEqual(result.ATRValue, 2) {
				t.Errorf("ATRValue = %v, want local value 2", result.ATRValue)
			}
			if !almostEqual(result.UpperLimit, 103) || !almostEqual(result.LowerLimit, 97) {
				t.Errorf("band = [%v, %v], want local [97, 103]", result.LowerLimit, result.UpperLimit)
			}
		})
	}

	if metrics.atrFallbacks != 2 {
		t.Errorf("fallback counter = %d, want 2", metrics.atrFallbacks)
	}
}

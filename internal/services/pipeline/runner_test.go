package pipeline

import (
	"context"
	"testing"

	"RangePulse/internal/domain/models"
)

func runnerParams() PipelineParams {
	return PipelineParams{
		Detection: models.DetectionParams{
			VolumePercentileThreshold: 80,
			BodyPercentageThreshold:   30,
			LookbackCandles:           5,
		},
		Range: models.RangeParams{ATRPeriod: 5, ATRMultiplier: 1.5},
		Breakout: models.BreakoutParams{
			BreakoutThresholdPercentage: 0.5,
			MaxCandlesToReturn:          2,
		},
	}
}

// scenarioSeries has a single key candle at index 10 (volume spike, tiny
// body) whose band is 97..103, followed by a bullish escape at index 12
// that holds above the band.
func scenarioSeries(t *testing.T) *models.Series {
	t.Helper()

	candles := make([]models.Candle, 0, 15)
	for i := 0; i < 10; i++ {
		candles = append(candles, flatCandle(int64(i+1)*60000, 100))
	}
	// Key candle: volume 10x the window, body 0.2 over a range of 2.
	candles = append(candles, models.Candle{
		Timestamp: 11 * 60000, Open: 100, High: 101, Low: 99, Close: 100.2, Volume: 1000,
	})
	// One quiet bar inside the band, then the escape.
	candles = append(candles, flatCandle(12*60000, 100))
	for i, close := range []float64{104, 105, 106} {
		candles = append(candles, models.Candle{
			Timestamp: int64(13+i) * 60000,
			Open:      close,
			High:      close + 0.5,
			Low:       close - 0.5,
			Close:     close,
			Volume:    100,
		})
	}
	return mustSeries(t, candles)
}

func TestRunnerFindsSignal(t *testing.T) {
	series := scenarioSeries(t)
	metrics := &stubMetrics{}

	runner := NewPipelineRunner(NewRangeCalculator(), WithRunnerMetrics(metrics))
	signals, err := runner.Run(context.Background(), "BTCUSDT", series, runnerParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want 1", len(signals))
	}

	sig := signals[0]
	if sig.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", sig.Symbol)
	}
	if sig.Detection.Index != 10 {
		t.Errorf("anchor index = %d, want 10", sig.Detection.Index)
	}
	if sig.Timestamp != 11*60000 {
		t.Errorf("Timestamp = %d, want anchor bar timestamp", sig.Timestamp)
	}
	if !almostEqual(sig.Range.UpperLimit, 103) || !almostEqual(sig.Range.LowerLimit, 97) {
		t.Errorf("band = [%v, %v], want [97, 103]", sig.Range.LowerLimit, sig.Range.UpperLimit)
	}

	if len(sig.Breakouts) != 1 {
		t.Fatalf("breakouts = %d, want 1", len(sig.Breakouts))
	}
	br := sig.Breakouts[0]
	if br.BreakoutIndex != 12 {
		t.Errorf("BreakoutIndex = %d, want 12", br.BreakoutIndex)
	}
	if br.Direction != models.DirectionBullish || !br.IsValid {
		t.Errorf("expected valid bullish breakout, got %+v", br)
	}
}

func TestRunnerNoKeyCandles(t *testing.T) {
	series := flatSeries(t, 30)

	runner := NewPipelineRunner(NewRangeCalculator())
	signals, err := runner.Run(context.Background(), "BTCUSDT", series, runnerParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("signals = %d, want 0 on a flat series", len(signals))
	}
}

func TestRunnerKeyCandleWithoutBreakout(t *testing.T) {
	// Key candle present but every forward close stays inside the band.
	candles := make([]models.Candle, 0, 20)
	for i := 0; i < 10; i++ {
		candles = append(candles, flatCandle(int64(i+1)*60000, 100))
	}
	candles = append(candles, models.Candle{
		Timestamp: 11 * 60000, Open: 100, High: 101, Low: 99, Close: 100.2, Volume: 1000,
	})
	for i := 0; i < 9; i++ {
		candles = append(candles, flatCandle(int64(12+i)*60000, 100))
	}
	series := mustSeries(t, candles)

	runner := NewPipelineRunner(NewRangeCalculator())
	signals, err := runner.Run(context.Background(), "BTCUSDT", series, runnerParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("signals = %d, want 0 without a band escape", len(signals))
	}
}

func TestRunnerHonorsContextCancellation(t *testing.T) {
	series := scenarioSeries(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewPipelineRunner(NewRangeCalculator())
	if _, err := runner.Run(ctx, "BTCUSDT", series, runnerParams()); err == nil {
		t.Error("expected context error from a cancelled scan")
	}
}

package pipeline

import (
	"testing"

	"RangePulse/internal/domain/models"
)

func TestTrueRange(t *testing.T) {
	candles := []models.Candle{
		{Timestamp: 60000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		// Gap up: |high - prior close| dominates.
		{Timestamp: 120000, Open: 104, High: 105, Low: 103.5, Close: 104, Volume: 1},
		// Gap down: |low - prior close| dominates.
		{Timestamp: 180000, Open: 99, High: 99.5, Low: 98, Close: 99, Volume: 1},
	}
	series := mustSeries(t, candles)

	if got := TrueRange(series, 0); got != 0 {
		t.Errorf("TrueRange(0) = %v, want 0 for the first bar", got)
	}
	if got := TrueRange(series, 1); !almostEqual(got, 5) {
		t.Errorf("TrueRange(1) = %v, want 5", got)
	}
	if got := TrueRange(series, 2); !almostEqual(got, 6) {
		t.Errorf("TrueRange(2) = %v, want 6", got)
	}
}

func TestLocalATR(t *testing.T) {
	candles := make([]models.Candle, 20)
	for i := range candles {
		candles[i] = flatCandle(int64(i+1)*60000, 100)
	}
	series := mustSeries(t, candles)

	tests := []struct {
		name   string
		index  int
		period int
		want   float64
	}{
		{"full window", 19, 14, 2},
		{"shrinking window", 3, 14, 2},
		{"first bar", 0, 14, 0},
		{"period one", 10, 1, 2},
		{"invalid period", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LocalATR(series, tt.index, tt.period)
			if !almostEqual(got, tt.want) {
				t.Errorf("LocalATR(index=%d, period=%d) = %v, want %v", tt.index, tt.period, got, tt.want)
			}
		})
	}
}

func TestLocalATRMixedRanges(t *testing.T) {
	// TR per bar from index 1 on: 2, 4, 6 against stationary closes.
	candles := []models.Candle{
		{Timestamp: 60000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: 120000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: 180000, Open: 100, High: 102, Low: 98, Close: 100, Volume: 1},
		{Timestamp: 240000, Open: 100, High: 103, Low: 97, Close: 100, Volume: 1},
	}
	series := mustSeries(t, candles)

	if got := LocalATR(series, 3, 3); !almostEqual(got, 4) {
		t.Errorf("LocalATR = %v, want mean(2,4,6) = 4", got)
	}
	if got := LocalATR(series, 3, 2); !almostEqual(got, 5) {
		t.Errorf("LocalATR = %v, want mean(4,6) = 5", got)
	}
}

func TestATRSeries(t *testing.T) {
	candles := make([]models.Candle, 10)
	for i := range candles {
		candles[i] = flatCandle(int64(i+1)*60000, 100)
	}
	series := mustSeries(t, candles)

	values := ATRSeries(series, 4)
	if len(values) != 7 {
		t.Fatalf("len = %d, want 7", len(values))
	}
	for i, v := range values {
		if !almostEqual(v, 2) {
			t.Errorf("values[%d] = %v, want 2", i, v)
		}
	}

	if got := ATRSeries(series, 11); got != nil {
		t.Errorf("expected nil for period longer than series, got %v", got)
	}
}

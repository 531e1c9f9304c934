package pipeline

import (
	"math"
	"testing"

	"RangePulse/internal/domain/models"
)

// flatCandle builds a bar with a fixed 101/99 span around a 100 close so
// that every True Range in a run of them is exactly 2.
func flatCandle(ts int64, volume float64) models.Candle {
	return models.Candle{
		Timestamp: ts,
		Open:      100,
		High:      101,
		Low:       99,
		Close:     100,
		Volume:    volume,
	}
}

func mustSeries(t *testing.T, candles []models.Candle) *models.Series {
	t.Helper()
	s, err := models.NewSeries(candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		pct    float64
		want   float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{7}, 90, 7},
		{"median of ten", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 50, 5.5},
		{"interpolated", []float64{10, 20, 30, 40}, 25, 17.5},
		{"all equal", []float64{100, 100, 100, 100}, 80, 100},
		{"top", []float64{3, 1, 2}, 100, 3},
		{"bottom", []float64{3, 1, 2}, 0, 1},
		{"unsorted input", []float64{40, 10, 30, 20}, 25, 17.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := percentile(tt.values, tt.pct)
			if !almostEqual(got, tt.want) {
				t.Errorf("percentile(%v, %v) = %v, want %v", tt.values, tt.pct, got, tt.want)
			}
		})
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	values := []float64{5, 1, 4, 2}
	percentile(values, 50)
	want := []float64{5, 1, 4, 2}
	for i := range values {
		if values[i] != want[i] {
			t.Fatalf("input mutated: %v", values)
		}
	}
}

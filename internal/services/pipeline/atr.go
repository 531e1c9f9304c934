package pipeline

import "RangePulse/internal/domain/models"

// TrueRange computes the True Range of the bar at t: the maximum of
// high-low, |high - prior close| and |low - prior close|. TR of the first
// bar is defined as zero (no prior close).
func TrueRange(series *models.Series, t int) float64 {
	if t <= 0 || t >= series.Len() {
		return 0
	}
	cur := series.At(t)
	prevClose := series.At(t - 1).Close

	tr := cur.High - cur.Low
	if hc := abs(cur.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := abs(cur.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

// LocalATR computes the Average True Range at index as the simple moving
// average of True Range over the trailing period bars ending at index
// inclusive. With fewer prior bars available the window shrinks instead of
// failing.
func LocalATR(series *models.Series, index, period int) float64 {
	if index <= 0 || index >= series.Len() || period <= 0 {
		return 0
	}

	start := index - period + 1
	if start < 1 {
		start = 1
	}

	var sum float64
	n := 0
	for t := start; t <= index; t++ {
		sum += TrueRange(series, t)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ATRSeries computes full-window ATR values for indices period-1 through
// the end of the series, the shape indicator services expose.
func ATRSeries(series *models.Series, period int) []float64 {
	if period <= 0 || series.Len() < period {
		return nil
	}

	// TR per bar; the first bar contributes its high-low span so the very
	// first window is complete.
	trs := make([]float64, series.Len())
	first := series.At(0)
	trs[0] = first.High - first.Low
	for t := 1; t < series.Len(); t++ {
		trs[t] = TrueRange(series, t)
	}

	out := make([]float64, 0, series.Len()-period+1)
	var sum float64
	for t := 0; t < series.Len(); t++ {
		sum += trs[t]
		if t >= period {
			sum -= trs[t-period]
		}
		if t >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

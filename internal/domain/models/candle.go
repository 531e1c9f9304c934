package models

import "fmt"

// Candle represents one OHLCV bar. Timestamps are unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Body returns the absolute open-to-close distance.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-to-low distance.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Validate checks the OHLCV invariants of a single bar.
func (c Candle) Validate() error {
	if c.High < c.Open || c.High < c.Close || c.High < c.Low {
		return fmt.Errorf("high %v below open/close/low", c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low %v above open/close", c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume %v", c.Volume)
	}
	return nil
}

// Series is an ordered, position-indexed sequence of candles. It is built
// once and read-only afterwards; all rolling-window computations address
// bars by position, not timestamp.
type Series struct {
	candles []Candle
}

// NewSeries validates the bars and wraps them into a read-only Series.
// Timestamps must be strictly increasing.
func NewSeries(candles []Candle) (*Series, error) {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			return nil, fmt.Errorf("candle %d: timestamp %d not increasing", i, c.Timestamp)
		}
	}
	return &Series{candles: candles}, nil
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.candles)
}

// At returns the bar at position i.
func (s *Series) At(i int) Candle {
	return s.candles[i]
}

// Volumes copies the volume column for the half-open position range [from, to).
func (s *Series) Volumes(from, to int) []float64 {
	out := make([]float64, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, s.candles[i].Volume)
	}
	return out
}

// Closes copies the close column for the half-open position range [from, to).
func (s *Series) Closes(from, to int) []float64 {
	out := make([]float64, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, s.candles[i].Close)
	}
	return out
}

package models

// Direction classifies which side of the band a close escaped through.
type Direction string

const (
	DirectionNone    Direction = "none"
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

// DetectionResult carries the per-candle metrics behind a key-candle verdict.
type DetectionResult struct {
	Index            int     `json:"index"`
	CurrentVolume    float64 `json:"current_volume"`
	CurrentBodySize  float64 `json:"current_body_size"`
	CurrentRange     float64 `json:"current_range"`
	VolumePercentile float64 `json:"volume_percentile"`
	IsKeyCandle      bool    `json:"is_key_candle"`
}

// RangeResult is the volatility band anchored at a key candle.
type RangeResult struct {
	AnchorIndex    int     `json:"anchor_index"`
	ReferencePrice float64 `json:"reference_price"`
	ATRValue       float64 `json:"atr_value"`
	UpperLimit     float64 `json:"upper_limit"`
	LowerLimit     float64 `json:"lower_limit"`
}

// Contains reports whether a price lies inside the band, boundaries included.
func (r RangeResult) Contains(price float64) bool {
	return price >= r.LowerLimit && price <= r.UpperLimit
}

// BreakoutResult describes a band exit evaluated at one bar's close.
type BreakoutResult struct {
	AnchorIndex         int       `json:"anchor_index"`
	BreakoutIndex       int       `json:"breakout_index"`
	Direction           Direction `json:"direction"`
	BreakoutDistancePct float64   `json:"breakout_distance_pct"`
	IsValid             bool      `json:"is_valid"`
}

// Signal aggregates the detection, range, and breakout results for one anchor.
type Signal struct {
	Symbol    string           `json:"symbol"`
	Timestamp int64            `json:"timestamp"`
	Detection DetectionResult  `json:"detection"`
	Range     RangeResult      `json:"range"`
	Breakouts []BreakoutResult `json:"breakouts"`
}

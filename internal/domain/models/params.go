package models

import "fmt"

// DetectionParams control key-candle detection.
type DetectionParams struct {
	VolumePercentileThreshold float64 `json:"volume_percentile_threshold" validate:"gte=0,lte=100"`
	BodyPercentageThreshold   float64 `json:"body_percentage_threshold" validate:"gte=0,lte=100"`
	LookbackCandles           int     `json:"lookback_candles" validate:"gt=0"`
}

// Validate rejects out-of-range detection parameters eagerly.
func (p DetectionParams) Validate() error {
	if p.VolumePercentileThreshold < 0 || p.VolumePercentileThreshold > 100 {
		return fmt.Errorf("volume_percentile_threshold %v outside [0,100]", p.VolumePercentileThreshold)
	}
	if p.BodyPercentageThreshold < 0 || p.BodyPercentageThreshold > 100 {
		return fmt.Errorf("body_percentage_threshold %v outside [0,100]", p.BodyPercentageThreshold)
	}
	if p.LookbackCandles <= 0 {
		return fmt.Errorf("lookback_candles %d must be positive", p.LookbackCandles)
	}
	return nil
}

// DefaultDetectionParams is the built-in last-resort parameter set.
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		VolumePercentileThreshold: 80,
		BodyPercentageThreshold:   30,
		LookbackCandles:           50,
	}
}

// RangeParams control the ATR band computation.
type RangeParams struct {
	ATRPeriod     int     `json:"atr_period" validate:"gt=0"`
	ATRMultiplier float64 `json:"atr_multiplier" validate:"gt=0"`
}

// Validate rejects out-of-range band parameters eagerly.
func (p RangeParams) Validate() error {
	if p.ATRPeriod <= 0 {
		return fmt.Errorf("atr_period %d must be positive", p.ATRPeriod)
	}
	if p.ATRMultiplier <= 0 {
		return fmt.Errorf("atr_multiplier %v must be positive", p.ATRMultiplier)
	}
	return nil
}

// DefaultRangeParams is the built-in last-resort parameter set.
func DefaultRangeParams() RangeParams {
	return RangeParams{ATRPeriod: 14, ATRMultiplier: 1.5}
}

// BreakoutParams control breakout confirmation.
type BreakoutParams struct {
	BreakoutThresholdPercentage float64 `json:"breakout_threshold_percentage" validate:"gt=0"`
	MaxCandlesToReturn          int     `json:"max_candles_to_return" validate:"gt=0"`
}

// Validate rejects out-of-range breakout parameters eagerly.
func (p BreakoutParams) Validate() error {
	if p.BreakoutThresholdPercentage <= 0 {
		return fmt.Errorf("breakout_threshold_percentage %v must be positive", p.BreakoutThresholdPercentage)
	}
	if p.MaxCandlesToReturn <= 0 {
		return fmt.Errorf("max_candles_to_return %d must be positive", p.MaxCandlesToReturn)
	}
	return nil
}

// DefaultBreakoutParams is the built-in last-resort parameter set.
func DefaultBreakoutParams() BreakoutParams {
	return BreakoutParams{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 3}
}

package pipeline

import (
	"RangePulse/internal/domain/models"
)

// KeyCandleDetector flags bars that combine abnormally high volume with an
// abnormally small body relative to their high-low range. Such bars mark
// candidate shakeout/reversal zones.
type KeyCandleDetector struct{}

// NewKeyCandleDetector creates a detector. The detector is stateless; a
// single instance is safe for concurrent use.
func NewKeyCandleDetector() *KeyCandleDetector {
	return &KeyCandleDetector{}
}

// Detect evaluates the bar at index against params. Insufficient lookback
// history is a defined "not key" outcome, never an error. The volume
// percentile is computed over the trailing window excluding the current bar.
func (d *KeyCandleDetector) Detect(series *models.Series, index int, params models.DetectionParams) (bool, models.DetectionResult) {
	lookback := params.LookbackCandles

	if index < lookback || index >= series.Len() {
		return false, models.DetectionResult{Index: index}
	}

	window := series.Volumes(index-lookback, index)
	volumePercentile := percentile(window, params.VolumePercentileThreshold)

	cur := series.At(index)
	body := cur.Body()
	barRange := cur.Range()

	isHighVolume := cur.Volume > volumePercentile

	// A zero-range bar can never qualify: no division by zero and no false
	// positives on degenerate candles.
	isSmallBody := false
	if barRange > 0 {
		isSmallBody = body/barRange*100 < params.BodyPercentageThreshold
	}

	isKey := isHighVolume && isSmallBody

	return isKey, models.DetectionResult{
		Index:            index,
		CurrentVolume:    cur.Volume,
		CurrentBodySize:  body,
		CurrentRange:     barRange,
		VolumePercentile: volumePercentile,
		IsKeyCandle:      isKey,
	}
}

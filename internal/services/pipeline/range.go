package pipeline

import (
	"context"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	domsvc "RangePulse/internal/domain/service"
	applogger "RangePulse/pkg/logger"
)

// RangeCalculator derives a symmetric volatility band around a key candle:
// the bar's high-low midpoint plus/minus a multiple of ATR.
//
// An external ATRSource may supply the ATR value; on any failure the local
// computation takes over transparently with identical semantics.
type RangeCalculator struct {
	atrSource domsvc.ATRSource
	symbol    string
	tf        domrepo.Timeframe
	logger    *applogger.Logger
	metrics   domrepo.Metrics
}

// RangeCalculatorOption configures RangeCalculator.
type RangeCalculatorOption func(*RangeCalculator)

// WithATRSource plugs in an external ATR provider for the given symbol and
// timeframe. Without this option the calculator is fully local and
// deterministic.
func WithATRSource(src domsvc.ATRSource, symbol string, tf domrepo.Timeframe) RangeCalculatorOption {
	return func(rc *RangeCalculator) {
		rc.atrSource = src
		rc.symbol = symbol
		rc.tf = tf
	}
}

// WithRangeLogger injects a structured logger.
func WithRangeLogger(l *applogger.Logger) RangeCalculatorOption {
	return func(rc *RangeCalculator) {
		rc.logger = l
	}
}

// WithRangeMetrics injects a metrics recorder.
func WithRangeMetrics(m domrepo.Metrics) RangeCalculatorOption {
	return func(rc *RangeCalculator) {
		rc.metrics = m
	}
}

// NewRangeCalculator creates a range calculator.
func NewRangeCalculator(opts ...RangeCalculatorOption) *RangeCalculator {
	rc := &RangeCalculator{}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Calculate computes the band anchored at index. Fully deterministic when
// no external ATR source is configured.
func (rc *RangeCalculator) Calculate(ctx context.Context, series *models.Series, index int, params models.RangeParams) models.RangeResult {
	atrValue := rc.resolveATR(ctx, series, index, params)

	cur := series.At(index)
	reference := (cur.High + cur.Low) / 2
	margin := params.ATRMultiplier * atrValue

	return models.RangeResult{
		AnchorIndex:    index,
		ReferencePrice: reference,
		ATRValue:       atrValue,
		UpperLimit:     reference + margin,
		LowerLimit:     reference - margin,
	}
}

func (rc *RangeCalculator) resolveATR(ctx context.Context, series *models.Series, index int, params models.RangeParams) float64 {
	if rc.atrSource != nil {
		v, err := rc.atrSource.ATR(ctx, rc.symbol, params.ATRPeriod, rc.tf)
		if err == nil && v > 0 {
			return v
		}
		if rc.logger != nil {
			rc.logger.Warn("atr service unavailable, using local computation",
				applogger.String("symbol", rc.symbol),
				applogger.Int("period", params.ATRPeriod),
				applogger.Error(err),
			)
		}
		if rc.metrics != nil {
			rc.metrics.RecordATRFallback()
		}
	}
	return LocalATR(series, index, params.ATRPeriod)
}

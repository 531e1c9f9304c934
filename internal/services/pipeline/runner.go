package pipeline

import (
	"context"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	applogger "RangePulse/pkg/logger"
)

// forwardScanBars is how many bars after a key candle are checked for the
// first breakout.
const forwardScanBars = 10

// PipelineParams bundles the per-stage parameter sets for one scan.
type PipelineParams struct {
	Detection models.DetectionParams
	Range     models.RangeParams
	Breakout  models.BreakoutParams
}

// PipelineRunner chains detection, range computation, and breakout
// confirmation over a candle series in a single forward pass.
type PipelineRunner struct {
	detector  *KeyCandleDetector
	rangeCalc *RangeCalculator
	breakout  *BreakoutEvaluator
	logger    *applogger.Logger
	metrics   domrepo.Metrics
}

// PipelineRunnerOption customizes a PipelineRunner.
type PipelineRunnerOption func(*PipelineRunner)

// WithRunnerLogger attaches a logger for per-signal diagnostics.
func WithRunnerLogger(l *applogger.Logger) PipelineRunnerOption {
	return func(r *PipelineRunner) {
		r.logger = l
	}
}

// WithRunnerMetrics attaches a metrics recorder.
func WithRunnerMetrics(m domrepo.Metrics) PipelineRunnerOption {
	return func(r *PipelineRunner) {
		r.metrics = m
	}
}

// NewPipelineRunner wires the three stages together. The range calculator is
// injected so callers control its ATR source.
func NewPipelineRunner(rangeCalc *RangeCalculator, opts ...PipelineRunnerOption) *PipelineRunner {
	r := &PipelineRunner{
		detector:  NewKeyCandleDetector(),
		rangeCalc: rangeCalc,
		breakout:  NewBreakoutEvaluator(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scans the series once and returns every key candle whose band was
// broken within the forward window. The scan starts where both the volume
// lookback and the ATR period have full history. For each key candle the
// first non-none breakout verdict ends the forward scan for that anchor;
// anchors with no breakout at all produce no signal.
func (r *PipelineRunner) Run(ctx context.Context, symbol string, series *models.Series, params PipelineParams) ([]models.Signal, error) {
	start := params.Detection.LookbackCandles
	if params.Range.ATRPeriod > start {
		start = params.Range.ATRPeriod
	}

	signals := make([]models.Signal, 0)
	scanned := 0

	for i := start; i < series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return signals, err
		}
		scanned++

		isKey, detection := r.detector.Detect(series, i, params.Detection)
		if !isKey {
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordKeyCandle(symbol)
		}

		rng := r.rangeCalc.Calculate(ctx, series, i, params.Range)

		var breakouts []models.BreakoutResult
		for j := 1; j <= forwardScanBars; j++ {
			candidate := i + j
			if candidate+params.Breakout.MaxCandlesToReturn >= series.Len() {
				continue
			}
			_, result := r.breakout.Evaluate(series, candidate, rng, params.Breakout)
			if result.Direction == models.DirectionNone {
				continue
			}
			breakouts = append(breakouts, result)
			break
		}

		if len(breakouts) == 0 {
			continue
		}

		signal := models.Signal{
			Symbol:    symbol,
			Timestamp: series.At(i).Timestamp,
			Detection: detection,
			Range:     rng,
			Breakouts: breakouts,
		}
		signals = append(signals, signal)

		if r.metrics != nil {
			r.metrics.RecordSignal(symbol, string(breakouts[0].Direction))
		}
		if r.logger != nil {
			r.logger.Debug("signal confirmed",
				applogger.String("symbol", symbol),
				applogger.Int("anchor_index", i),
				applogger.String("direction", string(breakouts[0].Direction)),
				applogger.Bool("valid", breakouts[0].IsValid),
			)
		}
	}

	if r.metrics != nil {
		r.metrics.RecordCandlesScanned(symbol, scanned)
	}

	return signals, nil
}

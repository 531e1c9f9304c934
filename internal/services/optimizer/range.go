package optimizer

import (
	"context"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/services/pipeline"
	applogger "RangePulse/pkg/logger"
)

// Range selection targets: the band should hold most of the following bars
// without being so wide it holds everything.
const (
	rangeCoverageTarget  = 70.0
	rangeCoverageLow     = 60.0
	rangeCoverageHigh    = 80.0
	rangeCoverageHorizon = 10
)

// RangeReport is the scored outcome of one range parameter set.
type RangeReport struct {
	GridIndex     int                `json:"grid_index"`
	Params        models.RangeParams `json:"params"`
	AvgCoverage   float64            `json:"avg_coverage"`
	NumKeyCandles int                `json:"num_key_candles"`
}

// RangeOptimizer grid-searches ATR band parameters against the key candles
// found by a prior detection pass. Scoring is fully local so every
// candidate sees identical ATR inputs.
type RangeOptimizer struct {
	cfg       config
	rangeCalc *pipeline.RangeCalculator
}

// NewRangeOptimizer creates a range grid searcher.
func NewRangeOptimizer(opts ...Option) *RangeOptimizer {
	return &RangeOptimizer{
		cfg:       newConfig(opts...),
		rangeCalc: pipeline.NewRangeCalculator(),
	}
}

// coverage scores how well the band anchored at idx holds the following
// bars: a bar fully inside counts 1, a bar straddling a boundary counts
// 0.5. The horizon shrinks at the series tail.
func (o *RangeOptimizer) coverage(series *models.Series, idx int, rng models.RangeResult) (float64, bool) {
	horizon := series.Len() - idx - 1
	if horizon > rangeCoverageHorizon {
		horizon = rangeCoverageHorizon
	}
	if horizon <= 0 {
		return 0, false
	}

	var inRange float64
	for i := 1; i <= horizon; i++ {
		bar := series.At(idx + i)
		switch {
		case bar.Low >= rng.LowerLimit && bar.High <= rng.UpperLimit:
			inRange++
		case bar.Low < rng.LowerLimit && bar.High > rng.LowerLimit,
			bar.High > rng.UpperLimit && bar.Low < rng.UpperLimit:
			inRange += 0.5
		}
	}
	return inRange / float64(horizon) * 100, true
}

// Optimize evaluates up to maxParams grid combinations over the given key
// candle indices and returns the winner plus every scored report in grid
// order. Selection prefers coverage in the preferred band closest to the
// target, then overall closest to the target; ties go to the earlier grid
// entry.
func (o *RangeOptimizer) Optimize(ctx context.Context, series *models.Series, keyIndices []int, maxParams int) (*RangeReport, []RangeReport, error) {
	grid := RangeGrid(maxParams)
	reports := make([]RangeReport, len(grid))
	scored := make([]bool, len(grid))

	err := o.cfg.forEachCandidate(ctx, len(grid), func(i int) {
		params := grid[i]

		var coverages []float64
		for _, idx := range keyIndices {
			if idx < params.ATRPeriod {
				continue
			}
			rng := o.rangeCalc.Calculate(ctx, series, idx, params)
			if c, ok := o.coverage(series, idx, rng); ok {
				coverages = append(coverages, c)
			}
		}
		if o.cfg.metrics != nil {
			o.cfg.metrics.RecordGridEvaluation(string(domrepo.StageRange))
		}
		if len(coverages) == 0 {
			return
		}

		var sum float64
		for _, c := range coverages {
			sum += c
		}
		reports[i] = RangeReport{
			GridIndex:     i,
			Params:        params,
			AvgCoverage:   sum / float64(len(coverages)),
			NumKeyCandles: len(coverages),
		}
		scored[i] = true
	})
	if err != nil {
		return nil, nil, err
	}

	scores := make([]float64, len(grid))
	var all, inBand []int
	for i := range reports {
		if !scored[i] {
			continue
		}
		scores[i] = reports[i].AvgCoverage
		all = append(all, i)
		if scores[i] >= rangeCoverageLow && scores[i] <= rangeCoverageHigh {
			inBand = append(inBand, i)
		}
	}
	if len(all) == 0 {
		return nil, nil, ErrNoCandidates
	}

	pool := inBand
	if len(pool) == 0 {
		pool = all
	}
	winner := closestTo(rangeCoverageTarget, scores, pool)

	results := make([]RangeReport, 0, len(all))
	for _, i := range all {
		results = append(results, reports[i])
	}

	if o.cfg.logger != nil {
		o.cfg.logger.Info("range grid search finished",
			applogger.Int("candidates", len(results)),
			applogger.Int("winner_grid_index", winner),
			applogger.Float64("winner_coverage", reports[winner].AvgCoverage),
		)
	}

	best := reports[winner]
	return &best, results, nil
}

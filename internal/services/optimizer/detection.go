package optimizer

import (
	"context"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/services/pipeline"
	applogger "RangePulse/pkg/logger"
)

// Detection selection targets: the share of bars flagged as key should sit
// in the preferred band, ideally at the target prevalence.
const (
	detectionPrevalenceTarget = 10.0
	detectionPrevalenceLow    = 5.0
	detectionPrevalenceHigh   = 15.0
)

// DetectionReport is the scored outcome of one detection parameter set.
type DetectionReport struct {
	GridIndex      int                    `json:"grid_index"`
	Params         models.DetectionParams `json:"params"`
	KeyCandleCount int                    `json:"key_candle_count"`
	ValidCandles   int                    `json:"valid_candles"`
	Prevalence     float64                `json:"prevalence"`
}

// DetectionOptimizer grid-searches detection parameters against a candle
// series. It is pure computation; persistence of candidates and activation
// of the winner happen elsewhere.
type DetectionOptimizer struct {
	cfg      config
	detector *pipeline.KeyCandleDetector
}

// NewDetectionOptimizer creates a detection grid searcher.
func NewDetectionOptimizer(opts ...Option) *DetectionOptimizer {
	return &DetectionOptimizer{
		cfg:      newConfig(opts...),
		detector: pipeline.NewKeyCandleDetector(),
	}
}

// Optimize evaluates up to maxParams grid combinations and returns the
// winner plus every scored report in grid order. The winner is the
// candidate whose prevalence falls in the preferred band closest to the
// target; without any in-band candidate, the one closest to the target
// overall. Equal distances resolve to the earlier grid entry.
func (o *DetectionOptimizer) Optimize(ctx context.Context, series *models.Series, maxParams int) (*DetectionReport, []DetectionReport, error) {
	grid := DetectionGrid(maxParams)
	reports := make([]DetectionReport, len(grid))
	scored := make([]bool, len(grid))

	err := o.cfg.forEachCandidate(ctx, len(grid), func(i int) {
		params := grid[i]

		keyCount := 0
		validCandles := 0
		for idx := params.LookbackCandles; idx < series.Len(); idx++ {
			isKey, _ := o.detector.Detect(series, idx, params)
			if isKey {
				keyCount++
			}
			validCandles++
		}
		if o.cfg.metrics != nil {
			o.cfg.metrics.RecordGridEvaluation(string(domrepo.StageDetection))
		}
		if validCandles == 0 {
			return
		}

		reports[i] = DetectionReport{
			GridIndex:      i,
			Params:         params,
			KeyCandleCount: keyCount,
			ValidCandles:   validCandles,
			Prevalence:     float64(keyCount) / float64(validCandles) * 100,
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
		scores[i] = reports[i].Prevalence
		all = append(all, i)
		if scores[i] >= detectionPrevalenceLow && scores[i] <= detectionPrevalenceHigh {
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
	winner := closestTo(detectionPrevalenceTarget, scores, pool)

	results := make([]DetectionReport, 0, len(all))
	for _, i := range all {
		results = append(results, reports[i])
	}

	if o.cfg.logger != nil {
		o.cfg.logger.Info("detection grid search finished",
			applogger.Int("candidates", len(results)),
			applogger.Int("winner_grid_index", winner),
			applogger.Float64("winner_prevalence", reports[winner].Prevalence),
		)
	}

	best := reports[winner]
	return &best, results, nil
}

package optimizer

import (
	"context"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/services/pipeline"
	applogger "RangePulse/pkg/logger"
)

const (
	breakoutValidWeight  = 0.4
	breakoutProfitWeight = 0.6
	breakoutScanBars     = 10
	breakoutProfitBars   = 5
)

// BreakoutReport is the scored outcome of one breakout parameter set.
type BreakoutReport struct {
	GridIndex        int                   `json:"grid_index"`
	Params           models.BreakoutParams `json:"params"`
	TotalBreakouts   int                   `json:"total_breakouts"`
	ValidBreakouts   int                   `json:"valid_breakouts"`
	ProfitableTrades int                   `json:"profitable_trades"`
	ValidRatio       float64               `json:"valid_ratio"`
	ProfitRatio      float64               `json:"profit_ratio"`
	CombinedScore    float64               `json:"combined_score"`
}

// BreakoutOptimizer grid-searches breakout confirmation parameters against
// precomputed bands. Candidates that never see a breakout are unscorable
// and drop out.
type BreakoutOptimizer struct {
	cfg       config
	evaluator *pipeline.BreakoutEvaluator
}

// NewBreakoutOptimizer creates a breakout grid searcher.
func NewBreakoutOptimizer(opts ...Option) *BreakoutOptimizer {
	return &BreakoutOptimizer{
		cfg:       newConfig(opts...),
		evaluator: pipeline.NewBreakoutEvaluator(),
	}
}

// score walks every band and scores the first breakout after each anchor,
// mirroring how the live pipeline consumes bands.
func (o *BreakoutOptimizer) score(series *models.Series, ranges []models.RangeResult, params models.BreakoutParams) (total, valid, profitable int) {
	for _, rng := range ranges {
		for i := 1; i <= breakoutScanBars; i++ {
			idx := rng.AnchorIndex + i
			if idx+params.MaxCandlesToReturn >= series.Len() {
				continue
			}

			isValid, result := o.evaluator.Evaluate(series, idx, rng, params)
			if result.Direction == models.DirectionNone {
				continue
			}

			total++
			if isValid {
				valid++

				entry := series.At(idx).Close
				exitIdx := idx + breakoutProfitBars
				if exitIdx > series.Len()-1 {
					exitIdx = series.Len() - 1
				}
				exit := series.At(exitIdx).Close

				if (result.Direction == models.DirectionBullish && exit > entry) ||
					(result.Direction == models.DirectionBearish && exit < entry) {
					profitable++
				}
			}
			break
		}
	}
	return total, valid, profitable
}

// Optimize evaluates up to maxParams grid combinations against the given
// bands and returns the highest combined score plus every scored report in
// grid order. The combined score weighs the share of breakouts that held
// against the share of held breakouts that moved on favorably. Ties go to
// the earlier grid entry.
func (o *BreakoutOptimizer) Optimize(ctx context.Context, series *models.Series, ranges []models.RangeResult, maxParams int) (*BreakoutReport, []BreakoutReport, error) {
	grid := BreakoutGrid(maxParams)
	reports := make([]BreakoutReport, len(grid))
	scored := make([]bool, len(grid))

	err := o.cfg.forEachCandidate(ctx, len(grid), func(i int) {
		params := grid[i]
		total, valid, profitable := o.score(series, ranges, params)

		if o.cfg.metrics != nil {
			o.cfg.metrics.RecordGridEvaluation(string(domrepo.StageBreakout))
		}
		if total == 0 {
			return
		}

		validRatio := float64(valid) / float64(total) * 100
		profitRatio := 0.0
		if valid > 0 {
			profitRatio = float64(profitable) / float64(valid) * 100
		}

		reports[i] = BreakoutReport{
			GridIndex:        i,
			Params:           params,
			TotalBreakouts:   total,
			ValidBreakouts:   valid,
			ProfitableTrades: profitable,
			ValidRatio:       validRatio,
			ProfitRatio:      profitRatio,
			CombinedScore:    breakoutValidWeight*validRatio + breakoutProfitWeight*profitRatio,
		}
		scored[i] = true
	})
	if err != nil {
		return nil, nil, err
	}

	winner := -1
	results := make([]BreakoutReport, 0, len(grid))
	for i := range reports {
		if !scored[i] {
			continue
		}
		results = append(results, reports[i])
		if winner == -1 || reports[i].CombinedScore > reports[winner].CombinedScore {
			winner = i
		}
	}
	if winner == -1 {
		return nil, nil, ErrNoCandidates
	}

	if o.cfg.logger != nil {
		o.cfg.logger.Info("breakout grid search finished",
			applogger.Int("candidates", len(results)),
			applogger.Int("winner_grid_index", winner),
			applogger.Float64("winner_score", reports[winner].CombinedScore),
		)
	}

	best := reports[winner]
	return &best, results, nil
}

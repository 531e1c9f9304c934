package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/services/optimizer"
	"RangePulse/internal/services/pipeline"
	applogger "RangePulse/pkg/logger"
)

// StageAll requests optimization of every stage in pipeline order.
const StageAll = "all"

// OptimizeUseCase runs grid searches and persists their outcomes. The grid
// search itself is pure; this layer owns storage and activation. Runs are
// serialized through the job queue, so there is a single writer on the
// active-parameter rows.
type OptimizeUseCase struct {
	candles domrepo.CandleStore
	store   domrepo.ParamStore
	params  *ParamsUseCase
	workers int
	logger  *applogger.Logger
	metrics domrepo.Metrics
}

func NewOptimizeUseCase(candles domrepo.CandleStore, store domrepo.ParamStore, params *ParamsUseCase, workers int, logger *applogger.Logger, metrics domrepo.Metrics) *OptimizeUseCase {
	return &OptimizeUseCase{
		candles: candles,
		store:   store,
		params:  params,
		workers: workers,
		logger:  logger,
		metrics: metrics,
	}
}

// StageOutcome reports one stage's grid search and persistence result.
type StageOutcome struct {
	Stage      domrepo.Stage   `json:"stage"`
	Candidates int             `json:"candidates"`
	BestScore  float64         `json:"best_score"`
	BestParams json.RawMessage `json:"best_params"`
	Persisted  bool            `json:"persisted"`
	Activated  bool            `json:"activated"`
	// PersistError is set when the search succeeded but saving or
	// activating its outcome did not.
	PersistError string `json:"persist_error,omitempty"`
}

// OptimizeResult is the outcome of one optimization run.
type OptimizeResult struct {
	Symbol      string         `json:"symbol"`
	Timeframe   string         `json:"timeframe"`
	CandleCount int            `json:"candle_count"`
	Stages      []StageOutcome `json:"stages"`
}

// Run executes the requested grid searches. With stage "all" the stages
// run in pipeline order and each later stage sees the parameters the
// earlier one just activated.
func (uc *OptimizeUseCase) Run(ctx context.Context, req models.OptimizeRequest) (*OptimizeResult, error) {
	start := time.Now()
	tf := domrepo.NormalizeTimeframe(req.TF)

	candles, err := uc.candles.GetLatestNCandles(ctx, req.Symbol, req.N, tf)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	series, err := models.NewSeries(candles)
	if err != nil {
		return nil, fmt.Errorf("series for %s: %w", req.Symbol, err)
	}

	result := &OptimizeResult{
		Symbol:      req.Symbol,
		Timeframe:   string(tf),
		CandleCount: series.Len(),
	}

	stages := []domrepo.Stage{domrepo.Stage(req.Stage)}
	if req.Stage == StageAll || req.Stage == "" {
		stages = []domrepo.Stage{domrepo.StageDetection, domrepo.StageRange, domrepo.StageBreakout}
	}

	for _, stage := range stages {
		outcome, err := uc.runStage(ctx, stage, series, req.MaxParams)
		if err != nil {
			return nil, fmt.Errorf("optimize %s: %w", stage, err)
		}
		result.Stages = append(result.Stages, *outcome)
	}

	uc.metrics.RecordLatency("optimize_run", time.Since(start).Seconds())
	uc.logger.Info("optimization run finished",
		applogger.String("symbol", req.Symbol),
		applogger.String("stage", req.Stage),
		applogger.Int("candles", series.Len()),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (uc *OptimizeUseCase) runStage(ctx context.Context, stage domrepo.Stage, series *models.Series, maxParams int) (*StageOutcome, error) {
	switch stage {
	case domrepo.StageDetection:
		return uc.runDetection(ctx, series, maxParams)
	case domrepo.StageRange:
		return uc.runRange(ctx, series, maxParams)
	case domrepo.StageBreakout:
		return uc.runBreakout(ctx, series, maxParams)
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

func (uc *OptimizeUseCase) runDetection(ctx context.Context, series *models.Series, maxParams int) (*StageOutcome, error) {
	opt := optimizer.NewDetectionOptimizer(
		optimizer.WithWorkers(uc.workers),
		optimizer.WithLogger(uc.logger),
		optimizer.WithMetrics(uc.metrics),
	)
	best, reports, err := opt.Optimize(ctx, series, maxParams)
	if err != nil {
		return nil, err
	}

	candidates := make([]scoredCandidate, 0, len(reports))
	for _, r := range reports {
		candidates = append(candidates, scoredCandidate{
			params:   r.Params,
			score:    r.Prevalence,
			isWinner: r.GridIndex == best.GridIndex,
		})
	}
	return uc.persistStage(ctx, domrepo.StageDetection, best.Params, best.Prevalence, candidates)
}

func (uc *OptimizeUseCase) runRange(ctx context.Context, series *models.Series, maxParams int) (*StageOutcome, error) {
	keyIndices, err := uc.findKeyCandles(ctx, series)
	if err != nil {
		return nil, err
	}
	if len(keyIndices) == 0 {
		return nil, fmt.Errorf("no key candles to anchor ranges: %w", optimizer.ErrNoCandidates)
	}

	opt := optimizer.NewRangeOptimizer(
		optimizer.WithWorkers(uc.workers),
		optimizer.WithLogger(uc.logger),
		optimizer.WithMetrics(uc.metrics),
	)
	best, reports, err := opt.Optimize(ctx, series, keyIndices, maxParams)
	if err != nil {
		return nil, err
	}

	candidates := make([]scoredCandidate, 0, len(reports))
	for _, r := range reports {
		candidates = append(candidates, scoredCandidate{
			params:   r.Params,
			score:    r.AvgCoverage,
			isWinner: r.GridIndex == best.GridIndex,
		})
	}
	return uc.persistStage(ctx, domrepo.StageRange, best.Params, best.AvgCoverage, candidates)
}

func (uc *OptimizeUseCase) runBreakout(ctx context.Context, series *models.Series, maxParams int) (*StageOutcome, error) {
	ranges, err := uc.computeRanges(ctx, series)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no ranges to evaluate breakouts: %w", optimizer.ErrNoCandidates)
	}

	opt := optimizer.NewBreakoutOptimizer(
		optimizer.WithWorkers(uc.workers),
		optimizer.WithLogger(uc.logger),
		optimizer.WithMetrics(uc.metrics),
	)
	best, reports, err := opt.Optimize(ctx, series, ranges, maxParams)
	if err != nil {
		return nil, err
	}

	candidates := make([]scoredCandidate, 0, len(reports))
	for _, r := range reports {
		candidates = append(candidates, scoredCandidate{
			params:   r.Params,
			score:    r.CombinedScore,
			isWinner: r.GridIndex == best.GridIndex,
		})
	}
	return uc.persistStage(ctx, domrepo.StageBreakout, best.Params, best.CombinedScore, candidates)
}

// findKeyCandles runs detection with the currently effective parameters.
func (uc *OptimizeUseCase) findKeyCandles(ctx context.Context, series *models.Series) ([]int, error) {
	params, _, err := uc.params.ResolveDetection(ctx)
	if err != nil {
		return nil, err
	}
	detector := pipeline.NewKeyCandleDetector()
	var indices []int
	for i := params.LookbackCandles; i < series.Len(); i++ {
		if isKey, _ := detector.Detect(series, i, params); isKey {
			indices = append(indices, i)
		}
	}
	return indices, nil
}

// computeRanges builds local bands at every key candle with the currently
// effective range parameters.
func (uc *OptimizeUseCase) computeRanges(ctx context.Context, series *models.Series) ([]models.RangeResult, error) {
	keyIndices, err := uc.findKeyCandles(ctx, series)
	if err != nil {
		return nil, err
	}
	params, _, err := uc.params.ResolveRange(ctx)
	if err != nil {
		return nil, err
	}

	rangeCalc := pipeline.NewRangeCalculator()
	ranges := make([]models.RangeResult, 0, len(keyIndices))
	for _, idx := range keyIndices {
		if idx < params.ATRPeriod {
			continue
		}
		ranges = append(ranges, rangeCalc.Calculate(ctx, series, idx, params))
	}
	return ranges, nil
}

type scoredCandidate struct {
	params   interface{}
	score    float64
	isWinner bool
}

// persistStage saves every scored candidate and activates the winner.
// Storage trouble does not fail the run; the outcome reports it so the
// caller can tell a computed-but-unsaved result from a saved one.
func (uc *OptimizeUseCase) persistStage(ctx context.Context, stage domrepo.Stage, bestParams interface{}, bestScore float64, candidates []scoredCandidate) (*StageOutcome, error) {
	doc, err := json.Marshal(bestParams)
	if err != nil {
		return nil, fmt.Errorf("marshal winner: %w", err)
	}
	outcome := &StageOutcome{
		Stage:      stage,
		Candidates: len(candidates),
		BestScore:  bestScore,
		BestParams: doc,
	}

	var winnerID int64
	for _, c := range candidates {
		id, err := uc.store.Insert(ctx, stage, c.params)
		if err != nil {
			uc.recordPersistError(outcome, stage, "insert candidate", err)
			return outcome, nil
		}
		if err := uc.store.UpdateScore(ctx, stage, id, c.score); err != nil {
			uc.recordPersistError(outcome, stage, "update score", err)
			return outcome, nil
		}
		if c.isWinner {
			winnerID = id
		}
	}
	outcome.Persisted = true

	if winnerID == 0 {
		uc.recordPersistError(outcome, stage, "activate", fmt.Errorf("winner not among persisted candidates"))
		return outcome, nil
	}
	if err := uc.store.SetActive(ctx, stage, winnerID); err != nil {
		uc.recordPersistError(outcome, stage, "activate", err)
		return outcome, nil
	}
	outcome.Activated = true
	uc.params.Invalidate(ctx, stage)

	uc.logger.Info("stage parameters activated",
		applogger.String("stage", string(stage)),
		applogger.Int64("param_id", winnerID),
		applogger.Float64("score", bestScore),
	)
	return outcome, nil
}

func (uc *OptimizeUseCase) recordPersistError(outcome *StageOutcome, stage domrepo.Stage, op string, err error) {
	outcome.PersistError = fmt.Sprintf("%s: %v", op, err)
	uc.metrics.RecordError("param_persist")
	uc.logger.Error("optimization result not persisted",
		applogger.String("stage", string(stage)),
		applogger.String("op", op),
		applogger.Error(err),
	)
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	domsvc "RangePulse/internal/domain/service"
	"RangePulse/internal/services/pipeline"
	applogger "RangePulse/pkg/logger"
)

const atrResponseWindow = 100

// ScanUseCase runs the detection, range, and breakout pipeline over stored
// candles.
type ScanUseCase struct {
	candles   domrepo.CandleStore
	params    *ParamsUseCase
	atrSource domsvc.ATRSource
	publisher domrepo.SignalPublisher
	logger    *applogger.Logger
	metrics   domrepo.Metrics
}

// ScanOption configures ScanUseCase.
type ScanOption func(*ScanUseCase)

// WithATRSource plugs in the external indicator service.
func WithATRSource(src domsvc.ATRSource) ScanOption {
	return func(uc *ScanUseCase) {
		uc.atrSource = src
	}
}

// WithSignalPublisher enables publishing confirmed signals downstream.
func WithSignalPublisher(p domrepo.SignalPublisher) ScanOption {
	return func(uc *ScanUseCase) {
		uc.publisher = p
	}
}

func NewScanUseCase(candles domrepo.CandleStore, params *ParamsUseCase, logger *applogger.Logger, metrics domrepo.Metrics, opts ...ScanOption) *ScanUseCase {
	uc := &ScanUseCase{
		candles: candles,
		params:  params,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ScanResult is a full pipeline pass over one symbol's recent candles.
type ScanResult struct {
	Symbol      string          `json:"symbol"`
	Timeframe   string          `json:"timeframe"`
	CandleCount int             `json:"candle_count"`
	Params      ScanParams      `json:"params"`
	Signals     []models.Signal `json:"signals"`
}

// ScanParams echoes the effective parameters and their provenance.
type ScanParams struct {
	Detection       models.DetectionParams `json:"detection"`
	DetectionSource ParamSource            `json:"detection_source"`
	Range           models.RangeParams     `json:"range"`
	RangeSource     ParamSource            `json:"range_source"`
	Breakout        models.BreakoutParams  `json:"breakout"`
	BreakoutSource  ParamSource            `json:"breakout_source"`
}

// GetSignals loads the latest candles and runs the full pipeline.
// Confirmed signals are additionally published when a publisher is wired;
// publish failures are logged, not returned.
func (uc *ScanUseCase) GetSignals(ctx context.Context, req models.SignalsRequest) (*ScanResult, error) {
	start := time.Now()
	tf := domrepo.NormalizeTimeframe(req.TF)

	series, err := uc.loadSeries(ctx, req.Symbol, req.N, tf)
	if err != nil {
		return nil, err
	}

	params, err := uc.resolveAll(ctx)
	if err != nil {
		return nil, err
	}

	rangeCalc := uc.newRangeCalculator(req.Symbol, tf)
	runner := pipeline.NewPipelineRunner(rangeCalc,
		pipeline.WithRunnerLogger(uc.logger),
		pipeline.WithRunnerMetrics(uc.metrics),
	)

	signals, err := runner.Run(ctx, req.Symbol, series, pipeline.PipelineParams{
		Detection: params.Detection,
		Range:     params.Range,
		Breakout:  params.Breakout,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline run: %w", err)
	}

	if uc.publisher != nil {
		for i := range signals {
			if err := uc.publisher.Publish(ctx, &signals[i]); err != nil {
				uc.metrics.RecordError("signal_publish")
				uc.logger.Error("publish signal",
					applogger.String("symbol", req.Symbol),
					applogger.Error(err),
				)
			}
		}
	}

	uc.metrics.RecordLatency("scan_signals", time.Since(start).Seconds())
	return &ScanResult{
		Symbol:      req.Symbol,
		Timeframe:   string(tf),
		CandleCount: series.Len(),
		Params:      *params,
		Signals:     signals,
	}, nil
}

// DetectResult lists the key candles of a detection-only pass.
type DetectResult struct {
	Symbol        string                   `json:"symbol"`
	Timeframe     string                   `json:"timeframe"`
	CandleCount   int                      `json:"candle_count"`
	Params        models.DetectionParams   `json:"params"`
	ParamSource   ParamSource              `json:"param_source"`
	KeyCandles    []models.DetectionResult `json:"key_candles"`
	PrevalencePct float64                  `json:"prevalence_pct"`
	EvaluatedBars int                      `json:"evaluated_bars"`
}

// Detect runs the first stage only.
func (uc *ScanUseCase) Detect(ctx context.Context, req models.DetectRequest) (*DetectResult, error) {
	tf := domrepo.NormalizeTimeframe(req.TF)
	series, err := uc.loadSeries(ctx, req.Symbol, req.N, tf)
	if err != nil {
		return nil, err
	}

	params, source, err := uc.params.ResolveDetection(ctx)
	if err != nil {
		return nil, err
	}

	detector := pipeline.NewKeyCandleDetector()
	keyCandles := make([]models.DetectionResult, 0)
	evaluated := 0
	for i := params.LookbackCandles; i < series.Len(); i++ {
		evaluated++
		if isKey, result := detector.Detect(series, i, params); isKey {
			keyCandles = append(keyCandles, result)
			uc.metrics.RecordKeyCandle(req.Symbol)
		}
	}
	uc.metrics.RecordCandlesScanned(req.Symbol, evaluated)

	prevalence := 0.0
	if evaluated > 0 {
		prevalence = float64(len(keyCandles)) / float64(evaluated) * 100
	}

	return &DetectResult{
		Symbol:        req.Symbol,
		Timeframe:     string(tf),
		CandleCount:   series.Len(),
		Params:        params,
		ParamSource:   source,
		KeyCandles:    keyCandles,
		PrevalencePct: prevalence,
		EvaluatedBars: evaluated,
	}, nil
}

// ATR computes rolling ATR over the latest candles, shaped like the
// external indicator service response.
func (uc *ScanUseCase) ATR(ctx context.Context, req models.ATRRequest) (*models.ATRResponse, error) {
	tf := domrepo.NormalizeTimeframe(req.TF)
	series, err := uc.loadSeries(ctx, req.Symbol, req.N, tf)
	if err != nil {
		return nil, err
	}

	values := pipeline.ATRSeries(series, req.Period)
	if len(values) > atrResponseWindow {
		values = values[len(values)-atrResponseWindow:]
	}

	resp := &models.ATRResponse{
		Symbol:    req.Symbol,
		Period:    req.Period,
		ATRValues: values,
	}
	if len(values) > 0 {
		current := values[len(values)-1]
		resp.ATRCurrent = &current
	}
	return resp, nil
}

func (uc *ScanUseCase) resolveAll(ctx context.Context) (*ScanParams, error) {
	detection, detectionSrc, err := uc.params.ResolveDetection(ctx)
	if err != nil {
		return nil, err
	}
	rng, rangeSrc, err := uc.params.ResolveRange(ctx)
	if err != nil {
		return nil, err
	}
	breakout, breakoutSrc, err := uc.params.ResolveBreakout(ctx)
	if err != nil {
		return nil, err
	}
	return &ScanParams{
		Detection:       detection,
		DetectionSource: detectionSrc,
		Range:           rng,
		RangeSource:     rangeSrc,
		Breakout:        breakout,
		BreakoutSource:  breakoutSrc,
	}, nil
}

func (uc *ScanUseCase) newRangeCalculator(symbol string, tf domrepo.Timeframe) *pipeline.RangeCalculator {
	opts := []pipeline.RangeCalculatorOption{
		pipeline.WithRangeLogger(uc.logger),
		pipeline.WithRangeMetrics(uc.metrics),
	}
	if uc.atrSource != nil {
		opts = append(opts, pipeline.WithATRSource(uc.atrSource, symbol, tf))
	}
	return pipeline.NewRangeCalculator(opts...)
}

func (uc *ScanUseCase) loadSeries(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) (*models.Series, error) {
	candles, err := uc.candles.GetLatestNCandles(ctx, symbol, n, tf)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s %s", symbol, tf)
	}
	series, err := models.NewSeries(candles)
	if err != nil {
		return nil, fmt.Errorf("series for %s: %w", symbol, err)
	}
	return series, nil
}

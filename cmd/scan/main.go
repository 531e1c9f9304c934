// Offline scanner: runs the pipeline or a grid search over a CSV tape,
// without ClickHouse, Postgres, or Kafka. Useful for parameter research on
// exported exchange data.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"RangePulse/internal/domain/models"
	"RangePulse/internal/repository"
	"RangePulse/internal/services/optimizer"
	"RangePulse/internal/services/pipeline"
)

func main() {
	var (
		csvPath   = flag.String("csv", "", "OHLCV CSV file (required)")
		symbol    = flag.String("symbol", "BTCUSDT", "symbol label for output")
		stage     = flag.String("stage", "", "optimize a stage (detection, range, breakout) instead of scanning")
		maxParams = flag.Int("max-params", optimizer.DefaultMaxParams, "grid size cap for optimization")
		workers   = flag.Int("workers", 4, "parallel grid evaluations")
	)
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	candles, err := repository.LoadCandlesCSV(*csvPath)
	if err != nil {
		log.Fatalf("load csv: %v", err)
	}
	series, err := models.NewSeries(candles)
	if err != nil {
		log.Fatalf("invalid tape: %v", err)
	}

	ctx := context.Background()
	var out interface{}
	if *stage != "" {
		out, err = optimize(ctx, series, *stage, *maxParams, *workers)
	} else {
		out, err = scan(ctx, *symbol, series)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

func scan(ctx context.Context, symbol string, series *models.Series) (interface{}, error) {
	runner := pipeline.NewPipelineRunner(pipeline.NewRangeCalculator())
	signals, err := runner.Run(ctx, symbol, series, pipeline.PipelineParams{
		Detection: models.DefaultDetectionParams(),
		Range:     models.DefaultRangeParams(),
		Breakout:  models.DefaultBreakoutParams(),
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return map[string]interface{}{
		"symbol":       symbol,
		"candle_count": series.Len(),
		"signals":      signals,
	}, nil
}

func optimize(ctx context.Context, series *models.Series, stage string, maxParams, workers int) (interface{}, error) {
	opts := []optimizer.Option{optimizer.WithWorkers(workers)}

	switch stage {
	case "detection":
		best, reports, err := optimizer.NewDetectionOptimizer(opts...).Optimize(ctx, series, maxParams)
		if err != nil {
			return nil, fmt.Errorf("optimize detection: %w", err)
		}
		return map[string]interface{}{"best": best, "candidates": reports}, nil

	case "range":
		keyIndices := findKeyCandles(series)
		best, reports, err := optimizer.NewRangeOptimizer(opts...).Optimize(ctx, series, keyIndices, maxParams)
		if err != nil {
			return nil, fmt.Errorf("optimize range: %w", err)
		}
		return map[string]interface{}{"best": best, "candidates": reports}, nil

	case "breakout":
		best, reports, err := optimizer.NewBreakoutOptimizer(opts...).Optimize(ctx, series, computeRanges(ctx, series), maxParams)
		if err != nil {
			return nil, fmt.Errorf("optimize breakout: %w", err)
		}
		return map[string]interface{}{"best": best, "candidates": reports}, nil

	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

func findKeyCandles(series *models.Series) []int {
	params := models.DefaultDetectionParams()
	detector := pipeline.NewKeyCandleDetector()
	var indices []int
	for i := params.LookbackCandles; i < series.Len(); i++ {
		if isKey, _ := detector.Detect(series, i, params); isKey {
			indices = append(indices, i)
		}
	}
	return indices
}

func computeRanges(ctx context.Context, series *models.Series) []models.RangeResult {
	params := models.DefaultRangeParams()
	rangeCalc := pipeline.NewRangeCalculator()
	var ranges []models.RangeResult
	for _, idx := range findKeyCandles(series) {
		if idx < params.ATRPeriod {
			continue
		}
		ranges = append(ranges, rangeCalc.Calculate(ctx, series, idx, params))
	}
	return ranges
}

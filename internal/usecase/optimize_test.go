package usecase

import (
	"context"
	"fmt"
	"testing"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
)

// spikeTape has a volume spike every tenth bar followed by a one-bar
// escape above the band, so every stage's grid search finds scorable
// candidates.
func spikeTape(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		switch {
		case i%10 == 9:
			candles[i] = flatBar(int64(i+1)*60000, 1000)
		case i%10 == 0 && i > 0:
			candles[i] = models.Candle{
				Timestamp: int64(i+1) * 60000,
				Open:      103, High: 105, Low: 102, Close: 104,
				Volume: 100,
			}
		default:
			candles[i] = flatBar(int64(i+1)*60000, 100)
		}
	}
	return candles
}

func newOptimizeUseCase(t *testing.T, candles domrepo.CandleStore, store domrepo.ParamStore) *OptimizeUseCase {
	t.Helper()
	params := newParamsUseCase(t, store)
	return NewOptimizeUseCase(candles, store, params, 4, testLogger(t), noopMetrics{})
}

func TestOptimizeDetectionStagePersistsAndActivates(t *testing.T) {
	store := newFakeParamStore()
	candles := &fakeCandleStore{candles: map[string][]models.Candle{
		"BTCUSDT": spikeTape(200),
	}}
	uc := newOptimizeUseCase(t, candles, store)

	result, err := uc.Run(context.Background(), models.OptimizeRequest{
		Symbol:    "BTCUSDT",
		Stage:     string(domrepo.StageDetection),
		N:         200,
		TF:        "5m",
		MaxParams: 10,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(result.Stages))
	}

	outcome := result.Stages[0]
	if outcome.Stage != domrepo.StageDetection {
		t.Fatalf("stage = %s", outcome.Stage)
	}
	if !outcome.Persisted || !outcome.Activated {
		t.Fatalf("outcome = %+v, want persisted and activated", outcome)
	}
	if outcome.Candidates == 0 || outcome.Candidates > 10 {
		t.Fatalf("candidates = %d, want within the cap", outcome.Candidates)
	}

	active, err := store.GetActive(context.Background(), domrepo.StageDetection)
	if err != nil {
		t.Fatalf("GetActive after run: %v", err)
	}
	if len(active.Params) == 0 {
		t.Fatal("active row has no params document")
	}
}

func TestOptimizeAllRunsStagesInOrder(t *testing.T) {
	store := newFakeParamStore()
	candles := &fakeCandleStore{candles: map[string][]models.Candle{
		"BTCUSDT": spikeTape(300),
	}}
	uc := newOptimizeUseCase(t, candles, store)

	result, err := uc.Run(context.Background(), models.OptimizeRequest{
		Symbol:    "BTCUSDT",
		Stage:     StageAll,
		N:         300,
		MaxParams: 10,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []domrepo.Stage{domrepo.StageDetection, domrepo.StageRange, domrepo.StageBreakout}
	if len(result.Stages) != len(want) {
		t.Fatalf("stages = %d, want %d", len(result.Stages), len(want))
	}
	for i, stage := range want {
		if result.Stages[i].Stage != stage {
			t.Fatalf("stage[%d] = %s, want %s", i, result.Stages[i].Stage, stage)
		}
		if !result.Stages[i].Activated {
			t.Fatalf("stage %s not activated: %+v", stage, result.Stages[i])
		}
	}
}

func TestOptimizeSurvivesStoreFailure(t *testing.T) {
	store := newFakeParamStore()
	store.fail = fmt.Errorf("connection refused")
	candles := &fakeCandleStore{candles: map[string][]models.Candle{
		"BTCUSDT": spikeTape(200),
	}}
	uc := newOptimizeUseCase(t, candles, store)

	result, err := uc.Run(context.Background(), models.OptimizeRequest{
		Symbol:    "BTCUSDT",
		Stage:     string(domrepo.StageDetection),
		N:         200,
		MaxParams: 10,
	})
	if err != nil {
		t.Fatalf("Run should tolerate persistence failure, got %v", err)
	}
	outcome := result.Stages[0]
	if outcome.Persisted || outcome.Activated {
		t.Fatalf("outcome = %+v, want neither persisted nor activated", outcome)
	}
	if outcome.PersistError == "" {
		t.Fatal("expected PersistError to be set")
	}
	if len(outcome.BestParams) == 0 {
		t.Fatal("best params should still be reported")
	}
}

func TestOptimizeUnknownStage(t *testing.T) {
	store := newFakeParamStore()
	candles := &fakeCandleStore{candles: map[string][]models.Candle{
		"BTCUSDT": spikeTape(200),
	}}
	uc := newOptimizeUseCase(t, candles, store)

	_, err := uc.Run(context.Background(), models.OptimizeRequest{
		Symbol: "BTCUSDT",
		Stage:  "bogus",
		N:      200,
	})
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

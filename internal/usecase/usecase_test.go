package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/service/cache"
	applogger "RangePulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type noopMetrics struct{}

func (noopMetrics) RecordCandlesScanned(string, int)  {}
func (noopMetrics) RecordCandlesIngested(string, int) {}
func (noopMetrics) RecordKeyCandle(string)            {}
func (noopMetrics) RecordSignal(string, string)       {}
func (noopMetrics) RecordGridEvaluation(string)       {}
func (noopMetrics) RecordError(string)                {}
func (noopMetrics) RecordATRFallback()                {}
func (noopMetrics) RecordLatency(string, float64)     {}

// fakeParamStore is an in-memory ParamStore with injectable failures.
type fakeParamStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[domrepo.Stage][]*domrepo.StoredParams
	fail   error
}

func newFakeParamStore() *fakeParamStore {
	return &fakeParamStore{rows: make(map[domrepo.Stage][]*domrepo.StoredParams)}
}

func (s *fakeParamStore) Insert(_ context.Context, stage domrepo.Stage, params interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	doc, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	s.nextID++
	s.rows[stage] = append(s.rows[stage], &domrepo.StoredParams{
		ID:        s.nextID,
		Stage:     stage,
		Params:    doc,
		CreatedAt: time.Now(),
	})
	return s.nextID, nil
}

func (s *fakeParamStore) GetActive(_ context.Context, stage domrepo.Stage) (*domrepo.StoredParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	for _, row := range s.rows[stage] {
		if row.IsActive {
			return row, nil
		}
	}
	return nil, domrepo.ErrNoParams
}

func (s *fakeParamStore) BestByScore(_ context.Context, stage domrepo.Stage) (*domrepo.StoredParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	var best *domrepo.StoredParams
	for _, row := range s.rows[stage] {
		if best == nil || row.Score > best.Score {
			best = row
		}
	}
	if best == nil {
		return nil, domrepo.ErrNoParams
	}
	return best, nil
}

func (s *fakeParamStore) SetActive(_ context.Context, stage domrepo.Stage, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	var target *domrepo.StoredParams
	for _, row := range s.rows[stage] {
		if row.ID == id {
			target = row
		}
	}
	if target == nil {
		return domrepo.ErrNoParams
	}
	for _, row := range s.rows[stage] {
		row.IsActive = false
	}
	target.IsActive = true
	return nil
}

func (s *fakeParamStore) UpdateScore(_ context.Context, stage domrepo.Stage, id int64, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	for _, row := range s.rows[stage] {
		if row.ID == id {
			row.Score = score
			return nil
		}
	}
	return domrepo.ErrNoParams
}

// fakeCandleStore serves one preloaded tape per symbol.
type fakeCandleStore struct {
	mu      sync.Mutex
	candles map[string][]models.Candle
	err     error
}

func (s *fakeCandleStore) GetCandles(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Candle
	for _, c := range s.candles[symbol] {
		ts := time.UnixMilli(c.Timestamp)
		if !ts.Before(from) && !ts.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCandleStore) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	tape := s.candles[symbol]
	if len(tape) > n {
		tape = tape[len(tape)-n:]
	}
	return tape, nil
}

func (s *fakeCandleStore) StoreBatch(_ context.Context, symbol string, _ domrepo.Timeframe, candles []models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.candles == nil {
		s.candles = make(map[string][]models.Candle)
	}
	s.candles[symbol] = append(s.candles[symbol], candles...)
	return nil
}

func (s *fakeCandleStore) stored(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candles[symbol])
}

func newParamsUseCase(t *testing.T, store domrepo.ParamStore) *ParamsUseCase {
	t.Helper()
	return NewParamsUseCase(store, cache.NewTTLCache(), time.Minute, testLogger(t), noopMetrics{})
}

func TestResolveDefaultOnEmptyStore(t *testing.T) {
	uc := newParamsUseCase(t, newFakeParamStore())

	resolved, err := uc.Resolve(context.Background(), domrepo.StageDetection)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Source != SourceDefault {
		t.Fatalf("source = %s, want %s", resolved.Source, SourceDefault)
	}

	params, source, err := uc.ResolveDetection(context.Background())
	if err != nil {
		t.Fatalf("ResolveDetection: %v", err)
	}
	if source != SourceDefault {
		t.Fatalf("source = %s, want %s", source, SourceDefault)
	}
	if params != models.DefaultDetectionParams() {
		t.Fatalf("params = %+v, want defaults", params)
	}
}

func TestResolvePrefersActiveRow(t *testing.T) {
	store := newFakeParamStore()
	ctx := context.Background()

	id1, _ := store.Insert(ctx, domrepo.StageRange, models.RangeParams{ATRPeriod: 7, ATRMultiplier: 2})
	id2, _ := store.Insert(ctx, domrepo.StageRange, models.RangeParams{ATRPeriod: 21, ATRMultiplier: 1})
	store.UpdateScore(ctx, domrepo.StageRange, id2, 99)
	if err := store.SetActive(ctx, domrepo.StageRange, id1); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	uc := newParamsUseCase(t, store)
	params, source, err := uc.ResolveRange(ctx)
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	if source != SourceActive {
		t.Fatalf("source = %s, want %s", source, SourceActive)
	}
	if params.ATRPeriod != 7 || params.ATRMultiplier != 2 {
		t.Fatalf("params = %+v, want active row", params)
	}
}

func TestResolveFallsBackToBestScore(t *testing.T) {
	store := newFakeParamStore()
	ctx := context.Background()

	id1, _ := store.Insert(ctx, domrepo.StageBreakout, models.BreakoutParams{BreakoutThresholdPercentage: 0.3, MaxCandlesToReturn: 2})
	id2, _ := store.Insert(ctx, domrepo.StageBreakout, models.BreakoutParams{BreakoutThresholdPercentage: 1.1, MaxCandlesToReturn: 5})
	store.UpdateScore(ctx, domrepo.StageBreakout, id1, 10)
	store.UpdateScore(ctx, domrepo.StageBreakout, id2, 75)

	uc := newParamsUseCase(t, store)
	params, source, err := uc.ResolveBreakout(ctx)
	if err != nil {
		t.Fatalf("ResolveBreakout: %v", err)
	}
	if source != SourceBestScore {
		t.Fatalf("source = %s, want %s", source, SourceBestScore)
	}
	if params.BreakoutThresholdPercentage != 1.1 || params.MaxCandlesToReturn != 5 {
		t.Fatalf("params = %+v, want highest-scoring row", params)
	}
}

func TestResolveTreatsStoreFailureAsMiss(t *testing.T) {
	store := newFakeParamStore()
	store.fail = fmt.Errorf("connection refused")

	uc := newParamsUseCase(t, store)
	params, source, err := uc.ResolveDetection(context.Background())
	if err != nil {
		t.Fatalf("ResolveDetection: %v", err)
	}
	if source != SourceDefault {
		t.Fatalf("source = %s, want %s", source, SourceDefault)
	}
	if params != models.DefaultDetectionParams() {
		t.Fatalf("params = %+v, want defaults", params)
	}
}

func TestResolveRejectsUnknownStage(t *testing.T) {
	uc := newParamsUseCase(t, newFakeParamStore())
	if _, err := uc.Resolve(context.Background(), domrepo.Stage("bogus")); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestInvalidatePicksUpNewActivation(t *testing.T) {
	store := newFakeParamStore()
	ctx := context.Background()
	uc := newParamsUseCase(t, store)

	// First resolution caches the default.
	if _, source, _ := uc.ResolveRange(ctx); source != SourceDefault {
		t.Fatalf("source = %s, want %s", source, SourceDefault)
	}

	id, _ := store.Insert(ctx, domrepo.StageRange, models.RangeParams{ATRPeriod: 28, ATRMultiplier: 3})
	if err := store.SetActive(ctx, domrepo.StageRange, id); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	// Still cached until invalidation.
	if _, source, _ := uc.ResolveRange(ctx); source != SourceDefault {
		t.Fatalf("source before invalidate = %s, want cached %s", source, SourceDefault)
	}

	uc.Invalidate(ctx, domrepo.StageRange)
	params, source, err := uc.ResolveRange(ctx)
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	if source != SourceActive || params.ATRPeriod != 28 {
		t.Fatalf("got %s %+v, want active row after invalidate", source, params)
	}
}

func TestResolveFallsBackOnCorruptDocument(t *testing.T) {
	store := newFakeParamStore()
	ctx := context.Background()

	id, _ := store.Insert(ctx, domrepo.StageDetection, map[string]interface{}{"lookback_candles": -5})
	if err := store.SetActive(ctx, domrepo.StageDetection, id); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	uc := newParamsUseCase(t, store)
	params, source, err := uc.ResolveDetection(ctx)
	if err != nil {
		t.Fatalf("ResolveDetection: %v", err)
	}
	if source != SourceDefault {
		t.Fatalf("source = %s, want %s for invalid stored params", source, SourceDefault)
	}
	if params != models.DefaultDetectionParams() {
		t.Fatalf("params = %+v, want defaults", params)
	}
}

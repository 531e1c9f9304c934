package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/service/cache"
	applogger "RangePulse/pkg/logger"
)

// ParamSource tells where a resolved parameter set came from.
type ParamSource string

const (
	SourceActive    ParamSource = "active"
	SourceBestScore ParamSource = "best_score"
	SourceDefault   ParamSource = "default"
)

// ResolvedParams is a stage's effective parameter set with provenance.
type ResolvedParams struct {
	Stage  domrepo.Stage   `json:"stage"`
	Source ParamSource     `json:"source"`
	ID     int64           `json:"id,omitempty"`
	Score  float64         `json:"score,omitempty"`
	Params json.RawMessage `json:"params"`
}

// ParamsUseCase resolves effective stage parameters. Resolution walks
// active row, then best-by-score row, then the built-in default, so a scan
// always has parameters even against an empty or unreachable store.
// Resolved sets are cached briefly; activation invalidates the cache.
type ParamsUseCase struct {
	store    domrepo.ParamStore
	cache    cache.BytesCache
	cacheTTL time.Duration
	logger   *applogger.Logger
	metrics  domrepo.Metrics
}

func NewParamsUseCase(store domrepo.ParamStore, c cache.BytesCache, cacheTTL time.Duration, logger *applogger.Logger, metrics domrepo.Metrics) *ParamsUseCase {
	return &ParamsUseCase{
		store:    store,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve returns the effective parameters for a stage with provenance.
func (uc *ParamsUseCase) Resolve(ctx context.Context, stage domrepo.Stage) (*ResolvedParams, error) {
	if !domrepo.IsValidStage(stage) {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	key := paramCacheKey(stage)
	if b, ok, err := uc.cache.GetBytes(ctx, key); err == nil && ok {
		var cached ResolvedParams
		if err := json.Unmarshal(b, &cached); err == nil {
			return &cached, nil
		}
	}

	resolved := uc.resolve(ctx, stage)
	if b, err := json.Marshal(resolved); err == nil {
		if err := uc.cache.SetBytes(ctx, key, b, uc.cacheTTL); err != nil {
			uc.logger.Warn("param cache set failed",
				applogger.String("stage", string(stage)),
				applogger.Error(err),
			)
		}
	}
	return resolved, nil
}

// resolve walks the three sources in order. A store failure is logged and
// treated like a miss; the default always wins in the end.
func (uc *ParamsUseCase) resolve(ctx context.Context, stage domrepo.Stage) *ResolvedParams {
	if row, err := uc.store.GetActive(ctx, stage); err == nil {
		return &ResolvedParams{Stage: stage, Source: SourceActive, ID: row.ID, Score: row.Score, Params: row.Params}
	} else if !errors.Is(err, domrepo.ErrNoParams) {
		uc.warnStore(stage, "get active", err)
	}

	if row, err := uc.store.BestByScore(ctx, stage); err == nil {
		return &ResolvedParams{Stage: stage, Source: SourceBestScore, ID: row.ID, Score: row.Score, Params: row.Params}
	} else if !errors.Is(err, domrepo.ErrNoParams) {
		uc.warnStore(stage, "best by score", err)
	}

	return &ResolvedParams{Stage: stage, Source: SourceDefault, Params: defaultParamsJSON(stage)}
}

// ResolveDetection returns the effective detection parameters.
func (uc *ParamsUseCase) ResolveDetection(ctx context.Context) (models.DetectionParams, ParamSource, error) {
	resolved, err := uc.Resolve(ctx, domrepo.StageDetection)
	if err != nil {
		return models.DetectionParams{}, "", err
	}
	var p models.DetectionParams
	if err := decodeParams(resolved.Params, &p); err != nil || p.Validate() != nil {
		return models.DefaultDetectionParams(), SourceDefault, nil
	}
	return p, resolved.Source, nil
}

// ResolveRange returns the effective range parameters.
func (uc *ParamsUseCase) ResolveRange(ctx context.Context) (models.RangeParams, ParamSource, error) {
	resolved, err := uc.Resolve(ctx, domrepo.StageRange)
	if err != nil {
		return models.RangeParams{}, "", err
	}
	var p models.RangeParams
	if err := decodeParams(resolved.Params, &p); err != nil || p.Validate() != nil {
		return models.DefaultRangeParams(), SourceDefault, nil
	}
	return p, resolved.Source, nil
}

// ResolveBreakout returns the effective breakout parameters.
func (uc *ParamsUseCase) ResolveBreakout(ctx context.Context) (models.BreakoutParams, ParamSource, error) {
	resolved, err := uc.Resolve(ctx, domrepo.StageBreakout)
	if err != nil {
		return models.BreakoutParams{}, "", err
	}
	var p models.BreakoutParams
	if err := decodeParams(resolved.Params, &p); err != nil || p.Validate() != nil {
		return models.DefaultBreakoutParams(), SourceDefault, nil
	}
	return p, resolved.Source, nil
}

// Invalidate drops the cached resolution for a stage. Called after
// activation so the next scan sees the new parameters.
func (uc *ParamsUseCase) Invalidate(ctx context.Context, stage domrepo.Stage) {
	if err := uc.cache.Delete(ctx, paramCacheKey(stage)); err != nil {
		uc.logger.Warn("param cache invalidate failed",
			applogger.String("stage", string(stage)),
			applogger.Error(err),
		)
	}
}

func (uc *ParamsUseCase) warnStore(stage domrepo.Stage, op string, err error) {
	if uc.metrics != nil {
		uc.metrics.RecordError("param_store")
	}
	uc.logger.Warn("param store lookup failed, continuing resolution",
		applogger.String("stage", string(stage)),
		applogger.String("op", op),
		applogger.Error(err),
	)
}

func paramCacheKey(stage domrepo.Stage) string {
	return "rangepulse:params:" + string(stage)
}

func defaultParamsJSON(stage domrepo.Stage) json.RawMessage {
	var v interface{}
	switch stage {
	case domrepo.StageDetection:
		v = models.DefaultDetectionParams()
	case domrepo.StageRange:
		v = models.DefaultRangeParams()
	default:
		v = models.DefaultBreakoutParams()
	}
	b, _ := json.Marshal(v)
	return b
}

func decodeParams(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty params document")
	}
	return json.Unmarshal(raw, dest)
}

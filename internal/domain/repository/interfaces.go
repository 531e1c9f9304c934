package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"RangePulse/internal/domain/models"
)

// ErrNoParams is returned when a store lookup finds no matching parameter row.
var ErrNoParams = errors.New("no parameters stored")

// ErrStoreUnavailable wraps persistence failures so callers can distinguish
// them from computation errors.
var ErrStoreUnavailable = errors.New("parameter store unavailable")

// StoredParams is one persisted parameter row; Params holds the
// stage-specific JSON document.
type StoredParams struct {
	ID        int64
	Stage     Stage
	Params    json.RawMessage
	IsActive  bool
	Score     float64
	CreatedAt time.Time
}

// ParamStore persists per-stage parameter sets with scores and an
// at-most-one-active row per stage.
type ParamStore interface {
	Insert(ctx context.Context, stage Stage, params interface{}) (int64, error)
	// GetActive returns the single active row for the stage, or ErrNoParams.
	GetActive(ctx context.Context, stage Stage) (*StoredParams, error)
	// BestByScore returns the highest-scoring row for the stage, or ErrNoParams.
	BestByScore(ctx context.Context, stage Stage) (*StoredParams, error)
	// SetActive atomically deactivates every other row for the stage and
	// activates id. Callers must serialize concurrent writers.
	SetActive(ctx context.Context, stage Stage, id int64) error
	UpdateScore(ctx context.Context, stage Stage, id int64, score float64) error
}

// CandleStore provides candle storage and retrieval.
type CandleStore interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	StoreBatch(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle) error
}

// CandleSink receives batches of closed candles. CandleStore satisfies it;
// so does the Kafka forwarder used when storage is decoupled from ingestion.
type CandleSink interface {
	StoreBatch(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle) error
}

// SignalPublisher delivers confirmed signals to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, signal *models.Signal) error
	Close() error
}

// CandleStream is a live exchange feed of closed candles.
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan StreamCandle, <-chan error)
	Close() error
	IsConnected() bool
}

// StreamCandle is one closed candle from a live feed, tagged with its origin.
type StreamCandle struct {
	Symbol    string
	Timeframe Timeframe
	Candle    models.Candle
}

// Metrics records operational counters for the scanner.
type Metrics interface {
	RecordCandlesScanned(symbol string, n int)
	RecordCandlesIngested(symbol string, n int)
	RecordKeyCandle(symbol string)
	RecordSignal(symbol, direction string)
	RecordGridEvaluation(stage string)
	RecordError(kind string)
	RecordATRFallback()
	RecordLatency(op string, seconds float64)
}

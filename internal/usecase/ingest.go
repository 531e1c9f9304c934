package usecase

import (
	"context"
	"fmt"
	"time"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	applogger "RangePulse/pkg/logger"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 5 * time.Second
)

// IngestUseCase pumps a live candle stream into a sink. Candles are batched
// per symbol and timeframe and flushed on size or on a timer, whichever
// comes first. On stream errors it reconnects and keeps going; the loop
// only stops when the context is cancelled.
type IngestUseCase struct {
	stream         domrepo.CandleStream
	sink           domrepo.CandleSink
	batchSize      int
	batchTimeout   time.Duration
	reconnectDelay time.Duration
	logger         *applogger.Logger
	metrics        domrepo.Metrics
}

// IngestOption configures IngestUseCase.
type IngestOption func(*IngestUseCase)

// WithBatching overrides the flush thresholds.
func WithBatching(size int, timeout time.Duration) IngestOption {
	return func(uc *IngestUseCase) {
		if size > 0 {
			uc.batchSize = size
		}
		if timeout > 0 {
			uc.batchTimeout = timeout
		}
	}
}

// WithReconnectDelay sets the pause before a reconnect attempt.
func WithReconnectDelay(d time.Duration) IngestOption {
	return func(uc *IngestUseCase) {
		if d > 0 {
			uc.reconnectDelay = d
		}
	}
}

func NewIngestUseCase(stream domrepo.CandleStream, sink domrepo.CandleSink, logger *applogger.Logger, metrics domrepo.Metrics, opts ...IngestOption) *IngestUseCase {
	uc := &IngestUseCase{
		stream:         stream,
		sink:           sink,
		batchSize:      defaultBatchSize,
		batchTimeout:   defaultBatchTimeout,
		reconnectDelay: 5 * time.Second,
		logger:         logger,
		metrics:        metrics,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type batchKey struct {
	symbol string
	tf     domrepo.Timeframe
}

// Run blocks until ctx is done. Pending batches are flushed on shutdown
// with a short grace period.
func (uc *IngestUseCase) Run(ctx context.Context) error {
	if err := uc.connect(ctx); err != nil {
		return err
	}
	defer uc.stream.Close()

	batches := make(map[batchKey][]models.Candle)
	ticker := time.NewTicker(uc.batchTimeout)
	defer ticker.Stop()

	candles, errs := uc.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			uc.flushAll(batches)
			return ctx.Err()

		case sc, ok := <-candles:
			if !ok {
				uc.flushAll(batches)
				return nil
			}
			key := batchKey{symbol: sc.Symbol, tf: sc.Timeframe}
			batches[key] = append(batches[key], sc.Candle)
			if len(batches[key]) >= uc.batchSize {
				uc.flush(ctx, key, batches)
			}

		case <-ticker.C:
			for key := range batches {
				uc.flush(ctx, key, batches)
			}

		case err := <-errs:
			uc.logger.Error("candle stream failed, reconnecting", applogger.Error(err))
			uc.metrics.RecordError("stream")
			select {
			case <-ctx.Done():
				uc.flushAll(batches)
				return ctx.Err()
			case <-time.After(uc.reconnectDelay):
			}
			if err := uc.connect(ctx); err != nil {
				return err
			}
			candles, errs = uc.stream.Read(ctx)
		}
	}
}

func (uc *IngestUseCase) connect(ctx context.Context) error {
	for {
		err := uc.stream.Connect(ctx)
		if err == nil {
			if err = uc.stream.Subscribe(ctx); err == nil {
				uc.logger.Info("candle stream connected")
				return nil
			}
		}
		uc.logger.Error("candle stream connect failed", applogger.Error(err))
		uc.metrics.RecordError("stream_connect")
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect stream: %w", ctx.Err())
		case <-time.After(uc.reconnectDelay):
		}
	}
}

func (uc *IngestUseCase) flush(ctx context.Context, key batchKey, batches map[batchKey][]models.Candle) {
	batch := batches[key]
	if len(batch) == 0 {
		return
	}
	delete(batches, key)

	if err := uc.sink.StoreBatch(ctx, key.symbol, key.tf, batch); err != nil {
		uc.logger.Error("candle batch write failed",
			applogger.String("symbol", key.symbol),
			applogger.String("tf", string(key.tf)),
			applogger.Int("count", len(batch)),
			applogger.Error(err),
		)
		uc.metrics.RecordError("candle_write")
		return
	}
	uc.metrics.RecordCandlesIngested(key.symbol, len(batch))
	uc.logger.Debug("candle batch stored",
		applogger.String("symbol", key.symbol),
		applogger.Int("count", len(batch)),
	)
}

// flushAll is the shutdown path; it gets its own deadline because the run
// context is already cancelled.
func (uc *IngestUseCase) flushAll(batches map[batchKey][]models.Candle) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for key := range batches {
		uc.flush(ctx, key, batches)
	}
}

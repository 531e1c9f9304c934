package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	pkgkafka "RangePulse/pkg/kafka"
	applogger "RangePulse/pkg/logger"
)

// KafkaCandlesHandler consumes candle messages and writes them to the
// candle store. It is the storage half of the kafka backend: the ingest
// loop produces to the topic, this handler persists.
type KafkaCandlesHandler struct {
	topic   string
	store   domrepo.CandleStore
	logger  *applogger.Logger
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)

func NewKafkaCandlesHandler(topic string, store domrepo.CandleStore, logger *applogger.Logger, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{
		topic:   topic,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

func (h *KafkaCandlesHandler) Handle(ctx context.Context, payload []byte) error {
	var msg models.CandleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// A malformed message will never parse; log and drop instead of
		// cycling through retries.
		h.logger.Error("malformed candle message dropped", applogger.Error(err))
		h.metrics.RecordError("candle_decode")
		return nil
	}
	if msg.Symbol == "" {
		h.logger.Error("candle message without symbol dropped")
		h.metrics.RecordError("candle_decode")
		return nil
	}

	tf := domrepo.NormalizeTimeframe(msg.Timeframe)
	if err := h.store.StoreBatch(ctx, msg.Symbol, tf, []models.Candle{msg.Candle}); err != nil {
		return fmt.Errorf("store candle for %s: %w", msg.Symbol, err)
	}
	h.metrics.RecordCandlesIngested(msg.Symbol, 1)
	return nil
}

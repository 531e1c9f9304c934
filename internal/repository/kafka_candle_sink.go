package repository

import (
	"context"
	"fmt"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	pkgkafka "RangePulse/pkg/kafka"
	applogger "RangePulse/pkg/logger"
)

// KafkaCandleSink forwards closed candles to a Kafka topic instead of
// writing them to ClickHouse directly. A separate consumer persists them,
// which decouples the live feed from storage latency.
type KafkaCandleSink struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaCandleSink(producer *pkgkafka.Producer, topic string) *KafkaCandleSink {
	return &KafkaCandleSink{producer: producer, topic: topic}
}

func (s *KafkaCandleSink) SetLogger(l *applogger.Logger) { s.l = l }

// StoreBatch publishes one message per candle, keyed by symbol so bars of
// the same instrument stay ordered within a partition.
func (s *KafkaCandleSink) StoreBatch(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	messages := make([]pkgkafka.Message, 0, len(candles))
	for _, c := range candles {
		messages = append(messages, pkgkafka.Message{
			Key: []byte(symbol),
			Value: models.CandleMessage{
				Symbol:    symbol,
				Timeframe: string(tf),
				Candle:    c,
			},
		})
	}

	if err := s.producer.PublishBatch(ctx, s.topic, messages); err != nil {
		return fmt.Errorf("publish candles for %s: %w", symbol, err)
	}
	if s.l != nil {
		s.l.Debug("candles published",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("count", len(candles)),
		)
	}
	return nil
}

func (s *KafkaCandleSink) Close() error {
	return s.producer.Close()
}

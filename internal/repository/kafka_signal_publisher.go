package repository

import (
	"context"
	"fmt"

	"RangePulse/internal/domain/models"
	pkgkafka "RangePulse/pkg/kafka"
	applogger "RangePulse/pkg/logger"
)

// KafkaSignalPublisher implements SignalPublisher on a Kafka topic. Signals
// are keyed by symbol so consumers see per-symbol order.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

// SetLogger injects a structured logger.
func (p *KafkaSignalPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaSignalPublisher) Publish(ctx context.Context, signal *models.Signal) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(signal.Symbol), signal); err != nil {
		if p.l != nil {
			p.l.Error("publish signal",
				applogger.String("topic", p.topic),
				applogger.String("symbol", signal.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}

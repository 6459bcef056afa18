package repository

import (
	"context"
	"fmt"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	pkgkafka "MarketSignal/pkg/kafka"
)

// NopJournal drops events. Used when journal.backend is "none".
type NopJournal struct{}

func (NopJournal) Record(context.Context, *models.SignalEvent) error { return nil }
func (NopJournal) Close() error                                      { return nil }

// KafkaJournal publishes events keyed by target so one target stays on one partition.
type KafkaJournal struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaJournal creates a Kafka-backed journal.
func NewKafkaJournal(producer *pkgkafka.Producer, topic string) *KafkaJournal {
	return &KafkaJournal{producer: producer, topic: topic}
}

func (j *KafkaJournal) Record(ctx context.Context, ev *models.SignalEvent) error {
	if err := j.producer.Publish(ctx, j.topic, []byte(ev.Target), ev); err != nil {
		return fmt.Errorf("publish signal event: %w", err)
	}
	return nil
}

// Close is a no-op: the producer is shared with the log collector and closed by its owner.
func (j *KafkaJournal) Close() error { return nil }

var (
	_ domrepo.SignalJournal = NopJournal{}
	_ domrepo.SignalJournal = (*KafkaJournal)(nil)
)

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	pkgkafka "MarketSignal/pkg/kafka"
)

// JournalHandler consumes signal events from Kafka and writes them to a store.
type JournalHandler struct {
	topic   string
	store   domrepo.SignalJournal
	metrics domrepo.Metrics
}

func NewJournalHandler(topic string, store domrepo.SignalJournal, metrics domrepo.Metrics) *JournalHandler {
	return &JournalHandler{topic: topic, store: store, metrics: metrics}
}

func (h *JournalHandler) Topic() string { return h.topic }

// Handle stores one JSON-encoded SignalEvent. Malformed payloads are
// returned as errors so the consumer parks them on the DLQ.
func (h *JournalHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.SignalEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode signal event: %w", err)
	}
	if ev.ID == "" || ev.Target == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("signal event missing id or target")
	}
	// event age at ingest
	if !ev.CreatedAt.IsZero() {
		h.metrics.RecordLatency("journal_ingest_lag", time.Since(ev.CreatedAt).Seconds())
	}

	start := time.Now()
	err := h.store.Record(ctx, &ev)
	h.metrics.RecordLatency("journal_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*JournalHandler)(nil)

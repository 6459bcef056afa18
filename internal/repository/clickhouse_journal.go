package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"
)

// ClickHouseJournal stores and queries signal events in ClickHouse.
type ClickHouseJournal struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseJournal creates a journal writing to database.signal_events.
func NewClickHouseJournal(db *sql.DB, database string, l *applogger.Logger) *ClickHouseJournal {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseJournal{db: db, table: database + ".signal_events", l: l}
}

// Schema returns the idempotent DDL for the journal.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signal_events (
    id String,
    target LowCardinality(String),
    kind LowCardinality(String),
    signal LowCardinality(String),
    price_change Float64,
    sentiment_value Float64,
    observations UInt32,
    created_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree
ORDER BY (target, created_at, id)
TTL toDateTime(created_at) + INTERVAL 180 DAY`, database),
	}
}

const insertColumns = "id, target, kind, signal, price_change, sentiment_value, observations, created_at"

func (j *ClickHouseJournal) Record(ctx context.Context, ev *models.SignalEvent) error {
	return j.RecordBatch(ctx, []*models.SignalEvent{ev})
}

// RecordBatch inserts events with one multi-row statement per chunk.
func (j *ClickHouseJournal) RecordBatch(ctx context.Context, events []*models.SignalEvent) error {
	const chunkSize = 1000
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}
		q, args := buildInsert(j.table, events[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := j.db.ExecContext(ctx, q, args...); err != nil {
			j.l.Error("clickhouse insert signal events failed",
				applogger.String("table", j.table),
				applogger.Int("rows", len(args)/8),
				applogger.Error(err),
			)
			return fmt.Errorf("insert signal events: %w", err)
		}
	}
	return nil
}

func buildInsert(table string, events []*models.SignalEvent) (string, []interface{}) {
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)
	for _, ev := range events {
		if ev == nil || ev.ID == "" || ev.Target == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			ev.ID,
			ev.Target,
			ev.Kind,
			string(ev.Signal),
			ev.PriceChange,
			ev.SentimentValue,
			uint32(ev.Observations),
			ev.CreatedAt.UTC(),
		)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, insertColumns, strings.Join(values, ",")), args
}

// History returns the newest events for target created at or after since.
func (j *ClickHouseJournal) History(ctx context.Context, target string, since time.Time, limit int) ([]models.SignalEvent, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT %s
        FROM %s FINAL
        WHERE target = ? AND created_at >= ?
        ORDER BY created_at DESC
        LIMIT ?`, insertColumns, j.table)
	rows, err := j.db.QueryContext(ctx, q, target, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query signal history: %w", err)
	}
	defer rows.Close()

	out := make([]models.SignalEvent, 0, limit)
	for rows.Next() {
		var ev models.SignalEvent
		var signal string
		var obs uint32
		if err := rows.Scan(&ev.ID, &ev.Target, &ev.Kind, &signal, &ev.PriceChange, &ev.SentimentValue, &obs, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal event: %w", err)
		}
		ev.Signal = models.Signal(signal)
		ev.Observations = int(obs)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	j.l.Debug("clickhouse signal history ok",
		applogger.String("target", target),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (j *ClickHouseJournal) Close() error { return nil } // pool owned by pkg/clickhouse

var (
	_ domrepo.SignalJournal = (*ClickHouseJournal)(nil)
	_ domrepo.SignalHistory = (*ClickHouseJournal)(nil)
)

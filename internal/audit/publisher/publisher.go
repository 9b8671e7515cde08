// Package publisher drains the audit outbox to Kafka. It is the asynchronous
// half of the outbox pattern: Append made the event durable in Postgres, this
// worker gets it to the broker at least once. Consumers must deduplicate on
// the event ID.
package publisher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"obligo/internal/audit"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Worker polls the outbox table and publishes pending entries.
type Worker struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	metrics  *audit.Metrics
	batch    int
	interval time.Duration
}

type Option func(*Worker)

func WithBatchSize(n int) Option {
	return func(w *Worker) { w.batch = n }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.interval = d }
}

func WithMetrics(m *audit.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(db *sql.DB, client *kgo.Client, topic string, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		db:       db,
		client:   client,
		topic:    topic,
		logger:   logger,
		batch:    defaultBatchSize,
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// EnsureTopic creates the audit topic if the broker does not have it yet.
// Safe to call on every startup.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Run drains the outbox until the context is cancelled. Publish failures are
// logged and retried on the next tick; entries stay pending until they reach
// the broker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				if w.metrics != nil {
					w.metrics.OutboxFailures.Inc()
				}
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
			w.observeLag(ctx)
		}
	}
}

// drainOnce publishes up to one batch of pending entries. Rows are locked
// with SKIP LOCKED so multiple workers never publish the same entry
// concurrently; at-least-once delivery still holds across crashes between
// produce and commit.
func (w *Worker) drainOnce(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox batch: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, w.batch)
	if err != nil {
		return fmt.Errorf("select pending outbox entries: %w", err)
	}

	type entry struct {
		id uuid.UUID
	}
	var (
		entries []entry
		records []*kgo.Record
	)
	for rows.Next() {
		var (
			id          uuid.UUID
			aggregateID string
			eventType   string
			payload     []byte
		)
		if err := rows.Scan(&id, &aggregateID, &eventType, &payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry{id: id})
		records = append(records, &kgo.Record{
			Topic: w.topic,
			// Key by aggregate so one occurrence's events stay ordered
			// within a partition.
			Key:   []byte(aggregateID),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(eventType)},
			},
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox entries: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id.String()
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])
	`, time.Now(), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox entries published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox batch: %w", err)
	}

	if w.metrics != nil {
		w.metrics.OutboxPublished.Add(float64(len(records)))
	}
	w.logger.DebugContext(ctx, "published audit batch", "count", len(records))
	return nil
}

func (w *Worker) observeLag(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	var pending int
	err := w.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_outbox WHERE published_at IS NULL`,
	).Scan(&pending)
	if err != nil {
		return
	}
	w.metrics.OutboxLag.Set(float64(pending))
}

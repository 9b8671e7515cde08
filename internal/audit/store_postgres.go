package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store with the transactional outbox pattern.
// Append writes the queryable audit_events row and the outbox row in one
// transaction; the outbox worker publishes outbox entries to Kafka, which is
// the downstream source of truth for long-term retention.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON structure published to Kafka. Field names are
// stable API for downstream consumers.
type outboxPayload struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	Action         string `json:"action"`
	Actor          string `json:"actor,omitempty"`
	Role           string `json:"role,omitempty"`
	OccurrenceID   string `json:"occurrence_id,omitempty"`
	DefinitionCode string `json:"definition_code,omitempty"`
	PeriodLabel    string `json:"period_label,omitempty"`
	Detail         string `json:"detail,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(outboxPayload{
		ID:             event.ID.String(),
		Category:       string(event.Category),
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		Action:         string(event.Action),
		Actor:          event.Actor,
		Role:           event.Role,
		OccurrenceID:   event.OccurrenceID,
		DefinitionCode: event.DefinitionCode,
		PeriodLabel:    event.PeriodLabel,
		Detail:         event.Detail,
		RequestID:      event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "definition"
	aggregateID := event.DefinitionCode
	if event.OccurrenceID != "" {
		aggregateType = "occurrence"
		aggregateID = event.OccurrenceID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, action, actor, role,
			occurrence_id, definition_code, period_label, detail, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		string(event.Category),
		event.Timestamp,
		string(event.Action),
		event.Actor,
		event.Role,
		nullable(event.OccurrenceID),
		event.DefinitionCode,
		nullable(event.PeriodLabel),
		event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		aggregateType,
		aggregateID,
		string(event.Action),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) ListByOccurrence(ctx context.Context, occurrenceID string) ([]Event, error) {
	return s.list(ctx, `
		SELECT id, category, timestamp, action, actor, role,
		       occurrence_id, definition_code, period_label, detail, request_id
		FROM audit_events
		WHERE occurrence_id = $1
		ORDER BY timestamp ASC
	`, occurrenceID)
}

func (s *PostgresStore) ListByDefinition(ctx context.Context, definitionCode string) ([]Event, error) {
	return s.list(ctx, `
		SELECT id, category, timestamp, action, actor, role,
		       occurrence_id, definition_code, period_label, detail, request_id
		FROM audit_events
		WHERE definition_code = $1
		ORDER BY timestamp ASC
	`, definitionCode)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return s.list(ctx, `
		SELECT id, category, timestamp, action, actor, role,
		       occurrence_id, definition_code, period_label, detail, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event        Event
			category     string
			action       string
			occurrenceID sql.NullString
			periodLabel  sql.NullString
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&action,
			&event.Actor,
			&event.Role,
			&occurrenceID,
			&event.DefinitionCode,
			&periodLabel,
			&event.Detail,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = Category(category)
		event.Action = Action(action)
		event.OccurrenceID = occurrenceID.String
		event.PeriodLabel = periodLabel.String
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

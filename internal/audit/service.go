package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"obligo/pkg/requestcontext"
)

// Service is the fail-closed recording surface for the trail. Emit blocks
// until the event is durably persisted; if persistence fails the calling
// business operation MUST fail, so a state change can never happen without
// its audit record.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Service)

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit records one event. It fills in the ID, category, timestamp, actor and
// request ID so call sites only describe the state change itself.
func (s *Service) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires an action")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Category = event.Action.Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Actor == "" {
		event.Actor = requestcontext.Actor(ctx)
	}
	if event.Actor == "" {
		event.Actor = "system"
	}
	if event.Role == "" {
		event.Role = string(requestcontext.ActorRole(ctx))
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := s.store.Append(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.IncAppendFailures()
		}
		s.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
			"action", event.Action,
			"definition_code", event.DefinitionCode,
			"occurrence_id", event.OccurrenceID,
			"error", err,
		)
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncEventsEmitted(string(event.Action))
	}
	return nil
}

// ListByOccurrence returns the full trail of one occurrence in append order.
func (s *Service) ListByOccurrence(ctx context.Context, occurrenceID string) ([]Event, error) {
	return s.store.ListByOccurrence(ctx, occurrenceID)
}

// ListByDefinition returns every event recorded against a definition.
func (s *Service) ListByDefinition(ctx context.Context, definitionCode string) ([]Event, error) {
	return s.store.ListByDefinition(ctx, definitionCode)
}

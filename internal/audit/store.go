package audit

import "context"

// Store persists the trail. Append is the only write; implementations must
// never expose update or delete paths.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOccurrence(ctx context.Context, occurrenceID string) ([]Event, error)
	ListByDefinition(ctx context.Context, definitionCode string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

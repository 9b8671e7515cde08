package alert

import (
	"context"
	"time"

	"obligo/pkg/domain"
)

// Store tracks which tiers fired for which occurrence, and their
// acknowledgements. Both writes are first-writer-wins: MarkFired and
// Acknowledge report false when the state was already set, so callers
// can tell a transition from a replay.
type Store interface {
	// MarkFired records that a tier fired. Returns false when the tier
	// was already marked.
	MarkFired(ctx context.Context, id domain.OccurrenceID, tier Tier, firedAt time.Time) (bool, error)

	// FiredTiers returns the fired tiers of one occurrence with their
	// firing instants.
	FiredTiers(ctx context.Context, id domain.OccurrenceID) (map[Tier]time.Time, error)

	// Acknowledge marks a fired tier acknowledged. Returns false when it
	// was already acknowledged. The caller checks the tier actually fired.
	Acknowledge(ctx context.Context, id domain.OccurrenceID, tier Tier, at time.Time) (bool, error)

	// Acknowledgements returns the acknowledged tiers of one occurrence.
	Acknowledgements(ctx context.Context, id domain.OccurrenceID) (map[Tier]time.Time, error)
}

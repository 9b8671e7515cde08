package alert

import (
	"context"
	"sync"
	"time"

	"obligo/pkg/domain"
)

// InMemoryStore is the dev and test fallback used when Redis is not
// configured. Suppression state is lost on restart, which at worst re-fires
// a tier once; consumers of the feed are expected to deduplicate.
type InMemoryStore struct {
	mu    sync.Mutex
	fired map[domain.OccurrenceID]map[Tier]time.Time
	acked map[domain.OccurrenceID]map[Tier]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		fired: make(map[domain.OccurrenceID]map[Tier]time.Time),
		acked: make(map[domain.OccurrenceID]map[Tier]time.Time),
	}
}

func (s *InMemoryStore) MarkFired(_ context.Context, id domain.OccurrenceID, tier Tier, firedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setOnce(s.fired, id, tier, firedAt), nil
}

func (s *InMemoryStore) FiredTiers(_ context.Context, id domain.OccurrenceID) (map[Tier]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTiers(s.fired[id]), nil
}

func (s *InMemoryStore) Acknowledge(_ context.Context, id domain.OccurrenceID, tier Tier, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setOnce(s.acked, id, tier, at), nil
}

func (s *InMemoryStore) Acknowledgements(_ context.Context, id domain.OccurrenceID) (map[Tier]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTiers(s.acked[id]), nil
}

func setOnce(m map[domain.OccurrenceID]map[Tier]time.Time, id domain.OccurrenceID, tier Tier, at time.Time) bool {
	tiers, ok := m[id]
	if !ok {
		tiers = make(map[Tier]time.Time)
		m[id] = tiers
	}
	if _, exists := tiers[tier]; exists {
		return false
	}
	tiers[tier] = at
	return true
}

func copyTiers(tiers map[Tier]time.Time) map[Tier]time.Time {
	out := make(map[Tier]time.Time, len(tiers))
	for tier, at := range tiers {
		out[tier] = at
	}
	return out
}

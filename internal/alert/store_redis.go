package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// RedisStore keeps suppression state in Redis hashes, one per occurrence.
// HSETNX gives first-writer-wins across engine instances, so a tier fires
// at most once even when several evaluators run concurrently.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func firedKey(id domain.OccurrenceID) string { return "alerts:fired:" + id.String() }
func ackedKey(id domain.OccurrenceID) string { return "alerts:acked:" + id.String() }

func (s *RedisStore) MarkFired(ctx context.Context, id domain.OccurrenceID, tier Tier, firedAt time.Time) (bool, error) {
	return s.setOnce(ctx, firedKey(id), tier, firedAt)
}

func (s *RedisStore) FiredTiers(ctx context.Context, id domain.OccurrenceID) (map[Tier]time.Time, error) {
	return s.readTiers(ctx, firedKey(id))
}

func (s *RedisStore) Acknowledge(ctx context.Context, id domain.OccurrenceID, tier Tier, at time.Time) (bool, error) {
	return s.setOnce(ctx, ackedKey(id), tier, at)
}

func (s *RedisStore) Acknowledgements(ctx context.Context, id domain.OccurrenceID) (map[Tier]time.Time, error) {
	return s.readTiers(ctx, ackedKey(id))
}

func (s *RedisStore) setOnce(ctx context.Context, key string, tier Tier, at time.Time) (bool, error) {
	set, err := s.client.HSetNX(ctx, key, string(tier), at.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis hsetnx: %w", sentinel.ErrUnavailable, err)
	}
	return set, nil
}

func (s *RedisStore) readTiers(ctx context.Context, key string) (map[Tier]time.Time, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis hgetall: %w", sentinel.ErrUnavailable, err)
	}
	tiers := make(map[Tier]time.Time, len(fields))
	for field, raw := range fields {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp for tier %s in %s: %w", field, key, err)
		}
		tiers[Tier(field)] = at
	}
	return tiers, nil
}

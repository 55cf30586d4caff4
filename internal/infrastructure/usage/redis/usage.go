package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps monthly request counters for authenticated callers. Keys are
// quota:{userID}:{YYYY-MM}, so the calendar-month reset falls out of the key
// shape instead of a scheduled job. INCR is atomic per call, but the quota
// gate's check-then-charge across two calls is deliberately not.
type Store struct {
	client *redis.Client
	expiry time.Duration
}

func New(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{
		client: client,
		// Two months covers the current period plus a grace window for
		// end-of-month reads; after that the key is garbage.
		expiry: 60 * 24 * time.Hour,
	}, nil
}

func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, expiry: 60 * 24 * time.Hour}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) MonthlyUsage(ctx context.Context, userID, period string) (int64, error) {
	count, err := s.client.Get(ctx, usageKey(userID, period)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get usage counter: %w", err)
	}
	return count, nil
}

func (s *Store) IncrementMonthly(ctx context.Context, userID, period string) (int64, error) {
	key := usageKey(userID, period)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment usage counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, s.expiry).Err(); err != nil {
			return count, fmt.Errorf("set usage counter expiry: %w", err)
		}
	}
	return count, nil
}

func usageKey(userID, period string) string {
	return fmt.Sprintf("quota:%s:%s", userID, period)
}

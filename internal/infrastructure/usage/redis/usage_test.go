package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreWithMiniredis(t *testing.T) *Store {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client)
}

func TestMonthlyUsageMissingKeyIsZero(t *testing.T) {
	store := newStoreWithMiniredis(t)

	count, err := store.MonthlyUsage(context.Background(), "user-1", "2026-08")
	if err != nil {
		t.Fatalf("MonthlyUsage() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 usage for missing key, got %d", count)
	}
}

func TestIncrementMonthlyCountsPerPeriod(t *testing.T) {
	store := newStoreWithMiniredis(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := store.IncrementMonthly(ctx, "user-1", "2026-08")
		if err != nil {
			t.Fatalf("IncrementMonthly() error = %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	// A new calendar month starts its own counter.
	count, err := store.IncrementMonthly(ctx, "user-1", "2026-09")
	if err != nil {
		t.Fatalf("IncrementMonthly() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh counter for new period, got %d", count)
	}

	previous, err := store.MonthlyUsage(ctx, "user-1", "2026-08")
	if err != nil {
		t.Fatalf("MonthlyUsage() error = %v", err)
	}
	if previous != 3 {
		t.Fatalf("expected previous period untouched at 3, got %d", previous)
	}
}

func TestIncrementMonthlySetsExpiryOnFirstUse(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewWithClient(client)

	if _, err := store.IncrementMonthly(context.Background(), "user-1", "2026-08"); err != nil {
		t.Fatalf("IncrementMonthly() error = %v", err)
	}
	if server.TTL("quota:user-1:2026-08") <= 0 {
		t.Fatalf("expected expiry on usage counter")
	}
}

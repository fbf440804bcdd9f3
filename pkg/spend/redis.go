package spend

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Tracker backed by a shared Redis instance, for
// deployments where several gate replicas must agree on daily volume.
// Keys expire shortly after their day ends so the store self-cleans.
type Redis struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedis creates a tracker using the given client. keyPrefix
// namespaces the counters, e.g. one prefix per guarded vault.
func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "vaultgate:spend"
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) key(now time.Time) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, dayKey(now))
}

// DailySpent reads the counter for now's UTC day. A missing key means
// nothing was spent today.
func (r *Redis) DailySpent(ctx context.Context, now time.Time) (uint64, error) {
	val, err := r.client.Get(ctx, r.key(now)).Uint64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daily spend: %w", err)
	}
	return val, nil
}

// Record atomically adds amount to the day's counter and aligns its
// expiry to an hour past UTC midnight.
func (r *Redis) Record(ctx context.Context, amount uint64, now time.Time) error {
	key := r.key(now)
	dayEnd := now.UTC().Truncate(24 * time.Hour).Add(25 * time.Hour)

	pipe := r.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(amount))
	pipe.ExpireAt(ctx, key, dayEnd)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record daily spend: %w", err)
	}
	return nil
}

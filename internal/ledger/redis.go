package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "guardproxy:ledger:"

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// RedisLedger is the primary Ledger backend: an atomic INCRBYFLOAT per
// session, serializing the read-modify-write sequence the spec requires
// without the ledger needing its own mutex.
type RedisLedger struct {
	rdb *redis.Client
}

// NewRedisLedger wraps an existing Redis client.
func NewRedisLedger(rdb *redis.Client) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

func (l *RedisLedger) Record(ctx context.Context, sessionID string, costUSD float64) error {
	if err := l.rdb.IncrByFloat(ctx, redisKey(sessionID), costUSD).Err(); err != nil {
		return fmt.Errorf("ledger record session %s: %w", sessionID, err)
	}
	return nil
}

func (l *RedisLedger) Total(ctx context.Context, sessionID string) (float64, error) {
	total, err := l.rdb.Get(ctx, redisKey(sessionID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger total session %s: %w", sessionID, err)
	}
	return total, nil
}

func (l *RedisLedger) WouldExceed(ctx context.Context, sessionID string, additionalUSD, ceilingUSD float64) (bool, error) {
	total, err := l.Total(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return total+additionalUSD > ceilingUSD, nil
}

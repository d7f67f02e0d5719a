package penalties

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// OverdueMarker dedupes overdue notices across scheduler replicas.
type OverdueMarker interface {
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, key string) error
}

type RedisMarker struct {
	Rdb    *redis.Client
	Prefix string
}

func NewRedisMarker(rdb *redis.Client) *RedisMarker {
	return &RedisMarker{Rdb: rdb, Prefix: "lending:overdue:"}
}

// Mark reports whether this caller set the key first.
func (m *RedisMarker) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.Rdb.SetNX(ctx, m.Prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (m *RedisMarker) Clear(ctx context.Context, key string) error {
	return m.Rdb.Del(ctx, m.Prefix+key).Err()
}

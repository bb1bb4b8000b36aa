package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMarker keeps the busy flag in a shared Redis key so several bot
// processes share one single-flight lock. The key has no expiry, matching
// the file marker: a crashed holder keeps it set.
type RedisMarker struct {
	client *redis.Client
	key    string
}

// NewRedisMarker creates a marker stored under key
func NewRedisMarker(client *redis.Client, key string) *RedisMarker {
	return &RedisMarker{client: client, key: key}
}

func (r *RedisMarker) Acquire(ctx context.Context) error {
	owner := fmt.Sprintf("%d@%s", os.Getpid(), time.Now().Format(time.RFC3339))
	ok, err := r.client.SetNX(ctx, r.key, owner, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrBusy
	}
	return nil
}

func (r *RedisMarker) Release(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *RedisMarker) Held(ctx context.Context) (bool, error) {
	n, err := r.client.Exists(ctx, r.key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

package seen

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the slice of the go-redis API the set uses. It is
// satisfied by *redis.Client; tests substitute an in-memory fake.
type RedisClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a Set shared by every worker process in a distributed crawl.
// SADD reports how many members were actually added, which gives the
// atomic first-marker answer without a round trip pair.
type Redis struct {
	client RedisClient
	key    string
}

type RedisOptions struct {
	Namespace string // key prefix, default "sitemapper"
}

func NewRedis(client RedisClient, opts RedisOptions) *Redis {
	if opts.Namespace == "" {
		opts.Namespace = "sitemapper"
	}
	return &Redis{
		client: client,
		key:    opts.Namespace + ":seen",
	}
}

func (r *Redis) MarkIfNew(ctx context.Context, url string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key, url).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", url, err)
	}
	return added == 1, nil
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count seen urls: %w", err)
	}
	return int(n), nil
}

// Reset forgets every marked URL in this namespace.
func (r *Redis) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to reset seen urls: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client belongs to the caller.
func (r *Redis) Close() error {
	return nil
}

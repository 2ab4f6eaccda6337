package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the slice of the go-redis API the scheduler uses. It is
// satisfied by *redis.Client; tests substitute an in-memory fake. The
// client is owned by the caller and is not closed by the scheduler.
type RedisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Evaluated server-side so both lengths are read atomically; a frontier
// glimpsed empty while a sibling still holds an item never reads as
// drained.
const drainScript = `
local pending = redis.call('LLEN', KEYS[1])
local inflight = redis.call('LLEN', KEYS[2])
if pending == 0 and inflight == 0 then
	return 1
end
return 0
`

// Redis is a durable multi-process backend. Enqueue pushes onto a frontier
// list; Dequeue atomically moves the head into an in-flight list, so an
// item a crashed worker was holding is never lost and can be requeued with
// Recover. TaskDone removes the item from the in-flight list, which makes
// it naturally idempotent. Items are delivered at least once.
//
// All keys are prefixed with a namespace, so concurrent crawls can share
// one server without sharing frontier state.
type Redis struct {
	client      RedisClient
	frontierKey string
	inflightKey string
	doneKey     string
	poll        time.Duration
}

type RedisOptions struct {
	Namespace    string        // key prefix, default "sitemapper"
	PollInterval time.Duration // how long a blocked Dequeue waits between drain checks
}

func NewRedis(client RedisClient, opts RedisOptions) *Redis {
	if opts.Namespace == "" {
		opts.Namespace = "sitemapper"
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	}
	return &Redis{
		client:      client,
		frontierKey: opts.Namespace + ":frontier",
		inflightKey: opts.Namespace + ":inflight",
		doneKey:     opts.Namespace + ":done",
		poll:        opts.PollInterval,
	}
}

func (r *Redis) Enqueue(ctx context.Context, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}
	if err := r.client.LPush(ctx, r.frontierKey, string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", item.URL, err)
	}
	return nil
}

func (r *Redis) Dequeue(ctx context.Context) (Item, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}

		res, err := r.client.BLMove(ctx, r.frontierKey, r.inflightKey, "RIGHT", "LEFT", r.poll).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				drained, derr := r.IsDrained(ctx)
				if derr != nil {
					return Item{}, derr
				}
				if drained {
					return Item{}, io.EOF
				}
				continue
			}
			if ctx.Err() != nil {
				return Item{}, ctx.Err()
			}
			return Item{}, fmt.Errorf("failed to dequeue: %w", err)
		}

		var item Item
		if err := json.Unmarshal([]byte(res), &item); err != nil {
			return Item{}, fmt.Errorf("failed to decode item %q: %w", res, err)
		}
		return item, nil
	}
}

func (r *Redis) TaskDone(ctx context.Context, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	removed, err := r.client.LRem(ctx, r.inflightKey, 1, string(payload)).Result()
	if err != nil {
		return fmt.Errorf("failed to mark %s done: %w", item.URL, err)
	}
	if removed == 0 {
		return nil
	}
	if err := r.client.Incr(ctx, r.doneKey).Err(); err != nil {
		return fmt.Errorf("failed to count %s done: %w", item.URL, err)
	}
	return nil
}

func (r *Redis) IsDrained(ctx context.Context) (bool, error) {
	n, err := r.client.Eval(ctx, drainScript, []string{r.frontierKey, r.inflightKey}).Int()
	if err != nil {
		return false, fmt.Errorf("failed to check drain state: %w", err)
	}
	return n == 1, nil
}

func (r *Redis) Join(ctx context.Context) error {
	for {
		drained, err := r.IsDrained(ctx)
		if err != nil {
			return err
		}
		if drained {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.poll):
		}
	}
}

func (r *Redis) Drain(ctx context.Context) error {
	if err := r.client.Del(ctx, r.frontierKey).Err(); err != nil {
		return fmt.Errorf("failed to drain frontier: %w", err)
	}
	return nil
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	pending, err := r.client.LLen(ctx, r.frontierKey).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read frontier length: %w", err)
	}
	inflight, err := r.client.LLen(ctx, r.inflightKey).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read in-flight length: %w", err)
	}

	var done int
	res, err := r.client.Get(ctx, r.doneKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return Stats{}, fmt.Errorf("failed to read done counter: %w", err)
	default:
		done, err = strconv.Atoi(res)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to parse done counter %q: %w", res, err)
		}
	}

	return Stats{
		Pending:  int(pending),
		InFlight: int(inflight),
		Done:     done,
	}, nil
}

// Recover returns every in-flight item to the dequeue end of the frontier.
// Call it once at startup when resuming after a crash; running it while
// other workers hold items would hand their work out twice.
func (r *Redis) Recover(ctx context.Context) error {
	for {
		_, err := r.client.LMove(ctx, r.inflightKey, r.frontierKey, "RIGHT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to recover in-flight items: %w", err)
		}
	}
}

// Reset deletes all scheduler state in this namespace, giving the next
// crawl a clean frontier.
func (r *Redis) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.frontierKey, r.inflightKey, r.doneKey).Err(); err != nil {
		return fmt.Errorf("failed to reset scheduler state: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client belongs to the caller.
func (r *Redis) Close() error {
	return nil
}

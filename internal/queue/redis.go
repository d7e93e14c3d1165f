package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devkudos/ingest-service/internal/domain"
)

// redisCommander is the slice of the go-redis API the queue uses. Tests
// substitute a fake; production passes a real client.
type redisCommander interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// RedisConfig configures the Redis-backed retry queue.
type RedisConfig struct {
	QueueKey      string
	DeadLetterKey string
	// BlockTimeout bounds each BRPOP so a canceled context is noticed
	// between polls.
	BlockTimeout time.Duration
}

// Redis is a list-backed queue: LPUSH to enqueue, BRPOP to consume.
type Redis struct {
	client        redisCommander
	closeFn       func() error
	queueKey      string
	deadLetterKey string
	blockTimeout  time.Duration
}

// NewRedis creates a Redis-backed queue.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}

	return newRedisFromCommander(client, closeFn, cfg)
}

func newRedisFromCommander(client redisCommander, closeFn func() error, cfg RedisConfig) *Redis {
	queueKey := cfg.QueueKey
	if queueKey == "" {
		queueKey = "ingest:events"
	}

	deadLetterKey := cfg.DeadLetterKey
	if deadLetterKey == "" {
		deadLetterKey = queueKey + ":dead"
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}

	if closeFn == nil {
		closeFn = func() error { return nil }
	}

	return &Redis{
		client:        client,
		closeFn:       closeFn,
		queueKey:      queueKey,
		deadLetterKey: deadLetterKey,
		blockTimeout:  blockTimeout,
	}
}

// Close closes the underlying Redis client.
func (q *Redis) Close() error {
	if q == nil || q.closeFn == nil {
		return nil
	}

	return q.closeFn()
}

// Enqueue pushes an envelope onto the queue.
func (q *Redis) Enqueue(ctx context.Context, env domain.Envelope) error {
	const op = "internal.queue.redis.Enqueue"

	return q.push(ctx, op, q.queueKey, env)
}

// DeadLetter pushes an exhausted envelope onto the dead-letter list.
func (q *Redis) DeadLetter(ctx context.Context, env domain.Envelope) error {
	const op = "internal.queue.redis.DeadLetter"

	return q.push(ctx, op, q.deadLetterKey, env)
}

func (q *Redis) push(ctx context.Context, op, key string, env domain.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal envelope: %w", op, err)
	}

	if err := q.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("%s: failed to push envelope: %w", op, err)
	}

	return nil
}

// Dequeue blocks until an envelope is available or the context is done.
// Each BRPOP is bounded by the block timeout so cancellation is observed.
func (q *Redis) Dequeue(ctx context.Context) (domain.Envelope, error) {
	const op = "internal.queue.redis.Dequeue"

	for {
		if ctx.Err() != nil {
			return domain.Envelope{}, ctx.Err()
		}

		res, err := q.client.BRPop(ctx, q.blockTimeout, q.queueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return domain.Envelope{}, ctx.Err()
			}

			return domain.Envelope{}, fmt.Errorf("%s: failed to pop envelope: %w", op, err)
		}

		if len(res) != 2 {
			return domain.Envelope{}, fmt.Errorf("%s: unexpected reply of %d elements", op, len(res))
		}

		var env domain.Envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			return domain.Envelope{}, fmt.Errorf("%s: failed to decode envelope: %w", op, err)
		}

		return env, nil
	}
}

// Depth returns the current queue length.
func (q *Redis) Depth(ctx context.Context) (int64, error) {
	const op = "internal.queue.redis.Depth"

	n, err := q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to read queue length: %w", op, err)
	}

	return n, nil
}

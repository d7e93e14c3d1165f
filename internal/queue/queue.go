// package queue implements the retry pipeline for failed webhook
// deliveries: a retry policy, queue backends, and the consumer loop that
// re-drives deliveries through the event router.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
)

// RetryPolicy controls how often and how quickly a failed delivery is
// retried. Attempt counting includes the initial delivery, so MaxAttempts 5
// with three delays yields four retries at 30s, 2m, 10m, 10m.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// DefaultPolicy returns the standard policy: five attempts with delays of
// 30 seconds, 2 minutes, then 10 minutes.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Delays:      []time.Duration{30 * time.Second, 2 * time.Minute, 10 * time.Minute},
	}
}

// NextDelay returns the wait before the next attempt given the number of
// attempts that have already failed. The second return value is false when
// the delivery is exhausted and must be dead-lettered. Delay lookup clamps
// to the last configured delay.
func (p RetryPolicy) NextDelay(failures int) (time.Duration, bool) {
	if failures >= p.MaxAttempts {
		return 0, false
	}

	if len(p.Delays) == 0 {
		return 0, true
	}

	idx := failures - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Delays) {
		idx = len(p.Delays) - 1
	}

	return p.Delays[idx], true
}

// Source is a queue backend the consumer drains. Dequeue blocks until a
// message is available or the context is done.
type Source interface {
	Enqueue(ctx context.Context, env domain.Envelope) error
	Dequeue(ctx context.Context) (domain.Envelope, error)
	DeadLetter(ctx context.Context, env domain.Envelope) error
}

// InMemory is an in-process queue for local runs and tests.
type InMemory struct {
	ch chan domain.Envelope

	mu   sync.Mutex
	dead []domain.Envelope
}

// NewInMemory creates an in-memory queue with the given buffer size.
func NewInMemory(buffer int) *InMemory {
	if buffer <= 0 {
		buffer = 1
	}

	return &InMemory{
		ch: make(chan domain.Envelope, buffer),
	}
}

// Enqueue adds an envelope without blocking. A full buffer is an error so
// that callers treating enqueue as fire-and-forget can log the loss.
func (q *InMemory) Enqueue(_ context.Context, env domain.Envelope) error {
	select {
	case q.ch <- env:
		return nil
	default:
		return fmt.Errorf("internal.queue.Enqueue: queue buffer full")
	}
}

// Dequeue blocks until an envelope is available or the context is done.
func (q *InMemory) Dequeue(ctx context.Context) (domain.Envelope, error) {
	select {
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	case env := <-q.ch:
		return env, nil
	}
}

// DeadLetter records an exhausted envelope.
func (q *InMemory) DeadLetter(_ context.Context, env domain.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dead = append(q.dead, env)

	return nil
}

// Depth returns the number of queued envelopes.
func (q *InMemory) Depth() int {
	return len(q.ch)
}

// DeadLetters returns a copy of the dead-lettered envelopes.
func (q *InMemory) DeadLetters() []domain.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.Envelope, len(q.dead))
	copy(out, q.dead)

	return out
}

// Handler processes one dequeued delivery.
type Handler func(ctx context.Context, env domain.Envelope) error

// Consumer drains a queue with a pool of workers, applying the retry policy
// before each attempt and dead-lettering exhausted deliveries.
type Consumer struct {
	source  Source
	handler Handler
	policy  RetryPolicy
	workers int
	log     *slog.Logger
}

func NewConsumer(source Source, handler Handler, policy RetryPolicy, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}

	return &Consumer{
		source:  source,
		handler: handler,
		policy:  policy,
		workers: workers,
		log:     log,
	}
}

// Run blocks until the context is done, processing deliveries with the
// configured number of workers.
func (c *Consumer) Run(ctx context.Context) {
	const op = "internal.queue.Run"

	log := c.log.With(slog.String("op", op))
	log.Info("starting retry consumer", slog.Int("workers", c.workers))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			c.work(ctx)
		}()
	}

	wg.Wait()
	log.Info("retry consumer stopped")
}

func (c *Consumer) work(ctx context.Context) {
	const op = "internal.queue.work"

	log := c.log.With(slog.String("op", op))

	for {
		env, err := c.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Error("failed to dequeue", sl.Err(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}

			continue
		}

		c.process(ctx, env)
	}
}

// process runs one attempt for a dequeued envelope. The pre-attempt delay
// derives from the envelope's failure count, so re-enqueued envelopes wait
// their turn no matter which worker picks them up.
func (c *Consumer) process(ctx context.Context, env domain.Envelope) {
	const op = "internal.queue.process"

	log := c.log.With(
		slog.String("op", op),
		slog.String("delivery_id", env.DeliveryID),
		slog.String("event_type", env.EventType),
		slog.Int("attempt", env.Attempt),
	)

	delay, ok := c.policy.NextDelay(env.Attempt)
	if !ok {
		log.Warn("delivery exhausted retry budget, dead-lettering")

		if err := c.source.DeadLetter(ctx, env); err != nil {
			log.Error("failed to dead-letter delivery", sl.Err(err))
		}

		return
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			// Push back so the delivery survives shutdown.
			if err := c.source.Enqueue(context.WithoutCancel(ctx), env); err != nil {
				log.Error("failed to requeue delivery on shutdown", sl.Err(err))
			}

			return
		case <-time.After(delay):
		}
	}

	err := c.handler(ctx, env)
	if err == nil {
		log.Info("delivery processed on retry")

		return
	}

	if !apperrors.IsRetryable(err) {
		log.Warn("delivery failed with non-retryable error, dropping", sl.Err(err))

		return
	}

	env.Attempt++

	if err := c.source.Enqueue(ctx, env); err != nil {
		log.Error("failed to requeue delivery", sl.Err(err))

		return
	}

	log.Info("delivery requeued", slog.Int("next_attempt", env.Attempt))
}

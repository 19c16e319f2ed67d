package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const QueueStockAlert = "jobs:stock_alert"

// Job types
const (
	JobLowStock       = "low_stock"
	JobLowStockDigest = "low_stock_digest"
)

const maxJobAttempts = 3

// popErrorBackoff is how long a worker waits after BRPOP fails for a reason
// other than an empty queue, e.g. Redis being unreachable.
const popErrorBackoff = 2 * time.Second

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one job payload. Returning an error makes the pool retry
// the job; a Permanent error skips the remaining attempts.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Enqueuer is what the services need from the dispatcher.
type Enqueuer interface {
	EnqueueStockAlert(ctx context.Context, payload StockAlertPayload) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueStockAlert pushes a low stock alert or digest job.
func (d *Dispatcher) EnqueueStockAlert(ctx context.Context, payload StockAlertPayload) error {
	jobType := JobLowStock
	if payload.Reason == AlertReasonDigest {
		jobType = JobLowStockDigest
	}
	return d.enqueue(ctx, QueueStockAlert, jobType, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers map[string]Handler, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers map[string]Handler, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop; wakes every 5s to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueStockAlert).Result()
			if err != nil {
				if wait := popRetryDelay(ctx, err); wait > 0 {
					log.Warn().Err(err).Int("worker", id).Dur("backoff", wait).Msg("BRPOP failed")
					sleepCtx(ctx, wait)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

// popRetryDelay is zero for an empty queue (redis.Nil) or a cancelled ctx.
func popRetryDelay(ctx context.Context, err error) time.Duration {
	if errors.Is(err, redis.Nil) || ctx.Err() != nil {
		return 0
	}
	return popErrorBackoff
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers map[string]Handler, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, "", json.RawMessage(raw), "malformed job: "+err.Error(), 0)
		return
	}

	attempts, err := runJob(ctx, handlers, job, maxJobAttempts, time.Second)
	if err != nil {
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), attempts)
		return
	}
	log.Info().Str("type", job.Type).Str("queue", queue).Int("attempts", attempts).Msg("job done")
}

// runJob dispatches job to its handler with retries. It returns the number of
// attempts made.
func runJob(ctx context.Context, handlers map[string]Handler, job Job, maxAttempts int, backoff time.Duration) (int, error) {
	h, ok := handlers[job.Type]
	if !ok {
		return 0, fmt.Errorf("no handler for job type %q", job.Type)
	}
	attempts := 0
	err := withRetry(ctx, maxAttempts, backoff, func(attempt int) error {
		attempts = attempt + 1
		err := h.Process(ctx, job.Payload)
		if err != nil {
			log.Warn().Err(err).Str("type", job.Type).Int("attempt", attempts).Msg("job attempt failed")
		}
		return err
	})
	return attempts, err
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the pool sends the job to the DLQ without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// withRetry calls fn up to maxAttempts times with exponential backoff:
// attempt 1 immediately, then backoff, 2×backoff, …
func withRetry(ctx context.Context, maxAttempts int, backoff time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := backoff * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		var perm *permanentError
		if errors.As(err, &perm) {
			return err
		}
	}
	return lastErr
}

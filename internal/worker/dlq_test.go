package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDLQEntry_CarriesAlertContext(t *testing.T) {
	payload, err := json.Marshal(StockAlertPayload{
		Reason:   AlertReasonSale,
		SaleID:   "sale-9",
		Products: []LowStockProduct{{ID: "p1"}, {ID: "p2"}},
	})
	require.NoError(t, err)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("UTC-3", -3*3600))

	entry := newDLQEntry(QueueStockAlert, JobLowStock, payload, "relay down", 3, at)
	assert.Equal(t, "sale-9", entry.SaleID)
	assert.Equal(t, []string{"p1", "p2"}, entry.ProductIDs)
	assert.Equal(t, "2026-05-01T13:00:00Z", entry.FailedAt)
	assert.Equal(t, 3, entry.Attempts)
	assert.JSONEq(t, string(payload), string(entry.Payload))
}

func TestNewDLQEntry_MalformedPayloadKeepsRawBytes(t *testing.T) {
	raw := json.RawMessage(`{"products": 12}`)
	entry := newDLQEntry(QueueStockAlert, JobLowStockDigest, raw, "bad payload", 1, time.Now())
	assert.Empty(t, entry.SaleID)
	assert.Empty(t, entry.ProductIDs)
	assert.Equal(t, raw, entry.Payload)

	entry = newDLQEntry(QueueStockAlert, "", raw, "malformed job", 0, time.Now())
	assert.Empty(t, entry.ProductIDs)
}

func TestPopRetryDelay(t *testing.T) {
	ctx := context.Background()
	assert.Zero(t, popRetryDelay(ctx, redis.Nil), "empty queue is not a failure")
	assert.Equal(t, popErrorBackoff, popRetryDelay(ctx, errors.New("dial tcp: connection refused")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Zero(t, popRetryDelay(cancelled, errors.New("dial tcp: connection refused")))
}

type commandCounter struct{ n atomic.Int32 }

func (h *commandCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *commandCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.n.Add(1)
		return next(ctx, cmd)
	}
}

func (h *commandCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRunWorker_BacksOffWhenRedisIsDown(t *testing.T) {
	// Nothing listens on port 1, so every BRPOP fails immediately.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	counter := &commandCounter{}
	rdb.AddHook(counter)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		runWorker(ctx, rdb, map[string]Handler{}, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after ctx was cancelled")
	}
	assert.LessOrEqual(t, counter.n.Load(), int32(2), "a failing BRPOP must not be retried in a tight loop")
	assert.GreaterOrEqual(t, counter.n.Load(), int32(1))
}

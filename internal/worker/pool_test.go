package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	calls    int
	failures int // fail this many times before succeeding
	err      error
}

func (h *countingHandler) Process(_ context.Context, _ json.RawMessage) error {
	h.calls++
	if h.calls <= h.failures {
		return h.err
	}
	return nil
}

func TestRunJob_RetriesUntilSuccess(t *testing.T) {
	h := &countingHandler{failures: 2, err: errors.New("smtp timeout")}
	attempts, err := runJob(context.Background(), map[string]Handler{JobLowStock: h},
		Job{Type: JobLowStock}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunJob_GivesUpAfterMaxAttempts(t *testing.T) {
	h := &countingHandler{failures: 10, err: errors.New("smtp timeout")}
	attempts, err := runJob(context.Background(), map[string]Handler{JobLowStock: h},
		Job{Type: JobLowStock}, 3, time.Millisecond)
	assert.EqualError(t, err, "smtp timeout")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, h.calls)
}

func TestRunJob_PermanentErrorStopsRetrying(t *testing.T) {
	h := &countingHandler{failures: 10, err: Permanent(errors.New("bad payload"))}
	attempts, err := runJob(context.Background(), map[string]Handler{JobLowStock: h},
		Job{Type: JobLowStock}, 3, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRunJob_UnknownType(t *testing.T) {
	attempts, err := runJob(context.Background(), map[string]Handler{}, Job{Type: "mystery"}, 3, time.Millisecond)
	assert.ErrorContains(t, err, "no handler")
	assert.Zero(t, attempts)
}

func TestWithRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, time.Hour, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanent_NilStaysNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSMTP = errors.New("dial tcp: connection refused")

func TestBreaker_TripsAndRecovers(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute})
	b.now = func() time.Time { return clock }

	fail := func() error { return errSMTP }
	ok := func() error { return nil }

	assert.ErrorIs(t, b.Execute(fail), errSMTP)
	assert.Equal(t, BreakerClosed, b.State())
	assert.ErrorIs(t, b.Execute(fail), errSMTP)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not call through")

	clock = clock.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())
	require.NoError(t, b.Execute(ok))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second})
	b.now = func() time.Time { return clock }

	_ = b.Execute(func() error { return errSMTP })
	clock = clock.Add(time.Second)
	require.Equal(t, BreakerHalfOpen, b.State())

	_ = b.Execute(func() error { return errSMTP })
	assert.Equal(t, BreakerOpen, b.State())
	assert.Equal(t, "open", b.State().String())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2})
	_ = b.Execute(func() error { return errSMTP })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errSMTP })
	assert.Equal(t, BreakerClosed, b.State())
}

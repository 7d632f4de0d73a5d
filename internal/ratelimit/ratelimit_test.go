package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbill/openbill/internal/ratelimit"
)

type stubStore struct {
	count       int
	windowStart time.Time
	err         error
}

func (s *stubStore) Increment(_ context.Context, _ string, _ time.Duration) (int, time.Time, error) {
	if s.err != nil {
		return 0, time.Time{}, s.err
	}

	s.count++

	return s.count, s.windowStart, nil
}

func TestLimiter_Allow(t *testing.T) {
	start := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	window := 15 * time.Minute

	limiter := ratelimit.NewLimiter(&stubStore{windowStart: start})

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(context.Background(), "user:send", 3, window)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should pass", i+1)
	}

	res, err := limiter.Allow(context.Background(), "user:send", 3, window)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, start.Add(window), res.ResetAt)
}

func TestLimiter_PropagatesStoreError(t *testing.T) {
	limiter := ratelimit.NewLimiter(&stubStore{err: errors.New("db down")})

	_, err := limiter.Allow(context.Background(), "user:send", 3, time.Minute)
	assert.Error(t, err)
}

// Package ratelimit enforces rolling-window request caps keyed by
// actor and action.
package ratelimit

import (
	"context"
	"time"
)

type Store interface {
	// Increment bumps the counter for key, resetting it first when the
	// current window has expired. Returns the post-increment count and
	// the window's start time.
	Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

type Result struct {
	Allowed bool
	ResetAt time.Time
}

type Limiter struct {
	store Store
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	count, windowStart, err := l.store.Increment(ctx, key, window)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Allowed: count <= limit,
		ResetAt: windowStart.Add(window),
	}, nil
}

// Package ratelimit holds the two rate limiters of the gate.
//
// Limiter is authoritative: it counts durable transaction records created by
// the server clock. Advisory is an in-memory token bucket per key, used to
// shed load early and to give clients quick feedback. Advisory never decides
// whether a transaction is accepted.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Counter counts an identity's transaction records created at or after since.
// store.Unit satisfies it.
type Counter interface {
	CountSince(ctx context.Context, identityID string, since time.Time) (int, error)
}

type Limiter struct {
	max    int
	window time.Duration
}

func NewLimiter(maxCount int, window time.Duration) (*Limiter, error) {
	if maxCount <= 0 {
		return nil, errors.New("max count must be positive")
	}

	if window <= 0 {
		return nil, errors.New("window must be positive")
	}

	return &Limiter{max: maxCount, window: window}, nil
}

// Allow reports whether identityID may submit another transaction at now.
// Records in [now-window, now] count; the request is refused once that count
// reaches the maximum.
func (l *Limiter) Allow(ctx context.Context, c Counter, identityID string, now time.Time) (bool, error) {
	n, err := c.CountSince(ctx, identityID, now.Add(-l.window))
	if err != nil {
		return false, fmt.Errorf("count recent transactions: %w", err)
	}

	return n < l.max, nil
}

func (l *Limiter) Max() int {
	return l.max
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

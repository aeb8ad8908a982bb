package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	times []time.Time
	err   error
}

func (f *fakeCounter) CountSince(_ context.Context, _ string, since time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}

	n := 0
	for _, ts := range f.times {
		if !ts.Before(since) {
			n++
		}
	}

	return n, nil
}

func TestLimiter_Boundary(t *testing.T) {
	t.Parallel()

	l, err := NewLimiter(10, time.Minute)
	require.NoError(t, err)

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := &fakeCounter{}

	for i := range 10 {
		ok, err := l.Allow(context.Background(), c, "u1", now)
		require.NoError(t, err)
		require.True(t, ok, "request %d refused", i+1)

		c.times = append(c.times, now)
	}

	ok, err := l.Allow(context.Background(), c, "u1", now)
	require.NoError(t, err)
	assert.False(t, ok, "11th request allowed")
}

func TestLimiter_WindowEdges(t *testing.T) {
	t.Parallel()

	l, err := NewLimiter(1, time.Minute)
	require.NoError(t, err)

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	onEdge := &fakeCounter{times: []time.Time{now.Add(-time.Minute)}}
	ok, err := l.Allow(context.Background(), onEdge, "u1", now)
	require.NoError(t, err)
	assert.False(t, ok, "record exactly at window start must count")

	expired := &fakeCounter{times: []time.Time{now.Add(-time.Minute - time.Millisecond)}}
	ok, err = l.Allow(context.Background(), expired, "u1", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_CounterError(t *testing.T) {
	t.Parallel()

	l, err := NewLimiter(10, time.Minute)
	require.NoError(t, err)

	down := errors.New("db down")

	ok, err := l.Allow(context.Background(), &fakeCounter{err: down}, "u1", time.Now())
	require.ErrorIs(t, err, down)
	assert.False(t, ok)
}

func TestNewLimiter_Rejects(t *testing.T) {
	t.Parallel()

	_, err := NewLimiter(0, time.Minute)
	require.Error(t, err)

	_, err = NewLimiter(1, 0)
	require.Error(t, err)
}

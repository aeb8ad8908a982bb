package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvisory_PerWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	a := PerWindow(10, time.Minute).WithClock(func() time.Time { return now })

	for i := range 10 {
		assert.True(t, a.Allow("u1"), "event %d", i+1)
	}

	assert.False(t, a.Allow("u1"))
	assert.True(t, a.Allow("u2"), "keys must not share buckets")

	now = now.Add(7 * time.Second)
	assert.True(t, a.Allow("u1"), "one token refills every 6s")
	assert.False(t, a.Allow("u1"))
}

func TestAdvisory_Cleanup(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	a := NewAdvisory(1, 1).WithClock(func() time.Time { return now })

	a.Allow("old")
	now = now.Add(time.Hour)
	a.Allow("new")

	assert.Equal(t, 1, a.Cleanup(10*time.Minute))
	assert.Equal(t, 1, a.Len())
}

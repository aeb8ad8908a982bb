package freshness

import "time"

// DefaultWindow is the accepted clock skew in either direction.
const DefaultWindow = 5 * time.Minute

// IsFresh reports whether ts lies within window of now, in either direction.
// Both bounds are inclusive. The check compares instants rather than a
// Duration, which saturates for timestamps centuries away.
func IsFresh(ts, now time.Time, window time.Duration) bool {
	if window < 0 {
		return false
	}

	return !ts.Before(now.Add(-window)) && !ts.After(now.Add(window))
}

// FromMillis converts a Unix millisecond timestamp.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

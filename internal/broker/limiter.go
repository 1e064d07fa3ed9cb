package broker

import (
	"sync"
	"time"
)

// limiter is a sliding-window rate limiter for outbound call requests.
// An attempt blocked by the limit itself is not recorded, so it never
// counts toward a later window.
type limiter struct {
	mu      sync.Mutex
	perUser map[string][]time.Time
	max     int
	window  time.Duration
	now     func() time.Time
}

func newLimiter(max int, window time.Duration) *limiter {
	return &limiter{
		perUser: make(map[string][]time.Time),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether userID may issue another request, recording the
// attempt when it does.
func (l *limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	l.perUser[userID] = pruneOld(l.perUser[userID], cutoff)
	if len(l.perUser[userID]) >= l.max {
		return false
	}

	l.perUser[userID] = append(l.perUser[userID], now)
	return true
}

func pruneOld(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}

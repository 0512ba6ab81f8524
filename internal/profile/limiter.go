package profile

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a key must go unused before its bucket is refilled
// and can be forgotten.
const idleAfter = time.Minute

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter hands out one token bucket per key.
type keyedLimiter struct {
	mu        sync.Mutex
	entries   map[string]*keyedEntry
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// newKeyedLimiter allows perMinute events per key, all of them in a burst.
func newKeyedLimiter(perMinute int) *keyedLimiter {
	return &keyedLimiter{
		entries: make(map[string]*keyedEntry),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= idleAfter {
		l.sweep(now)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// sweep forgets keys idle for at least idleAfter. Callers hold l.mu.
func (l *keyedLimiter) sweep(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) >= idleAfter {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

func (l *keyedLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Package ratelimit implements sliding-window admission control keyed by
// client identity. Window-based rather than token-bucket: the cost of a
// generation call dwarfs limiter overhead now, so burst smoothing precision
// is not required.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultWindow      = time.Minute
	defaultMaxRequests = 60
)

// Config holds the limiter tunables.
type Config struct {
	// Window is the trailing duration timestamps are counted over.
	Window time.Duration
	// MaxRequests is the admission cap per key within Window.
	MaxRequests int
}

// Limiter is a per-key sliding-window admission gate. Entries are created
// lazily on first request per key and stale timestamps are pruned lazily on
// each check; there is no background sweep and no global key cap.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time

	// now is swappable in tests.
	now func() time.Time
}

// New constructs a Limiter, applying defaults for unset config fields.
func New(cfg Config) *Limiter {
	l := &Limiter{
		window: cfg.Window,
		max:    cfg.MaxRequests,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
	if l.window <= 0 {
		l.window = defaultWindow
	}
	if l.max <= 0 {
		l.max = defaultMaxRequests
	}
	return l
}

// Admit decides admission for key: it prunes timestamps older than the
// window, rejects without recording when the remaining count has reached
// the cap, and otherwise records now and admits. The read-prune-append
// sequence runs under one lock acquisition.
func (l *Limiter) Admit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// Pending returns the in-window request count for key without recording.
func (l *Limiter) Pending(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

package resilience

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures a KeyedLimiter.
type LimiterOpts struct {
	// Rate is the number of tokens added per second for each key.
	Rate float64
	// Burst is the bucket capacity for each key.
	Burst int
	// IdleTTL drops buckets not touched for this long.
	IdleTTL time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// KeyedLimiter keeps one token bucket per key (usually a client address).
type KeyedLimiter struct {
	mu      sync.Mutex
	opts    LimiterOpts
	buckets map[string]*bucket
	sweptAt time.Time
	now     func() time.Time
}

// NewKeyedLimiter creates a per-key limiter.
func NewKeyedLimiter(opts LimiterOpts) *KeyedLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{opts: opts, buckets: make(map[string]*bucket), now: time.Now}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.sweptAt) >= l.opts.IdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.opts.IdleTTL {
				delete(l.buckets, k)
			}
		}
		l.sweptAt = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.opts.Rate), l.opts.Burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

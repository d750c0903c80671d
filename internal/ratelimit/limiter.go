package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Registry holds one token-bucket limiter per identifying key (the
// caller's token, or its network address when no token is present).
// The lock only covers map and limiter bookkeeping, never network I/O.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
}

type keyedLimiter struct {
	limiter   *rate.Limiter
	perMinute int
}

// NewRegistry creates an empty limiter registry
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*keyedLimiter)}
}

// Allow reports whether the request identified by key may proceed under
// a limit of perMinute requests per minute. The limiter for a key is
// rebuilt whenever the computed limit changes, so a caller's rising or
// falling quota takes effect on the very next request.
func (r *Registry) Allow(key string, perMinute int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kl, ok := r.limiters[key]
	if !ok || kl.perMinute != perMinute {
		kl = &keyedLimiter{
			limiter:   rate.NewLimiter(perMinuteLimit(perMinute), perMinute),
			perMinute: perMinute,
		}
		r.limiters[key] = kl
	}

	return kl.limiter.Allow()
}

func perMinuteLimit(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

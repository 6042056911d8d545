package security

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a caller exceeds its budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig bounds tool invocations per caller.
type RateLimitConfig struct {
	// InvocationsPerMin is the sustained rate. Zero selects the default.
	InvocationsPerMin int `yaml:"invocations_per_min"`
	// Burst is the bucket size. Zero means InvocationsPerMin.
	Burst int `yaml:"burst"`
	// IdleTTL evicts limiters of callers that went quiet. Zero selects the
	// default.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

const (
	defaultInvocationsPerMin = 120
	defaultIdleTTL           = 10 * time.Minute
)

// RateLimiter keeps one token bucket per caller key (an API token or a
// remote address).
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	callers map[string]*caller
}

type caller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter applies defaults to zero fields of cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	perMin := cfg.InvocationsPerMin
	if perMin <= 0 {
		perMin = defaultInvocationsPerMin
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = perMin
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(perMin) / 60),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		callers: make(map[string]*caller),
	}
}

// Allow consumes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.callers[key]
	if !ok {
		rl.evict(now)
		c = &caller{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.callers[key] = c
	}
	c.lastSeen = now
	if !c.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Len reports the number of tracked callers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}

// evict drops idle callers. Called with mu held.
func (rl *RateLimiter) evict(now time.Time) {
	for k, c := range rl.callers {
		if now.Sub(c.lastSeen) > rl.ttl {
			delete(rl.callers, k)
		}
	}
}

package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Requests are limited per user, collection and request class. Listing a
// collection and mutating it draw from separate buckets, and each collection
// has its own pair. Account routes (wipe) use the empty collection.

const (
	sweepInterval = 10 * time.Minute
	idleBucketTTL = time.Hour
)

type requestClass string

const (
	classRead  requestClass = "read"
	classWrite requestClass = "write"
)

func requestClassOf(r *http.Request) requestClass {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return classRead
	default:
		return classWrite
	}
}

type bucketKey struct {
	user       string
	collection string
	class      requestClass
}

// scope is the value of X-RateLimit-Scope, e.g. "cart:write"
func (k bucketKey) scope() string {
	c := k.collection
	if c == "" {
		c = "account"
	}
	return c + ":" + string(k.class)
}

// bucketPolicy is the resolved limit of one request class
type bucketPolicy struct {
	limit  int     // requests per window, reported as X-RateLimit-Limit
	burst  int     // bucket capacity
	refill float64 // tokens per second
}

func (cfg RateLimitInfo) policy(class requestClass) bucketPolicy {
	limit, burst := cfg.MaxRequests, cfg.Burst
	if class == classWrite {
		if cfg.WriteMaxRequests > 0 {
			limit = cfg.WriteMaxRequests
		}
		if cfg.WriteBurst > 0 {
			burst = cfg.WriteBurst
		}
	}
	return bucketPolicy{
		limit:  limit,
		burst:  burst,
		refill: float64(limit) / float64(cfg.WindowSeconds),
	}
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// limitResult is the outcome of one RateLimiter.Allow call
type limitResult struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration // until the next token, zero when allowed
	reset      time.Time     // when the bucket is full again
	policy     bucketPolicy
}

// RateLimiter holds the token buckets of one middleware instance.
// Buckets live in memory, so limits are per server instance.
type RateLimiter struct {
	cfg RateLimitInfo
	now func() time.Time

	mu        sync.Mutex
	buckets   map[bucketKey]*tokenBucket
	lastSweep time.Time
}

// NewRateLimiter creates a limiter for cfg
func NewRateLimiter(cfg RateLimitInfo) *RateLimiter {
	return &RateLimiter{
		cfg:       cfg,
		now:       time.Now,
		buckets:   make(map[bucketKey]*tokenBucket),
		lastSweep: time.Now(),
	}
}

// Allow takes a token from the bucket of key if one is available
func (rl *RateLimiter) Allow(key bucketKey) limitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	p := rl.cfg.policy(key.class)
	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(p.burst), last: now}
		rl.buckets[key] = b
	}

	b.tokens = math.Min(float64(p.burst), b.tokens+now.Sub(b.last).Seconds()*p.refill)
	b.last = now

	res := limitResult{policy: p}
	if b.tokens >= 1 {
		b.tokens--
		res.allowed = true
		res.remaining = int(b.tokens)
	} else {
		res.retryAfter = seconds((1 - b.tokens) / p.refill)
	}
	res.reset = now.Add(seconds((float64(p.burst) - b.tokens) / p.refill))
	return res
}

// sweep drops buckets idle for longer than idleBucketTTL. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < sweepInterval {
		return
	}
	rl.lastSweep = now
	for key, b := range rl.buckets {
		if now.Sub(b.last) > idleBucketTTL {
			delete(rl.buckets, key)
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// RateLimitMiddleware enforces cfg per user, collection and request class.
// Each middleware instance owns its own limiter. Requests without a user
// are passed through.
func RateLimitMiddleware(cfg RateLimitInfo) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserID(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := bucketKey{
				user:       userID,
				collection: chi.URLParam(r, "collection"),
				class:      requestClassOf(r),
			}
			res := limiter.Allow(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.policy.limit))
			h.Set("X-RateLimit-Burst", strconv.Itoa(res.policy.burst))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.reset.Unix(), 10))
			h.Set("X-RateLimit-Scope", key.scope())

			if !res.allowed {
				retryAfter := max(1, int(math.Ceil(res.retryAfter.Seconds())))
				h.Set("Retry-After", strconv.Itoa(retryAfter))

				log.Ctx(r.Context()).Warn().
					Str("userId", userID).
					Str("scope", key.scope()).
					Int("retryAfter", retryAfter).
					Msg("rate limit exceeded")

				writeError(w, r, http.StatusTooManyRequests, "rate_limited")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity whose bucket it drains.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys authenticated traffic by user and everything else by
// client IP. The prefixes keep the two namespaces apart.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per identity. Routes that call
// out to the payment processor can be given a higher token cost so a single
// user cannot open intents at the same pace as they read their inbox.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc
	costs map[string]int // route template -> tokens

	mu         sync.Mutex
	buckets    map[string]*bucket
	idleTTL    time.Duration
	sweepEvery uint64
	lookups    uint64
	now        func() time.Time
}

// LimiterOption customises a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithRouteCost charges n tokens for requests matching the gin route
// template path. Costs above the burst are clamped so the route stays
// reachable.
func WithRouteCost(path string, n int) LimiterOption {
	return func(rl *RateLimiter) {
		if n > 1 {
			rl.costs[path] = n
		}
	}
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to burst.
// A burst below 1 is raised to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, opts ...LimiterOption) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		rps:        rate.Limit(rps),
		burst:      burst,
		keyFn:      keyFn,
		costs:      map[string]int{},
		buckets:    make(map[string]*bucket),
		idleTTL:    10 * time.Minute,
		sweepEvery: 5000,
		now:        time.Now,
	}
	for _, o := range opts {
		o(rl)
	}
	for p, n := range rl.costs {
		if n > burst {
			rl.costs[p] = burst
		}
	}
	return rl
}

// limiterFor returns the bucket for key. Every sweepEvery lookups idle
// buckets are dropped first, so a stale bucket is replaced rather than revived.
func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

func (rl *RateLimiter) cost(c *gin.Context) int {
	if n, ok := rl.costs[c.FullPath()]; ok {
		return n
	}
	return 1
}

// Handler enforces the limits. Rejections get 429 with the standard error
// envelope and a Retry-After computed from the bucket's refill time.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := rl.now()
		n := rl.cost(c)
		lim := rl.limiterFor(rl.keyFn(c), now)
		if lim.AllowN(now, n) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim, now, n)))
		rateLimited.WithLabelValues(routeLabel(c)).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"error":      "Too many requests",
		})
	}
}

// retryAfter is the whole number of seconds until n tokens are available,
// never less than one.
func retryAfter(lim *rate.Limiter, now time.Time, n int) int {
	r := lim.ReserveN(now, n)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	if s := int(math.Ceil(d.Seconds())); s > 1 {
		return s
	}
	return 1
}

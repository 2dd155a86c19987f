// Inbound rate limiting.
//
// RateLimiter keeps one token bucket (golang.org/x/time/rate) per caller and
// charges each request a route-dependent cost: an admission check or a plan
// fans out to the status source once per account, so those routes can be
// priced above a plain rate calculation. Buckets are process-local and idle
// ones are evicted opportunistically. Requests flagged as idempotent replays
// by IdempotencyValidator are never charged.
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

// Rate-limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

const (
	visitorTTL        = 10 * time.Minute
	visitorSweepEvery = 5000 // lookups between idle sweeps
)

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByClientOrIP keys buckets by the X-Client-ID resolved by ClientIdentity,
// or by client IP for anonymous callers ("client:crm-eu", "ip:203.0.113.7").
func KeyByClientOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := ClientID(c); id != AnonymousClient {
			return "client:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	costs    map[string]int
	ttl      time.Duration
	lookups  uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (values <= 0 become 1). Every route costs one token until SetCost
// says otherwise.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		costs:    make(map[string]int),
		ttl:      visitorTTL,
	}
}

// SetCost prices method on route (a Gin route template such as
// "/api/v1/plans") at n tokens. Costs above the burst are charged as the
// full burst.
func (rl *RateLimiter) SetCost(method, route string, n int) *RateLimiter {
	if n < 1 {
		n = 1
	}
	rl.mu.Lock()
	rl.costs[method+" "+route] = n
	rl.mu.Unlock()
	return rl
}

func (rl *RateLimiter) cost(method, route string) int {
	rl.mu.Lock()
	n, ok := rl.costs[method+" "+route]
	rl.mu.Unlock()
	if !ok {
		return 1
	}
	if n > rl.burst {
		return rl.burst
	}
	return n
}

// getVisitor returns the bucket for key, creating it if needed. The idle
// sweep runs before the lookup so a stale bucket for key itself is dropped.
func (rl *RateLimiter) getVisitor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= visitorSweepEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator exempted this request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limits. Admitted requests carry X-RateLimit-Limit and
// X-RateLimit-Remaining; rejected ones get 429 with a Retry-After (whole
// seconds, at least 1) derived from the bucket's refill rate.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		lim := rl.getVisitor(rl.keyFn(c), now)
		res := lim.ReserveN(now, rl.cost(c.Request.Method, c.FullPath()))

		wait := time.Second
		if res.OK() {
			if wait = res.DelayFrom(now); wait == 0 {
				h := c.Writer.Header()
				h.Set(HeaderRateLimitLimit, strconv.Itoa(rl.burst))
				h.Set(HeaderRateLimitRemaining, strconv.Itoa(remaining(lim.TokensAt(now))))
				c.Next()
				return
			}
			res.CancelAt(now)
		}

		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		c.Header(HeaderRateLimitRemaining, "0")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

func remaining(tokens float64) int {
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

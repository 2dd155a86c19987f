// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header and detects replays early,
// before the rate limiter runs. Handlers still serve the stored result; the
// middleware only marks the request so a retried plan creation is neither
// throttled nor counted twice against the caller's budget.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's idempotency key for POST requests.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdempotencyKeyLen = 200
)

var defaultIdempotencyKeyRE = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether a stored result already exists for this request's
// client, scope and key.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts key characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope names the stored operation a request would replay ("plans").
	// An empty scope, or a nil func, skips the lookup.
	Scope func(c *gin.Context) string
	// Now defaults to time.Now; the lookup receives it in UTC.
	Now func() time.Time
}

// IdempotencyLookup reports whether an unexpired record exists for
// (clientID, scope, key). Expiry is the lookup's concern.
type IdempotencyLookup func(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator rejects malformed keys with 400, stores accepted keys
// for GetIdempotencyKey and flags replays for IsReplay and the rate limiter.
// A failing lookup is logged and treated as "no replay".
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdempotencyKeyLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdempotencyKeyRE
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		raw, present := c.Request.Header[HeaderIdempotencyKey]
		if !present {
			c.Next()
			return
		}
		key := strings.TrimSpace(strings.Join(raw, ","))
		if key == "" || len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup == nil || opts.Scope == nil {
			c.Next()
			return
		}
		scope := opts.Scope(c)
		if scope == "" {
			c.Next()
			return
		}
		exists, err := lookup(c.Request.Context(), ClientID(c), scope, key, now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
		case exists:
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}

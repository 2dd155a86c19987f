package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/policy"
	"github.com/tbourn/go-send-pacer/internal/statusclient"
)

// StatusSource fetches the raw quota status of one account.
type StatusSource interface {
	Fetch(ctx context.Context, accountID string) (*statusclient.StatusResponse, error)
}

// Cache defaults.
const (
	DefaultStatusTTL          = 60 * time.Second
	DefaultStatusFetchTimeout = 5 * time.Second

	defaultThrottleReason = "throttled by status source"
)

// statusKey identifies one cache entry.
type statusKey struct {
	AccountID string
	Class     domain.ChannelClass
}

// flightKey encodes k for singleflight. Classes never contain NUL, so the
// encoding is injective.
func (k statusKey) flightKey() string {
	return string(k.Class) + "\x00" + k.AccountID
}

type statusEntry struct {
	status    domain.RateLimitStatus
	fetchedAt time.Time
}

// StatusCache holds the last-known status per (account, channel class).
//
// Entries younger than TTL are served without I/O. A miss or a stale entry
// triggers one fetch per key, shared by concurrent callers. A failed fetch
// yields the fail-open default (full quota, not throttled) which is never
// stored, so the next call retries. Safe for concurrent use.
type StatusCache struct {
	Source  StatusSource
	Policy  *policy.Policy
	TTL     time.Duration
	Timeout time.Duration
	Now     func() time.Time

	mu      sync.Mutex
	entries map[statusKey]statusEntry
	gen     uint64 // bumped by Clear; stale in-flight fetches do not store
	group   singleflight.Group
}

// NewStatusCache constructs a StatusCache. Non-positive ttl or timeout fall
// back to the defaults.
func NewStatusCache(src StatusSource, p *policy.Policy, ttl, timeout time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	if timeout <= 0 {
		timeout = DefaultStatusFetchTimeout
	}
	return &StatusCache{
		Source:  src,
		Policy:  p,
		TTL:     ttl,
		Timeout: timeout,
		Now:     time.Now,
		entries: make(map[statusKey]statusEntry),
	}
}

func (c *StatusCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get returns the status of accountID on class. Fetch failures never surface
// as errors; only invalid input does.
func (c *StatusCache) Get(ctx context.Context, accountID string, class domain.ChannelClass) (domain.RateLimitStatus, error) {
	limits, ok := c.Policy.ChannelLimits(class)
	if !ok {
		return domain.RateLimitStatus{}, ErrUnknownChannelClass
	}
	if strings.TrimSpace(accountID) == "" {
		return domain.RateLimitStatus{}, ErrEmptyAccountID
	}
	key := statusKey{AccountID: accountID, Class: class}

	if st, ok := c.lookup(key); ok {
		statusLookups.WithLabelValues("hit").Inc()
		return st, nil
	}

	st, err := c.fetch(ctx, key)
	st, fresh := resolve(st, err, limits, c.now())
	if !fresh {
		statusLookups.WithLabelValues("fallback").Inc()
		log.Warn().
			Err(err).
			Str("account_id", statusclient.MaskAccountID(accountID)).
			Str("channel_class", string(class)).
			Msg("status fetch failed; using default quota")
		return st, nil
	}
	statusLookups.WithLabelValues("miss").Inc()
	return st, nil
}

// Clear drops every entry unconditionally.
func (c *StatusCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[statusKey]statusEntry)
	c.gen++
	c.mu.Unlock()
	cacheClears.Inc()
}

// Len reports the number of cached entries, fresh or stale.
func (c *StatusCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *StatusCache) lookup(key statusKey) (domain.RateLimitStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.TTL {
		return domain.RateLimitStatus{}, false
	}
	return e.status, true
}

// fetch performs (or joins) the single outbound call for key and stores a
// successful answer. The shared call is detached from any one caller's
// cancellation and bounded by Timeout; a caller whose own context ends first
// stops waiting and gets ctx.Err().
func (c *StatusCache) fetch(ctx context.Context, key statusKey) (domain.RateLimitStatus, error) {
	if c.Source == nil {
		return domain.RateLimitStatus{}, statusclient.ErrNotConfigured
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	ch := c.group.DoChan(key.flightKey(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.Timeout)
		defer cancel()

		resp, err := c.Source.Fetch(fctx, key.AccountID)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, errEmptyStatus
		}
		limits, _ := c.Policy.ChannelLimits(key.Class)
		now := c.now()
		st := normalizeStatus(resp, limits, now)

		c.mu.Lock()
		if c.gen == gen {
			c.entries[key] = statusEntry{status: st, fetchedAt: now}
		}
		c.mu.Unlock()
		return st, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.RateLimitStatus{}, res.Err
		}
		return res.Val.(domain.RateLimitStatus), nil
	case <-ctx.Done():
		return domain.RateLimitStatus{}, ctx.Err()
	}
}

// resolve is the fail-open boundary: it maps a fetch result to the status
// handed to callers. Any error becomes the default status with fresh=false.
func resolve(st domain.RateLimitStatus, err error, limits domain.ChannelLimits, now time.Time) (domain.RateLimitStatus, bool) {
	if err != nil {
		return defaultStatus(limits, now), false
	}
	return st, true
}

var errEmptyStatus = errors.New("status source returned no body")

// defaultStatus is the optimistic status used when the source is unreachable.
func defaultStatus(limits domain.ChannelLimits, now time.Time) domain.RateLimitStatus {
	return domain.RateLimitStatus{
		CurrentRate:       0,
		RemainingToday:    limits.MaxPerDay,
		RemainingThisHour: limits.MaxPerHour,
		NextResetTime:     now.Add(time.Hour),
		IsThrottled:       false,
	}
}

// normalizeStatus fills absent fields from limits, clamps counters at zero
// and keeps ThrottleReason present iff IsThrottled.
func normalizeStatus(r *statusclient.StatusResponse, limits domain.ChannelLimits, now time.Time) domain.RateLimitStatus {
	st := defaultStatus(limits, now)
	if r.CurrentRate != nil {
		st.CurrentRate = max(*r.CurrentRate, 0)
	}
	if r.RemainingToday != nil {
		st.RemainingToday = max(*r.RemainingToday, 0)
	}
	if r.RemainingHour != nil {
		st.RemainingThisHour = max(*r.RemainingHour, 0)
	}
	if r.NextResetTime != nil && !r.NextResetTime.IsZero() {
		st.NextResetTime = *r.NextResetTime
	}
	if r.IsThrottled {
		st.IsThrottled = true
		st.ThrottleReason = strings.TrimSpace(r.ThrottleReason)
		if st.ThrottleReason == "" {
			st.ThrottleReason = defaultThrottleReason
		}
	}
	return st
}

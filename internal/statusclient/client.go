// Package statusclient talks to the external quota-status source that reports
// per-account send counters:
//
//	GET {base}/rate-limit-status/{accountId}
//	200 {"current_rate":3,"remaining_today":950,"remaining_hour":180,
//	     "next_reset_time":"2025-03-03T11:00:00Z","is_throttled":false}
//
// Any non-2xx answer surfaces as *APIError. The client never substitutes
// defaults; callers decide how to degrade.
package statusclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned by Fetch when no base URL is set.
var ErrNotConfigured = errors.New("status source not configured")

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// StatusResponse is the wire shape of a status answer. Numeric fields are
// pointers so an absent field can be told apart from a reported zero.
type StatusResponse struct {
	CurrentRate    *int       `json:"current_rate"`
	RemainingToday *int       `json:"remaining_today"`
	RemainingHour  *int       `json:"remaining_hour"`
	NextResetTime  *time.Time `json:"next_reset_time"`
	IsThrottled    bool       `json:"is_throttled"`
	ThrottleReason string     `json:"throttle_reason,omitempty"`
}

// APIError represents a non-2xx response from the status source.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status source error (status %d): %s", e.Status, e.Body)
}

// Client fetches account status. Limiter, when set, paces outbound calls so a
// burst of cache misses cannot hammer the source.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

// New builds a Client with a pooled transport. rps <= 0 disables pacing.
func New(baseURL string, timeout time.Duration, rps float64, burst int) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

// Fetch returns the raw status of accountID. The context bounds both the wait
// for a limiter token and the HTTP round trip.
func (c *Client) Fetch(ctx context.Context, accountID string) (*StatusResponse, error) {
	tr := otel.Tracer("statusclient")
	ctx, span := tr.Start(ctx, "Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("account.id", MaskAccountID(accountID))),
	)
	defer span.End()

	out, err := c.fetch(ctx, accountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (c *Client) fetch(ctx context.Context, accountID string) (*StatusResponse, error) {
	if c.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for status source slot: %w", err)
		}
	}

	u := c.BaseURL + "/rate-limit-status/" + url.PathEscape(accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var out StatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &out, nil
}

// MaskAccountID keeps the last four characters of an account id. Account ids
// are usually phone numbers, so only the masked form reaches logs and spans.
func MaskAccountID(id string) string {
	r := []rune(id)
	if len(r) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// Package services – PacingService
//
// PacingService is the one process-wide pacing core. It owns the status
// cache and exposes the rate calculator, admission checker, adaptive adjuster
// and business-hours scheduler. It is constructed once at startup and injected
// into the HTTP handlers.
//
// Observability: every public method is OpenTelemetry-instrumented.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/policy"
)

// Admission reason formats.
const (
	reasonThrottled    = "Account %s is currently throttled: %s"
	reasonDailyQuota   = "Account %s has insufficient daily quota (%d remaining, %d needed)"
	reasonHourlyWait   = "Account %s needs to wait %d minutes for hourly reset"
	defaultScheduleMin = 60
)

// PacingService coordinates the pacing units over one Policy and one StatusCache.
type PacingService struct {
	Policy *policy.Policy
	Cache  *StatusCache
	Now    func() time.Time

	// Defaults applied by planning and scheduling when the caller omits them.
	DefaultTimezone      string
	DefaultBusinessHours domain.BusinessHours
	// ScheduleThresholdMinutes is the ETA above which a plan on a
	// business-hours class gets a multi-day schedule.
	ScheduleThresholdMinutes int
}

// NewPacingService wires a PacingService with 09:00–17:00 UTC defaults.
func NewPacingService(p *policy.Policy, cache *StatusCache) *PacingService {
	return &PacingService{
		Policy:                   p,
		Cache:                    cache,
		Now:                      time.Now,
		DefaultTimezone:          "UTC",
		DefaultBusinessHours:     domain.BusinessHours{Start: "09:00", End: "17:00"},
		ScheduleThresholdMinutes: defaultScheduleMin,
	}
}

func (s *PacingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func tracer() trace.Tracer { return otel.Tracer("services/PacingService") }

// CalculateOptimalRateLimit returns the baseline pacing for a campaign.
func (s *PacingService) CalculateOptimalRateLimit(ctx context.Context, class domain.ChannelClass, recipientCount, accountCount int, priority domain.Priority) (domain.RateLimitCalculation, error) {
	_, span := tracer().Start(ctx, "CalculateOptimalRateLimit",
		trace.WithAttributes(
			attribute.String("channel.class", string(class)),
			attribute.Int("recipients", recipientCount),
			attribute.Int("accounts", accountCount),
			attribute.String("priority", string(priority)),
		),
	)
	defer span.End()

	return CalculateOptimalRateLimit(s.Policy, class, recipientCount, accountCount, priority)
}

// GetRateLimitStatus returns the cached or freshly fetched status of one
// account. An unreachable status source yields the default status.
func (s *PacingService) GetRateLimitStatus(ctx context.Context, accountID string, class domain.ChannelClass) (domain.RateLimitStatus, error) {
	ctx, span := tracer().Start(ctx, "GetRateLimitStatus",
		trace.WithAttributes(attribute.String("channel.class", string(class))),
	)
	defer span.End()

	return s.Cache.Get(ctx, accountID, class)
}

// ClearCache drops every cached account status.
func (s *PacingService) ClearCache() {
	s.Cache.Clear()
}

// CanExecuteCampaign checks every account (sequentially, without
// short-circuiting) against an even split of recipientCount and aggregates
// one reason per failed check.
//
// An account blocks the campaign when it is throttled, when its remaining
// daily quota is below its share, or when its remaining hourly quota is below
// min(share, hourly demand cap). The last case also contributes a wait until
// the account's next reset; EstimatedDelayMinutes is the longest such wait and
// is nil when no account needs to wait.
func (s *PacingService) CanExecuteCampaign(ctx context.Context, accountIDs []string, class domain.ChannelClass, recipientCount int) (domain.AdmissionResult, error) {
	ctx, span := tracer().Start(ctx, "CanExecuteCampaign",
		trace.WithAttributes(
			attribute.String("channel.class", string(class)),
			attribute.Int("accounts", len(accountIDs)),
			attribute.Int("recipients", recipientCount),
		),
	)
	defer span.End()

	if !class.Valid() {
		return domain.AdmissionResult{}, ErrUnknownChannelClass
	}
	if len(accountIDs) == 0 {
		return domain.AdmissionResult{}, ErrNoAccounts
	}
	for _, id := range accountIDs {
		if strings.TrimSpace(id) == "" {
			return domain.AdmissionResult{}, ErrEmptyAccountID
		}
	}
	if recipientCount < 0 || recipientCount > MaxRecipientCount {
		return domain.AdmissionResult{}, ErrInvalidRecipientCount
	}

	share := ceilDiv(recipientCount, len(accountIDs))
	hourlyNeed := min(share, s.Policy.HourlyDemandCap)

	res := domain.AdmissionResult{CanExecute: true, Reasons: []string{}}
	maxDelay, waiting := 0, false

	for _, id := range accountIDs {
		st, err := s.Cache.Get(ctx, id, class)
		if err != nil {
			return domain.AdmissionResult{}, err
		}

		if st.IsThrottled {
			res.CanExecute = false
			res.Reasons = append(res.Reasons, fmt.Sprintf(reasonThrottled, id, st.ThrottleReason))
		}
		if st.RemainingToday < share {
			res.CanExecute = false
			res.Reasons = append(res.Reasons, fmt.Sprintf(reasonDailyQuota, id, st.RemainingToday, share))
		}
		if st.RemainingThisHour < hourlyNeed {
			delay := minutesUntil(s.now(), st.NextResetTime)
			res.CanExecute = false
			res.Reasons = append(res.Reasons, fmt.Sprintf(reasonHourlyWait, id, delay))
			waiting = true
			maxDelay = max(maxDelay, delay)
		}
	}
	if maxDelay > 0 {
		res.EstimatedDelayMinutes = &maxDelay
	}

	outcome := "allowed"
	switch {
	case !res.CanExecute && waiting:
		outcome = "wait"
	case !res.CanExecute:
		outcome = "denied"
	}
	admissionDecisions.WithLabelValues(string(class), outcome).Inc()
	span.SetAttributes(attribute.Bool("admission.can_execute", res.CanExecute))

	return res, nil
}

// minutesUntil returns ceil((t-now)/1m), never negative.
func minutesUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// GetAdaptiveRateLimit revises baseRate from the caller's recent failure ratio.
func (s *PacingService) GetAdaptiveRateLimit(ctx context.Context, baseRate int, class domain.ChannelClass, recentFailureRate float64) (int, error) {
	_, span := tracer().Start(ctx, "GetAdaptiveRateLimit",
		trace.WithAttributes(
			attribute.String("channel.class", string(class)),
			attribute.Int("base_rate", baseRate),
			attribute.Float64("failure_rate", recentFailureRate),
		),
	)
	defer span.End()

	return AdaptiveRateLimit(s.Policy, baseRate, class, recentFailureRate)
}

// CalculateBusinessHoursSchedule previews a multi-day schedule. Empty
// timezone or business hours fall back to the service defaults.
func (s *PacingService) CalculateBusinessHoursSchedule(ctx context.Context, recipientCount, ratePerMinute int, timezone string, hours *domain.BusinessHours) (domain.BusinessHoursSchedule, error) {
	_, span := tracer().Start(ctx, "CalculateBusinessHoursSchedule",
		trace.WithAttributes(
			attribute.Int("recipients", recipientCount),
			attribute.Int("rate_per_minute", ratePerMinute),
			attribute.String("timezone", timezone),
		),
	)
	defer span.End()

	if strings.TrimSpace(timezone) == "" {
		timezone = s.DefaultTimezone
	}
	bh := s.DefaultBusinessHours
	if hours != nil {
		bh = *hours
	}
	return CalculateBusinessHoursSchedule(s.now(), recipientCount, ratePerMinute, timezone, bh)
}

// ChannelPolicy describes how a channel class should be driven.
type ChannelPolicy struct {
	ChannelClass          domain.ChannelClass         `json:"channel_class"`
	Limits                domain.ChannelLimits        `json:"limits"`
	SafetyFactors         map[domain.Priority]float64 `json:"safety_factors"`
	MinimumRate           int                         `json:"minimum_rate"`
	RequiresBusinessHours bool                        `json:"requires_business_hours"`
	AntiBan               domain.AntiBanSettings      `json:"anti_ban"`
}

// ChannelPolicy returns the limits, safety factors and anti-ban settings of class.
func (s *PacingService) ChannelPolicy(class domain.ChannelClass) (ChannelPolicy, error) {
	limits, ok := s.Policy.ChannelLimits(class)
	if !ok {
		return ChannelPolicy{}, ErrUnknownChannelClass
	}
	factors := make(map[domain.Priority]float64, len(s.Policy.SafetyFactors[class]))
	for k, v := range s.Policy.SafetyFactors[class] {
		factors[k] = v
	}
	return ChannelPolicy{
		ChannelClass:          class,
		Limits:                limits,
		SafetyFactors:         factors,
		MinimumRate:           s.Policy.CalculatorFloor[class],
		RequiresBusinessHours: s.Policy.RequiresBusinessHours(class),
		AntiBan:               s.Policy.AntiBanSettings(class),
	}, nil
}

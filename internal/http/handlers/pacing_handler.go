// Pacing HTTP handlers.
//
// This file exposes the stateless pacing operations:
//   - POST   /rate-limits/calculate                 (baseline rate)
//   - POST   /rate-limits/adaptive                  (failure-driven revision)
//   - GET    /accounts/{id}/rate-limit-status       (cached quota status)
//   - DELETE /rate-limits/cache                     (drop cached statuses)
//   - POST   /campaigns/admission                   (can the campaign run now)
//   - POST   /schedules/business-hours              (multi-day batch layout)
//   - GET    /channels/{class}/policy               (limits and anti-ban profile)
//
// Handlers are transport-thin: they bind and normalize input, call the
// pacing service, and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/http/middleware"
	"github.com/tbourn/go-send-pacer/internal/services"
	"github.com/tbourn/go-send-pacer/internal/utils"
)

//
// Service contracts (context-aware)
//

// PacingService defines the pacing operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PacingService interface {
	CalculateOptimalRateLimit(ctx context.Context, class domain.ChannelClass, recipientCount, accountCount int, priority domain.Priority) (domain.RateLimitCalculation, error)
	GetAdaptiveRateLimit(ctx context.Context, baseRate int, class domain.ChannelClass, recentFailureRate float64) (int, error)
	GetRateLimitStatus(ctx context.Context, accountID string, class domain.ChannelClass) (domain.RateLimitStatus, error)
	ClearCache()
	CanExecuteCampaign(ctx context.Context, accountIDs []string, class domain.ChannelClass, recipientCount int) (domain.AdmissionResult, error)
	CalculateBusinessHoursSchedule(ctx context.Context, recipientCount, ratePerMinute int, timezone string, hours *domain.BusinessHours) (domain.BusinessHoursSchedule, error)
	ChannelPolicy(class domain.ChannelClass) (services.ChannelPolicy, error)
}

// PlanService defines stored campaign plan operations.
type PlanService interface {
	// Create plans a campaign, or replays the plan stored under idemKey.
	Create(ctx context.Context, clientID, idemKey string, in services.PlanInput) (*domain.Plan, bool, error)
	// Get returns one plan owned by clientID.
	Get(ctx context.Context, clientID, id string) (*domain.Plan, error)
	// ListPage returns a page of plans for clientID and the total count.
	ListPage(ctx context.Context, clientID string, page, pageSize int) ([]domain.Plan, int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for pacing operations and stored plans.
type Handlers struct {
	pacing PacingService
	plans  PlanService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(pacing PacingService, plans PlanService) *Handlers {
	return &Handlers{pacing: pacing, plans: plans}
}

// clientID returns the caller identity resolved by middleware.ClientIdentity.
func clientID(c *gin.Context) string { return middleware.ClientID(c) }

//
// DTOs
//

// CalculateRateRequest is the JSON payload for a baseline rate calculation.
type CalculateRateRequest struct {
	// ChannelClass is "regulated" or "unregulated" ("official"/"unofficial" accepted).
	ChannelClass   string `json:"channel_class" binding:"required" example:"unregulated"`
	RecipientCount int    `json:"recipient_count" example:"600"`
	AccountCount   int    `json:"account_count" example:"1"`
	// Priority is low, medium or high; empty means medium.
	Priority string `json:"priority" example:"medium"`
}

// AdaptiveRateRequest is the JSON payload for a failure-driven rate revision.
type AdaptiveRateRequest struct {
	ChannelClass      string  `json:"channel_class" binding:"required" example:"unregulated"`
	BaseRate          int     `json:"base_rate" example:"20"`
	RecentFailureRate float64 `json:"recent_failure_rate" example:"0.12"`
}

// AdaptiveRateResponse carries the revised per-minute rate.
type AdaptiveRateResponse struct {
	BaseRate     int `json:"base_rate" example:"20"`
	AdjustedRate int `json:"adjusted_rate" example:"11"`
}

// AdmissionRequest is the JSON payload for an admission check.
type AdmissionRequest struct {
	ChannelClass   string   `json:"channel_class" binding:"required" example:"unregulated"`
	AccountIDs     []string `json:"account_ids" binding:"required" example:"acct-1,acct-2"`
	RecipientCount int      `json:"recipient_count" example:"100"`
}

// ScheduleRequest is the JSON payload for a business-hours schedule.
type ScheduleRequest struct {
	RecipientCount int    `json:"recipient_count" example:"2000"`
	RatePerMinute  int    `json:"rate_per_minute" example:"2"`
	Timezone       string `json:"timezone,omitempty" example:"Europe/Athens"`
	// BusinessHours overrides the configured window when set.
	BusinessHours *domain.BusinessHours `json:"business_hours,omitempty"`
}

//
// Helpers
//

// clampPagination reads page and page_size from the query, bounded by
// utils.ParsePage.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// parseClass resolves a channel class or writes a 400.
func parseClass(c *gin.Context, raw string) (domain.ChannelClass, bool) {
	class, ok := domain.ParseChannelClass(raw)
	if !ok {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrUnknownChannelClass.Error())
	}
	return class, ok
}

// parsePriority resolves a priority (empty means medium) or writes a 400.
func parsePriority(c *gin.Context, raw string) (domain.Priority, bool) {
	if strings.TrimSpace(raw) == "" {
		return domain.PriorityMedium, true
	}
	p, ok := domain.ParsePriority(raw)
	if !ok {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrInvalidPriority.Error())
	}
	return p, ok
}

//
// Handlers
//

// CalculateRateLimit godoc
// @ID          calculateRateLimit
// @Summary     Calculate a safe send rate
// @Description Returns the recommended per-account rate, delay, ETA and advisory warnings for a campaign.
// @Tags        Pacing
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CalculateRateRequest  true  "Campaign shape"
//
// @Success     200  {object}  domain.RateLimitCalculation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rate-limits/calculate [post]
func (h *Handlers) CalculateRateLimit(c *gin.Context) {
	var req CalculateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	class, okc := parseClass(c, req.ChannelClass)
	if !okc {
		return
	}
	prio, okp := parsePriority(c, req.Priority)
	if !okp {
		return
	}

	calc, err := h.pacing.CalculateOptimalRateLimit(c.Request.Context(), class, req.RecipientCount, req.AccountCount, prio)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, calc)
}

// AdaptiveRateLimit godoc
// @ID          adaptiveRateLimit
// @Summary     Revise a rate from recent failures
// @Description Shrinks a base rate in proportion to the recent delivery failure ratio, never below the class minimum.
// @Tags        Pacing
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AdaptiveRateRequest  true  "Base rate and failure ratio"
//
// @Success     200  {object}  handlers.AdaptiveRateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /rate-limits/adaptive [post]
func (h *Handlers) AdaptiveRateLimit(c *gin.Context) {
	var req AdaptiveRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	class, okc := parseClass(c, req.ChannelClass)
	if !okc {
		return
	}

	rate, err := h.pacing.GetAdaptiveRateLimit(c.Request.Context(), req.BaseRate, class, req.RecentFailureRate)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, AdaptiveRateResponse{BaseRate: req.BaseRate, AdjustedRate: rate})
}

// GetRateLimitStatus godoc
// @ID          getRateLimitStatus
// @Summary     Account quota status
// @Description Returns the cached quota status of one account. When the status source is unreachable a conservative default (full quota, not throttled) is returned.
// @Tags        Pacing
// @Produce     json
//
// @Param       id       path   string  true  "Account ID"     example(acct-1)
// @Param       channel  query  string  true  "Channel class"  Enums(regulated, unregulated)
//
// @Success     200  {object}  domain.RateLimitStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /accounts/{id}/rate-limit-status [get]
func (h *Handlers) GetRateLimitStatus(c *gin.Context) {
	class, okc := parseClass(c, c.Query("channel"))
	if !okc {
		return
	}
	st, err := h.pacing.GetRateLimitStatus(c.Request.Context(), c.Param("id"), class)
	if err != nil {
		failService(c, err, ErrCodeStatusFailed)
		return
	}
	ok(c, http.StatusOK, st)
}

// ClearStatusCache godoc
// @ID          clearStatusCache
// @Summary     Clear cached account statuses
// @Description Drops every cached status; the next lookup per account refetches.
// @Tags        Pacing
//
// @Success     204  {string}  string  "No Content"
// @Router      /rate-limits/cache [delete]
func (h *Handlers) ClearStatusCache(c *gin.Context) {
	h.pacing.ClearCache()
	middleware.LoggerFrom(c).Info().Msg("status cache cleared")
	noContent(c)
}

// CheckAdmission godoc
// @ID          checkAdmission
// @Summary     Check whether a campaign may run now
// @Description Consults every account's quota and aggregates blocking reasons and the longest wait.
// @Tags        Pacing
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AdmissionRequest  true  "Accounts and recipient count"
//
// @Success     200  {object}  domain.AdmissionResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /campaigns/admission [post]
func (h *Handlers) CheckAdmission(c *gin.Context) {
	var req AdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	class, okc := parseClass(c, req.ChannelClass)
	if !okc {
		return
	}

	res, err := h.pacing.CanExecuteCampaign(c.Request.Context(), req.AccountIDs, class, req.RecipientCount)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, res)
}

// BusinessHoursSchedule godoc
// @ID          businessHoursSchedule
// @Summary     Lay a campaign out over business days
// @Description Partitions recipients into one batch per weekday inside the business-hours window.
// @Tags        Pacing
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ScheduleRequest  true  "Recipients, rate and window"
//
// @Success     200  {object}  domain.BusinessHoursSchedule
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /schedules/business-hours [post]
func (h *Handlers) BusinessHoursSchedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sched, err := h.pacing.CalculateBusinessHoursSchedule(c.Request.Context(), req.RecipientCount, req.RatePerMinute, strings.TrimSpace(req.Timezone), req.BusinessHours)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, sched)
}

// GetChannelPolicy godoc
// @ID          getChannelPolicy
// @Summary     Channel class policy
// @Description Returns the limits, safety factors, minimum rate and anti-ban settings of a channel class.
// @Tags        Pacing
// @Produce     json
//
// @Param       class  path  string  true  "Channel class"  Enums(regulated, unregulated)
//
// @Success     200  {object}  services.ChannelPolicy
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /channels/{class}/policy [get]
func (h *Handlers) GetChannelPolicy(c *gin.Context) {
	class, okc := parseClass(c, c.Param("class"))
	if !okc {
		return
	}
	pol, err := h.pacing.ChannelPolicy(class)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, pol)
}

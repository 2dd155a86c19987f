// Plan HTTP handlers.
//
// This file exposes REST endpoints for stored campaign plans:
//   - POST /plans        (plan a campaign and persist the decision)
//   - GET  /plans        (list, paginated, ETag support)
//   - GET  /plans/{id}   (fetch one plan)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a plan was already
// created for (client, key) within the TTL, the stored plan is returned with
// 200 and `Idempotency-Replayed: true` instead of a new 201.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/http/middleware"
	"github.com/tbourn/go-send-pacer/internal/repo"
	"github.com/tbourn/go-send-pacer/internal/services"
	"github.com/tbourn/go-send-pacer/internal/utils"
)

// HeaderIdempotencyReplayed marks a response served from a stored plan.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// CreatePlanRequest is the JSON payload for planning a campaign.
type CreatePlanRequest struct {
	ChannelClass   string   `json:"channel_class" binding:"required" example:"unregulated"`
	Priority       string   `json:"priority" example:"medium"`
	RecipientCount int      `json:"recipient_count" example:"600"`
	AccountIDs     []string `json:"account_ids" binding:"required" example:"acct-1,acct-2"`
	// RecentFailureRate, when set, revises the rate through the adaptive adjuster.
	RecentFailureRate *float64              `json:"recent_failure_rate,omitempty" example:"0.05"`
	Timezone          string                `json:"timezone,omitempty" example:"Europe/Athens"`
	BusinessHours     *domain.BusinessHours `json:"business_hours,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListPlansResponse wraps a page of plans and pagination information.
type ListPlansResponse struct {
	Plans      []domain.Plan `json:"plans"`
	Pagination Pagination    `json:"pagination"`
}

//
// Handlers
//

// CreatePlan godoc
// @ID          createPlan
// @Summary     Plan a campaign
// @Description Runs rate calculation, admission, optional adaptive revision and, for long business-hours campaigns, scheduling; stores and returns the plan.
// @Description Supports idempotency via the Idempotency-Key header (same key → same plan).
// @Tags        Plans
// @Accept      json
// @Produce     json
//
// @Param       X-Client-ID      header  string  false "Client identifier"  example(crm-eu)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreatePlanRequest  true  "Campaign shape"
//
// @Success     201  {object}  domain.Plan  "Plan created"
// @Success     200  {object}  domain.Plan  "Stored plan replayed"
// @Header      200  {string}  Idempotency-Replayed  "true when replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /plans [post]
func (h *Handlers) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
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

	idemKey, _ := middleware.GetIdempotencyKey(c)
	plan, replayed, err := h.plans.Create(c.Request.Context(), clientID(c), idemKey, services.PlanInput{
		ChannelClass:      class,
		Priority:          prio,
		RecipientCount:    req.RecipientCount,
		AccountIDs:        req.AccountIDs,
		RecentFailureRate: req.RecentFailureRate,
		Timezone:          strings.TrimSpace(req.Timezone),
		BusinessHours:     req.BusinessHours,
	})
	if err != nil {
		failService(c, err, ErrCodePlanFailed)
		return
	}
	if replayed {
		c.Header(HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, plan)
		return
	}
	ok(c, http.StatusCreated, plan)
}

// ListPlans godoc
// @ID          listPlans
// @Summary     List plans (paginated)
// @Description Returns a page of the client's plans, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Plans
// @Produce     json
//
// @Param       X-Client-ID    header  string  false "Client identifier"           example(crm-eu)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListPlansResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /plans [get]
func (h *Handlers) ListPlans(c *gin.Context) {
	ctx := c.Request.Context()
	cid := clientID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.plans.(*services.PlanService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.PlansStats(ctx, db, cid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"plans:%s:%d:%d"`, cid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.plans.ListPage(ctx, cid, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListPlansResponse{
		Plans: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetPlan godoc
// @ID          getPlan
// @Summary     Get a plan
// @Tags        Plans
// @Produce     json
//
// @Param       X-Client-ID  header  string  false "Client identifier"  example(crm-eu)
// @Param       id           path    string  true  "Plan ID (UUID)"     format(uuid)
//
// @Success     200  {object} domain.Plan
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Plan not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /plans/{id} [get]
func (h *Handlers) GetPlan(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "plan id must be a UUID")
		return
	}
	plan, err := h.plans.Get(c.Request.Context(), clientID(c), id)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, plan)
}

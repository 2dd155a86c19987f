// Package services – PlanService
//
// PlanService composes the pacing units into a single stored decision for a
// campaign: baseline rate, admission verdict, optional adaptive revision,
// optional business-hours schedule and the anti-ban profile of the channel.
// Plans are persisted so callers can list and replay them.
//
// Idempotency: Create accepts an optional key. A replay of (client, key)
// within the TTL returns the stored plan without re-running admission.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/utils"
)

// IdempotencyScopePlans scopes idempotency keys used by plan creation.
const IdempotencyScopePlans = "plans"

// PlanRepo defines the repository contract required by PlanService.
type PlanRepo interface {
	// CreatePlan inserts a fully populated plan.
	CreatePlan(ctx context.Context, db *gorm.DB, p *domain.Plan) error

	// GetPlan fetches a plan by ID ensuring it belongs to the client.
	GetPlan(ctx context.Context, db *gorm.DB, id, clientID string) (*domain.Plan, error)

	// CountPlans returns the total number of plans for pagination.
	CountPlans(ctx context.Context, db *gorm.DB, clientID string) (int64, error)

	// ListPlansPage returns a page of plans, newest first.
	ListPlansPage(ctx context.Context, db *gorm.DB, clientID string, offset, limit int) ([]domain.Plan, error)
}

// IdempotencyRepo records processed requests for safe retries.
type IdempotencyRepo interface {
	GetIdempotency(ctx context.Context, db *gorm.DB, clientID, scope, key string, now time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, db *gorm.DB, clientID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// PlanInput is the campaign shape submitted for planning.
type PlanInput struct {
	ChannelClass      domain.ChannelClass
	Priority          domain.Priority
	RecipientCount    int
	AccountIDs        []string
	RecentFailureRate *float64
	// Timezone and BusinessHours override the service defaults for the schedule.
	Timezone      string
	BusinessHours *domain.BusinessHours
}

// PlanCampaign runs every pacing unit over in and returns an unsaved plan.
//
// The final rate is the calculator's recommendation, revised by the adaptive
// adjuster when a failure rate is supplied. A schedule is attached only for
// classes that require business hours and whose final ETA exceeds
// ScheduleThresholdMinutes; it is computed at the aggregate rate of all
// accounts.
func (s *PacingService) PlanCampaign(ctx context.Context, in PlanInput) (*domain.Plan, error) {
	ctx, span := tracer().Start(ctx, "PlanCampaign",
		trace.WithAttributes(
			attribute.String("channel.class", string(in.ChannelClass)),
			attribute.Int("recipients", in.RecipientCount),
			attribute.Int("accounts", len(in.AccountIDs)),
		),
	)
	defer span.End()

	if len(in.AccountIDs) == 0 {
		return nil, ErrNoAccounts
	}
	accounts := len(in.AccountIDs)

	calc, err := s.CalculateOptimalRateLimit(ctx, in.ChannelClass, in.RecipientCount, accounts, in.Priority)
	if err != nil {
		return nil, err
	}
	adm, err := s.CanExecuteCampaign(ctx, in.AccountIDs, in.ChannelClass, in.RecipientCount)
	if err != nil {
		return nil, err
	}

	p := &domain.Plan{
		ChannelClass:      in.ChannelClass,
		Priority:          in.Priority,
		RecipientCount:    in.RecipientCount,
		AccountIDs:        append([]string(nil), in.AccountIDs...),
		RecentFailureRate: in.RecentFailureRate,
		Calculation:       calc,
		Admission:         adm,
		AntiBan:           s.Policy.AntiBanSettings(in.ChannelClass),
	}

	rate := calc.RecommendedMessagesPerMinute
	if in.RecentFailureRate != nil {
		adj, err := s.GetAdaptiveRateLimit(ctx, rate, in.ChannelClass, *in.RecentFailureRate)
		if err != nil {
			return nil, err
		}
		p.AdjustedRate = &adj
		rate = adj
	}
	p.FinalRatePerMinute = rate
	p.FinalDelayMs = delayMs(rate)
	p.FinalCompletionMin = ceilDiv(in.RecipientCount, rate*accounts)

	if s.Policy.RequiresBusinessHours(in.ChannelClass) && p.FinalCompletionMin > s.ScheduleThresholdMinutes {
		sched, err := s.CalculateBusinessHoursSchedule(ctx, in.RecipientCount, rate*accounts, in.Timezone, in.BusinessHours)
		if err != nil {
			return nil, err
		}
		p.Schedule = &sched
	}

	span.SetAttributes(
		attribute.Int("plan.final_rate", p.FinalRatePerMinute),
		attribute.Bool("plan.scheduled", p.Schedule != nil),
	)
	return p, nil
}

// PlanService persists campaign plans produced by PacingService.
type PlanService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the plan repository used by this service.
	Repo PlanRepo
	// Idem records idempotency keys; nil disables replay.
	Idem IdempotencyRepo
	// Pacing produces the plans.
	Pacing *PacingService

	// IdempotencyTTL bounds how long a key replays its plan.
	IdempotencyTTL time.Duration
}

// NewPlanService constructs a PlanService with a 24h idempotency window.
func NewPlanService(db *gorm.DB, r PlanRepo, idem IdempotencyRepo, pacing *PacingService) *PlanService {
	return &PlanService{
		DB:             db,
		Repo:           r,
		Idem:           idem,
		Pacing:         pacing,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Create plans a campaign for clientID and stores it. When idemKey is set
// and a live record exists, the stored plan is returned with replayed=true.
func (s *PlanService) Create(ctx context.Context, clientID, idemKey string, in PlanInput) (plan *domain.Plan, replayed bool, err error) {
	tr := otel.Tracer("services/PlanService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.Bool("idempotent", idemKey != ""),
		),
	)
	defer span.End()

	idemKey = strings.TrimSpace(idemKey)
	if idemKey != "" && s.Idem != nil {
		rec, gerr := s.Idem.GetIdempotency(ctx, s.DB, clientID, IdempotencyScopePlans, idemKey, time.Now().UTC())
		if gerr == nil && rec != nil {
			prev, perr := s.Repo.GetPlan(ctx, s.DB, rec.ResourceID, clientID)
			if perr == nil {
				span.SetAttributes(attribute.Bool("idempotency.replayed", true))
				return prev, true, nil
			}
		}
	}

	p, err := s.Pacing.PlanCampaign(ctx, in)
	if err != nil {
		if !errors.Is(err, ErrInvalidInput) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, false, err
	}
	p.ID = uuid.NewString()
	p.ClientID = clientID

	if err := s.Repo.CreatePlan(ctx, s.DB, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	// Best effort: a lost race on the same key still returns this plan.
	if idemKey != "" && s.Idem != nil {
		_, _ = s.Idem.CreateIdempotency(ctx, s.DB, clientID, IdempotencyScopePlans, idemKey, p.ID, 201, s.IdempotencyTTL)
	}
	return p, false, nil
}

// Get returns a stored plan owned by clientID.
func (s *PlanService) Get(ctx context.Context, clientID, id string) (*domain.Plan, error) {
	p, err := s.Repo.GetPlan(ctx, s.DB, id, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPage returns a page of the client's plans and the total count.
func (s *PlanService) ListPage(ctx context.Context, clientID string, page, pageSize int) ([]domain.Plan, int64, error) {
	tr := otel.Tracer("services/PlanService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	page, pageSize = utils.ClampPage(page, pageSize)
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.CountPlans(ctx, s.DB, clientID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Plan{}, 0, nil
	}

	items, err := s.Repo.ListPlansPage(ctx, s.DB, clientID, offset, pageSize)
	return items, total, err
}

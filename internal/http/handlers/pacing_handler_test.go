package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/http/middleware"
	"github.com/tbourn/go-send-pacer/internal/policy"
	"github.com/tbourn/go-send-pacer/internal/repo"
	"github.com/tbourn/go-send-pacer/internal/services"
	"github.com/tbourn/go-send-pacer/internal/statusclient"
)

// ---------- test env: status source + DB + real services ----------

// testNow is a Wednesday before business hours.
var testNow = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	r      *gin.Engine
	db     *gorm.DB
	pacing *services.PacingService
	calls  *atomic.Int32
}

// statusSource answers like the external quota source. Account "low" has 30
// left today, "busy" is throttled, "down" fails; everyone else is healthy.
func statusSource(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		account := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		w.Header().Set("Content-Type", "application/json")
		switch account {
		case "down":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		case "low":
			_, _ = w.Write([]byte(`{"current_rate":1,"remaining_today":30,"remaining_hour":30,"next_reset_time":"2026-10-14T09:00:00Z","is_throttled":false}`))
		case "busy":
			_, _ = w.Write([]byte(`{"current_rate":9,"remaining_today":500,"remaining_hour":100,"next_reset_time":"2026-10-14T09:00:00Z","is_throttled":true,"throttle_reason":"provider cooldown"}`))
		default:
			_, _ = w.Write([]byte(`{"current_rate":3,"remaining_today":950,"remaining_hour":180,"next_reset_time":"2026-10-14T09:00:00Z","is_throttled":false}`))
		}
	}
}

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:plan_handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Plan{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shims implementing the services repo contracts (like router.go).
type testPlanRepo struct{}

func (testPlanRepo) CreatePlan(ctx context.Context, db *gorm.DB, p *domain.Plan) error {
	return repo.CreatePlan(ctx, db, p)
}

func (testPlanRepo) GetPlan(ctx context.Context, db *gorm.DB, id, clientID string) (*domain.Plan, error) {
	return repo.GetPlan(ctx, db, id, clientID)
}

func (testPlanRepo) CountPlans(ctx context.Context, db *gorm.DB, clientID string) (int64, error) {
	return repo.CountPlans(ctx, db, clientID)
}

func (testPlanRepo) ListPlansPage(ctx context.Context, db *gorm.DB, clientID string, offset, limit int) ([]domain.Plan, error) {
	return repo.ListPlansPage(ctx, db, clientID, offset, limit)
}

type testIdemRepo struct{}

func (testIdemRepo) GetIdempotency(ctx context.Context, db *gorm.DB, clientID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, clientID, scope, key, now)
}

func (testIdemRepo) CreateIdempotency(ctx context.Context, db *gorm.DB, clientID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, clientID, scope, key, resourceID, status, ttl)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	calls := &atomic.Int32{}
	src := httptest.NewServer(statusSource(calls))
	t.Cleanup(src.Close)

	pol := policy.Default()
	clock := func() time.Time { return testNow }
	cache := services.NewStatusCache(statusclient.New(src.URL, 2*time.Second, 0, 1), pol, time.Minute, 2*time.Second)
	cache.Now = clock
	pacing := services.NewPacingService(pol, cache)
	pacing.Now = clock

	db := newHandlerDB(t)
	plans := services.NewPlanService(db, testPlanRepo{}, testIdemRepo{}, pacing)
	h := New(pacing, plans)

	r := gin.New()
	r.Use(middleware.ClientIdentity())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/rate-limits/calculate", h.CalculateRateLimit)
	r.POST("/rate-limits/adaptive", h.AdaptiveRateLimit)
	r.GET("/accounts/:id/rate-limit-status", h.GetRateLimitStatus)
	r.DELETE("/rate-limits/cache", h.ClearStatusCache)
	r.POST("/campaigns/admission", h.CheckAdmission)
	r.POST("/schedules/business-hours", h.BusinessHoursSchedule)
	r.GET("/channels/:class/policy", h.GetChannelPolicy)
	r.POST("/plans", h.CreatePlan)
	r.GET("/plans", h.ListPlans)
	r.GET("/plans/:id", h.GetPlan)

	return &testEnv{r: r, db: db, pacing: pacing, calls: calls}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return out
}

// ---------- calculate / adaptive ----------

func TestCalculateRateLimit(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/rate-limits/calculate", `{"channel_class":"unofficial","recipient_count":600,"account_count":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("calculate -> %d body=%s", w.Code, w.Body.String())
	}
	calc := decode[domain.RateLimitCalculation](t, w)
	if calc.RecommendedMessagesPerMinute != 10 || calc.RecommendedDelayMs != 6000 || calc.EstimatedCompletionMinutes != 60 {
		t.Fatalf("unexpected calculation: %+v", calc)
	}
	if calc.SafetyFactor != 0.5 {
		t.Fatalf("omitted priority should default to medium, got factor %v", calc.SafetyFactor)
	}

	cases := []struct {
		name, body string
	}{
		{"bad json", `{bad`},
		{"unknown class", `{"channel_class":"carrier-pigeon","recipient_count":1,"account_count":1}`},
		{"bad priority", `{"channel_class":"regulated","recipient_count":1,"account_count":1,"priority":"urgent"}`},
		{"zero accounts", `{"channel_class":"regulated","recipient_count":1,"account_count":0}`},
		{"negative recipients", `{"channel_class":"regulated","recipient_count":-1,"account_count":1}`},
		{"huge recipients", `{"channel_class":"regulated","recipient_count":9223372036854775807,"account_count":1}`},
		{"huge accounts", `{"channel_class":"regulated","recipient_count":1,"account_count":9223372036854775807}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/rate-limits/calculate", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d body=%s", w.Code, w.Body.String())
			}
			if er := decode[ErrorResponse](t, w); er.Code != ErrCodeBadRequest {
				t.Fatalf("unexpected error body: %+v", er)
			}
		})
	}
}

func TestAdaptiveRateLimit(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/rate-limits/adaptive", `{"channel_class":"unregulated","base_rate":20,"recent_failure_rate":0.12}`)
	if w.Code != http.StatusOK {
		t.Fatalf("adaptive -> %d body=%s", w.Code, w.Body.String())
	}
	if got := decode[AdaptiveRateResponse](t, w); got.BaseRate != 20 || got.AdjustedRate != 11 {
		t.Fatalf("unexpected response: %+v", got)
	}

	w = env.do(http.MethodPost, "/rate-limits/adaptive", `{"channel_class":"unregulated","base_rate":20,"recent_failure_rate":1.5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range failure rate -> %d", w.Code)
	}
}

// ---------- status + cache ----------

func TestGetRateLimitStatus_AndClearCache(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/accounts/acct-1/rate-limit-status?channel=regulated", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status -> %d body=%s", w.Code, w.Body.String())
	}
	st := decode[domain.RateLimitStatus](t, w)
	if st.CurrentRate != 3 || st.RemainingToday != 950 || st.RemainingThisHour != 180 || st.IsThrottled {
		t.Fatalf("unexpected status: %+v", st)
	}

	// Cached: no second fetch.
	_ = env.do(http.MethodGet, "/accounts/acct-1/rate-limit-status?channel=regulated", "")
	if n := env.calls.Load(); n != 1 {
		t.Fatalf("source calls=%d, want 1", n)
	}

	if w := env.do(http.MethodDelete, "/rate-limits/cache", ""); w.Code != http.StatusNoContent {
		t.Fatalf("clear -> %d", w.Code)
	}
	_ = env.do(http.MethodGet, "/accounts/acct-1/rate-limit-status?channel=regulated", "")
	if n := env.calls.Load(); n != 2 {
		t.Fatalf("source calls after clear=%d, want 2", n)
	}
}

func TestGetRateLimitStatus_SourceDown_FailsOpen(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/accounts/down/rate-limit-status?channel=unregulated", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status -> %d body=%s", w.Code, w.Body.String())
	}
	st := decode[domain.RateLimitStatus](t, w)
	if st.RemainingToday != 1000 || st.RemainingThisHour != 200 || st.IsThrottled {
		t.Fatalf("want default quota, got %+v", st)
	}
	if !st.NextResetTime.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("next reset=%v, want %v", st.NextResetTime, testNow.Add(time.Hour))
	}
}

func TestGetRateLimitStatus_MissingChannel(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodGet, "/accounts/acct-1/rate-limit-status", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing channel -> %d", w.Code)
	}
	if n := env.calls.Load(); n != 0 {
		t.Fatalf("source must not be called on bad input, calls=%d", n)
	}
}

// ---------- admission ----------

func TestCheckAdmission(t *testing.T) {
	env := newTestEnv(t)

	t.Run("healthy", func(t *testing.T) {
		w := env.do(http.MethodPost, "/campaigns/admission", `{"channel_class":"unregulated","account_ids":["a1","a2"],"recipient_count":100}`)
		if w.Code != http.StatusOK {
			t.Fatalf("admission -> %d body=%s", w.Code, w.Body.String())
		}
		res := decode[domain.AdmissionResult](t, w)
		if !res.CanExecute || len(res.Reasons) != 0 || res.EstimatedDelayMinutes != nil {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("low quota and throttled", func(t *testing.T) {
		w := env.do(http.MethodPost, "/campaigns/admission", `{"channel_class":"unregulated","account_ids":["low","busy"],"recipient_count":100}`)
		if w.Code != http.StatusOK {
			t.Fatalf("admission -> %d body=%s", w.Code, w.Body.String())
		}
		res := decode[domain.AdmissionResult](t, w)
		want := []string{
			"Account low has insufficient daily quota (30 remaining, 50 needed)",
			"Account low needs to wait 60 minutes for hourly reset",
			"Account busy is currently throttled: provider cooldown",
		}
		if res.CanExecute || len(res.Reasons) != len(want) {
			t.Fatalf("unexpected result: %+v", res)
		}
		for i := range want {
			if res.Reasons[i] != want[i] {
				t.Fatalf("reason[%d]=%q, want %q", i, res.Reasons[i], want[i])
			}
		}
		if res.EstimatedDelayMinutes == nil || *res.EstimatedDelayMinutes != 60 {
			t.Fatalf("delay=%v, want 60", res.EstimatedDelayMinutes)
		}
	})

	t.Run("no accounts", func(t *testing.T) {
		w := env.do(http.MethodPost, "/campaigns/admission", `{"channel_class":"unregulated","account_ids":[],"recipient_count":10}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("no accounts -> %d", w.Code)
		}
	})
}

// ---------- schedule + policy ----------

func TestBusinessHoursSchedule(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/schedules/business-hours", `{"recipient_count":100,"rate_per_minute":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule -> %d body=%s", w.Code, w.Body.String())
	}
	s := decode[domain.BusinessHoursSchedule](t, w)
	if s.TotalDays != 1 || len(s.ScheduledBatches) != 1 || s.ScheduledBatches[0].MessageCount != 100 {
		t.Fatalf("unexpected schedule: %+v", s)
	}
	if start := s.ScheduledBatches[0].StartTime.UTC(); start.Hour() != 9 || start.Day() != 14 {
		t.Fatalf("batch should start today at 09:00, got %v", start)
	}

	w = env.do(http.MethodPost, "/schedules/business-hours", `{"recipient_count":100,"rate_per_minute":2,"timezone":"Mars/Olympus"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad timezone -> %d", w.Code)
	}
	w = env.do(http.MethodPost, "/schedules/business-hours", `{"recipient_count":100,"rate_per_minute":2,"business_hours":{"start":"18:00","end":"09:00"}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("inverted window -> %d", w.Code)
	}

	for name, body := range map[string]string{
		"huge rate":       `{"recipient_count":1000,"rate_per_minute":1152921504606846976}`,
		"huge recipients": `{"recipient_count":9223372036854775807,"rate_per_minute":2}`,
		"too many days":   `{"recipient_count":10000000,"rate_per_minute":1}`,
	} {
		w = env.do(http.MethodPost, "/schedules/business-hours", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s -> %d body=%s", name, w.Code, w.Body.String())
		}
	}
}

func TestGetChannelPolicy(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/channels/unofficial/policy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("policy -> %d body=%s", w.Code, w.Body.String())
	}
	pol := decode[services.ChannelPolicy](t, w)
	if pol.ChannelClass != domain.ChannelUnregulated || pol.Limits.MaxPerMinute != 20 || !pol.RequiresBusinessHours {
		t.Fatalf("unexpected policy: %+v", pol)
	}
	if pol.AntiBan.Mode != "conservative" || pol.MinimumRate != 1 {
		t.Fatalf("unexpected anti-ban/minimum: %+v", pol)
	}

	if w := env.do(http.MethodGet, "/channels/fax/policy", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown class -> %d", w.Code)
	}
}

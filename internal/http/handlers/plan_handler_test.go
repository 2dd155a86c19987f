package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/services"
)

const regulatedPlanBody = `{"channel_class":"regulated","priority":"medium","recipient_count":300,"account_ids":["acct-1"]}`

func TestCreatePlan_CreatedAndStored(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/plans", regulatedPlanBody, "X-Client-ID", "crm-eu")
	if w.Code != http.StatusCreated {
		t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
	}
	p := decode[domain.Plan](t, w)
	if _, err := uuid.Parse(p.ID); err != nil {
		t.Fatalf("plan id not a uuid: %q", p.ID)
	}
	if p.ClientID != "crm-eu" || p.FinalRatePerMinute != 64 || !p.Admission.CanExecute {
		t.Fatalf("unexpected plan: %+v", p)
	}
	if p.Schedule != nil {
		t.Fatalf("regulated class must not get a schedule")
	}
	if p.AntiBan.Mode != "moderate" {
		t.Fatalf("anti-ban not attached: %+v", p.AntiBan)
	}

	var count int64
	if err := env.db.Model(&domain.Plan{}).Where("id = ?", p.ID).Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("plan not persisted: count=%d err=%v", count, err)
	}
}

func TestCreatePlan_UnregulatedLongCampaignGetsSchedule(t *testing.T) {
	env := newTestEnv(t)

	body := `{"channel_class":"unregulated","recipient_count":1200,"account_ids":["acct-1"],"recent_failure_rate":0.01}`
	w := env.do(http.MethodPost, "/plans", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
	}
	p := decode[domain.Plan](t, w)
	if p.ClientID != "anonymous" {
		t.Fatalf("client id=%q, want anonymous", p.ClientID)
	}
	// 10/min baseline, 0.8 unregulated multiplier at a low failure rate.
	if p.AdjustedRate == nil || *p.AdjustedRate != 8 || p.FinalRatePerMinute != 8 {
		t.Fatalf("unexpected adaptive revision: adjusted=%v final=%d", p.AdjustedRate, p.FinalRatePerMinute)
	}
	if p.FinalCompletionMin != 150 {
		t.Fatalf("final eta=%d, want 150", p.FinalCompletionMin)
	}
	if p.Schedule == nil || p.Schedule.TotalDays != 1 || p.Schedule.ScheduledBatches[0].MessageCount != 1200 {
		t.Fatalf("unexpected schedule: %+v", p.Schedule)
	}
	// 950 remaining today cannot cover 1200 recipients.
	if p.Admission.CanExecute {
		t.Fatalf("admission should be denied: %+v", p.Admission)
	}
}

func TestCreatePlan_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(http.MethodPost, "/plans", regulatedPlanBody, "X-Client-ID", "crm-eu", "Idempotency-Key", "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("first -> %d body=%s", first.Code, first.Body.String())
	}
	calls := env.calls.Load()

	second := env.do(http.MethodPost, "/plans", regulatedPlanBody, "X-Client-ID", "crm-eu", "Idempotency-Key", "k-1")
	if second.Code != http.StatusOK {
		t.Fatalf("replay -> %d body=%s", second.Code, second.Body.String())
	}
	if second.Header().Get(HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("missing %s header", HeaderIdempotencyReplayed)
	}
	if a, b := decode[domain.Plan](t, first), decode[domain.Plan](t, second); a.ID != b.ID {
		t.Fatalf("replay returned a different plan: %s vs %s", a.ID, b.ID)
	}
	if env.calls.Load() != calls {
		t.Fatalf("replay must not consult the status source")
	}

	// Keys are per client.
	other := env.do(http.MethodPost, "/plans", regulatedPlanBody, "X-Client-ID", "crm-us", "Idempotency-Key", "k-1")
	if other.Code != http.StatusCreated {
		t.Fatalf("other client -> %d", other.Code)
	}
}

func TestCreatePlan_BadInput(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name, body string
	}{
		{"bad json", `{`},
		{"unknown class", `{"channel_class":"sms","recipient_count":1,"account_ids":["a"]}`},
		{"no accounts", `{"channel_class":"regulated","recipient_count":1,"account_ids":[]}`},
		{"blank account", `{"channel_class":"regulated","recipient_count":1,"account_ids":[" "]}`},
		{"bad failure rate", `{"channel_class":"regulated","recipient_count":1,"account_ids":["a"],"recent_failure_rate":2}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/plans", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetPlan(t *testing.T) {
	env := newTestEnv(t)

	created := decode[domain.Plan](t, env.do(http.MethodPost, "/plans", regulatedPlanBody, "X-Client-ID", "crm-eu"))

	w := env.do(http.MethodGet, "/plans/"+created.ID, "", "X-Client-ID", "crm-eu")
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d body=%s", w.Code, w.Body.String())
	}
	if got := decode[domain.Plan](t, w); got.ID != created.ID || got.RecipientCount != 300 {
		t.Fatalf("unexpected plan: %+v", got)
	}

	if w := env.do(http.MethodGet, "/plans/"+created.ID, "", "X-Client-ID", "someone-else"); w.Code != http.StatusNotFound {
		t.Fatalf("foreign plan -> %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/plans/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id -> %d", w.Code)
	}
}

func TestListPlans_ETag304_and_Page(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		if w := env.do(http.MethodPost, "/plans", regulatedPlanBody, "X-Client-ID", "crm-eu"); w.Code != http.StatusCreated {
			t.Fatalf("seed -> %d", w.Code)
		}
	}

	w := env.do(http.MethodGet, "/plans?page=1&page_size=2", "", "X-Client-ID", "crm-eu")
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	resp := decode[ListPlansResponse](t, w)
	if len(resp.Plans) != 2 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp.Pagination)
	}

	w = env.do(http.MethodGet, "/plans?page=1&page_size=2", "", "X-Client-ID", "crm-eu", "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional list -> %d", w.Code)
	}

	// Another client sees nothing.
	w = env.do(http.MethodGet, "/plans", "", "X-Client-ID", "crm-us")
	if got := decode[ListPlansResponse](t, w); got.Pagination.Total != 0 || len(got.Plans) != 0 {
		t.Fatalf("foreign list leaked: %+v", got)
	}
}

// ---------- stub-driven error mapping ----------

type stubPlans struct {
	err error
}

func (s stubPlans) Create(context.Context, string, string, services.PlanInput) (*domain.Plan, bool, error) {
	return nil, false, s.err
}

func (s stubPlans) Get(context.Context, string, string) (*domain.Plan, error) {
	return nil, s.err
}

func (s stubPlans) ListPage(context.Context, string, int, int) ([]domain.Plan, int64, error) {
	return nil, 0, s.err
}

func TestPlanHandlers_StoreFailuresMapTo500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	boom := errors.New("disk full")
	h := New(nil, stubPlans{err: boom})
	r := gin.New()
	r.POST("/plans", h.CreatePlan)
	r.GET("/plans", h.ListPlans)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader(regulatedPlanBody)))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("create -> %d", w.Code)
	}
	if er := decode[ErrorResponse](t, w); er.Code != ErrCodePlanFailed {
		t.Fatalf("code=%q, want %q", er.Code, ErrCodePlanFailed)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plans", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("list -> %d", w.Code)
	}
	if er := decode[ErrorResponse](t, w); er.Code != ErrCodeListFailed {
		t.Fatalf("code=%q, want %q", er.Code, ErrCodeListFailed)
	}
}

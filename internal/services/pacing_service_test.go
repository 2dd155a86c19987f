package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/policy"
	"github.com/tbourn/go-send-pacer/internal/statusclient"
)

func newTestPacing(src StatusSource, clk *fakeClock) *PacingService {
	p := policy.Default()
	c := NewStatusCache(src, p, time.Minute, time.Second)
	c.Now = clk.Now
	s := NewPacingService(p, c)
	s.Now = clk.Now
	return s
}

func TestCanExecuteCampaign_InsufficientDailyQuota(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	src := &fakeSource{}
	src.set("A", &statusclient.StatusResponse{RemainingToday: intp(30), RemainingHour: intp(500)})
	s := newTestPacing(src, clk)

	res, err := s.CanExecuteCampaign(context.Background(), []string{"A"}, domain.ChannelRegulated, 50)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CanExecute {
		t.Fatalf("want blocked")
	}
	want := "Account A has insufficient daily quota (30 remaining, 50 needed)"
	if len(res.Reasons) != 1 || res.Reasons[0] != want {
		t.Fatalf("reasons=%v, want [%q]", res.Reasons, want)
	}
	if res.EstimatedDelayMinutes != nil {
		t.Fatalf("unexpected delay %d", *res.EstimatedDelayMinutes)
	}
}

func TestCanExecuteCampaign_AllHealthy(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	src := &fakeSource{}
	src.set("A", &statusclient.StatusResponse{RemainingToday: intp(1000), RemainingHour: intp(100)})
	src.set("B", &statusclient.StatusResponse{RemainingToday: intp(1000), RemainingHour: intp(100)})
	s := newTestPacing(src, clk)

	res, err := s.CanExecuteCampaign(context.Background(), []string{"A", "B"}, domain.ChannelRegulated, 400)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.CanExecute || len(res.Reasons) != 0 || res.EstimatedDelayMinutes != nil {
		t.Fatalf("want admitted with no reasons, got %+v", res)
	}
}

func TestCanExecuteCampaign_AggregatesEveryAccount(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	src := &fakeSource{}
	soon := clk.t.Add(12*time.Minute + 30*time.Second)
	later := clk.t.Add(40 * time.Minute)
	src.set("A", &statusclient.StatusResponse{IsThrottled: true, ThrottleReason: "carrier block", RemainingToday: intp(5)})
	src.set("B", &statusclient.StatusResponse{RemainingToday: intp(1000), RemainingHour: intp(3), NextResetTime: &soon})
	src.set("C", &statusclient.StatusResponse{RemainingToday: intp(1000), RemainingHour: intp(0), NextResetTime: &later})
	s := newTestPacing(src, clk)

	res, err := s.CanExecuteCampaign(context.Background(), []string{"A", "B", "C"}, domain.ChannelUnregulated, 30)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CanExecute {
		t.Fatalf("want blocked")
	}
	want := []string{
		"Account A is currently throttled: carrier block",
		"Account A has insufficient daily quota (5 remaining, 10 needed)",
		"Account B needs to wait 13 minutes for hourly reset",
		"Account C needs to wait 40 minutes for hourly reset",
	}
	if fmt.Sprint(res.Reasons) != fmt.Sprint(want) {
		t.Fatalf("reasons=%q\nwant    %q", res.Reasons, want)
	}
	if res.EstimatedDelayMinutes == nil || *res.EstimatedDelayMinutes != 40 {
		t.Fatalf("delay=%v, want 40", res.EstimatedDelayMinutes)
	}
}

func TestCanExecuteCampaign_HourlyNeedIsCapped(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	src := &fakeSource{}
	// Share is 5000 but hourly demand is capped at 100.
	src.set("A", &statusclient.StatusResponse{RemainingToday: intp(10000), RemainingHour: intp(100)})
	s := newTestPacing(src, clk)

	res, err := s.CanExecuteCampaign(context.Background(), []string{"A"}, domain.ChannelRegulated, 5000)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.CanExecute {
		t.Fatalf("want admitted, got %v", res.Reasons)
	}
}

func TestCanExecuteCampaign_PastResetOmitsDelay(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	past := clk.t.Add(-5 * time.Minute)
	src := &fakeSource{}
	src.set("A", &statusclient.StatusResponse{RemainingToday: intp(100), RemainingHour: intp(0), NextResetTime: &past})
	s := newTestPacing(src, clk)

	res, err := s.CanExecuteCampaign(context.Background(), []string{"A"}, domain.ChannelRegulated, 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CanExecute {
		t.Fatalf("hourly shortfall must still block")
	}
	if len(res.Reasons) != 1 || !strings.Contains(res.Reasons[0], "0 minutes") {
		t.Fatalf("reasons=%v", res.Reasons)
	}
	if res.EstimatedDelayMinutes != nil {
		t.Fatalf("delay=%d, want omitted", *res.EstimatedDelayMinutes)
	}
}

func TestCanExecuteCampaign_SourceDownAdmits(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	s := newTestPacing(&fakeSource{err: errors.New("timeout")}, clk)

	res, err := s.CanExecuteCampaign(context.Background(), []string{"A"}, domain.ChannelRegulated, 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.CanExecute {
		t.Fatalf("fail-open default should admit, got %v", res.Reasons)
	}
}

func TestCanExecuteCampaign_InvalidInput(t *testing.T) {
	s := newTestPacing(&fakeSource{}, &fakeClock{t: time.Now()})
	ctx := context.Background()
	if _, err := s.CanExecuteCampaign(ctx, nil, domain.ChannelRegulated, 1); !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("want ErrNoAccounts, got %v", err)
	}
	if _, err := s.CanExecuteCampaign(ctx, []string{"A", ""}, domain.ChannelRegulated, 1); !errors.Is(err, ErrEmptyAccountID) {
		t.Fatalf("want ErrEmptyAccountID, got %v", err)
	}
	if _, err := s.CanExecuteCampaign(ctx, []string{"A"}, domain.ChannelRegulated, -1); !errors.Is(err, ErrInvalidRecipientCount) {
		t.Fatalf("want ErrInvalidRecipientCount, got %v", err)
	}
	if _, err := s.CanExecuteCampaign(ctx, []string{"A"}, domain.ChannelRegulated, MaxRecipientCount+1); !errors.Is(err, ErrInvalidRecipientCount) {
		t.Fatalf("want ErrInvalidRecipientCount, got %v", err)
	}
	if _, err := s.CanExecuteCampaign(ctx, []string{"A"}, "pager", 1); !errors.Is(err, ErrUnknownChannelClass) {
		t.Fatalf("want ErrUnknownChannelClass, got %v", err)
	}
	if got := s.Cache.Len(); got != 0 {
		t.Fatalf("invalid input reached the cache: len=%d", got)
	}
}

func TestPacingService_BusinessHoursDefaults(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
	s := newTestPacing(&fakeSource{}, clk)

	got, err := s.CalculateBusinessHoursSchedule(context.Background(), 1000, 5, "", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.TotalDays != 1 || got.ScheduledBatches[0].StartTime.Hour() != 9 {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestPacingService_ChannelPolicy(t *testing.T) {
	s := newTestPacing(&fakeSource{}, &fakeClock{t: time.Now()})

	cp, err := s.ChannelPolicy(domain.ChannelUnregulated)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cp.Limits.MaxPerDay != 1000 || cp.MinimumRate != 1 || !cp.RequiresBusinessHours {
		t.Fatalf("unexpected policy: %+v", cp)
	}
	if cp.AntiBan.Mode != "conservative" || cp.SafetyFactors[domain.PriorityHigh] != 0.4 {
		t.Fatalf("unexpected anti-ban/safety: %+v", cp)
	}

	// Returned map is a copy.
	cp.SafetyFactors[domain.PriorityHigh] = 1
	if f, _ := s.Policy.SafetyFactor(domain.ChannelUnregulated, domain.PriorityHigh); f != 0.4 {
		t.Fatalf("policy mutated through ChannelPolicy")
	}

	if _, err := s.ChannelPolicy("telex"); !errors.Is(err, ErrUnknownChannelClass) {
		t.Fatalf("want ErrUnknownChannelClass, got %v", err)
	}
}

func TestPlanCampaign_SchedulesLongUnregulatedCampaigns(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
	src := &fakeSource{}
	src.set("A", &statusclient.StatusResponse{RemainingToday: intp(5000), RemainingHour: intp(500)})
	s := newTestPacing(src, clk)

	fr := 0.12
	p, err := s.PlanCampaign(context.Background(), PlanInput{
		ChannelClass:      domain.ChannelUnregulated,
		Priority:          domain.PriorityMedium,
		RecipientCount:    600,
		AccountIDs:        []string{"A"},
		RecentFailureRate: &fr,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.Calculation.RecommendedMessagesPerMinute != 10 {
		t.Fatalf("baseline=%d, want 10", p.Calculation.RecommendedMessagesPerMinute)
	}
	// 10*0.7=7, 7*0.8=5.6 → 5
	if p.AdjustedRate == nil || *p.AdjustedRate != 5 || p.FinalRatePerMinute != 5 {
		t.Fatalf("adjusted=%v final=%d, want 5", p.AdjustedRate, p.FinalRatePerMinute)
	}
	if p.FinalDelayMs != 12000 || p.FinalCompletionMin != 120 {
		t.Fatalf("delay=%d eta=%d, want 12000/120", p.FinalDelayMs, p.FinalCompletionMin)
	}
	if p.Schedule == nil || p.Schedule.TotalDays != 1 {
		t.Fatalf("want one-day schedule, got %+v", p.Schedule)
	}
	if !p.Admission.CanExecute {
		t.Fatalf("want admitted, got %v", p.Admission.Reasons)
	}
	if !p.AntiBan.BusinessHoursOnly {
		t.Fatalf("unregulated anti-ban should require business hours")
	}
}

func TestPlanCampaign_RegulatedNoSchedule(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	s := newTestPacing(&fakeSource{err: errors.New("down")}, clk)

	p, err := s.PlanCampaign(context.Background(), PlanInput{
		ChannelClass:   domain.ChannelRegulated,
		Priority:       domain.PriorityLow,
		RecipientCount: 100000,
		AccountIDs:     []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.AdjustedRate != nil || p.Schedule != nil {
		t.Fatalf("unexpected adjustment/schedule: %+v", p)
	}
	if p.FinalRatePerMinute != 36 {
		t.Fatalf("final=%d, want 36", p.FinalRatePerMinute)
	}
}

func TestPlanCampaign_RejectsOverlongSchedule(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
	src := &fakeSource{}
	src.set("A", &statusclient.StatusResponse{RemainingToday: intp(5000), RemainingHour: intp(500)})
	s := newTestPacing(src, clk)

	_, err := s.PlanCampaign(context.Background(), PlanInput{
		ChannelClass:   domain.ChannelUnregulated,
		Priority:       domain.PriorityLow,
		RecipientCount: MaxRecipientCount,
		AccountIDs:     []string{"A"},
	})
	if !errors.Is(err, ErrScheduleTooLong) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrScheduleTooLong, got %v", err)
	}
}

func TestPlanCampaign_NoAccounts(t *testing.T) {
	s := newTestPacing(&fakeSource{}, &fakeClock{t: time.Now()})
	_, err := s.PlanCampaign(context.Background(), PlanInput{
		ChannelClass: domain.ChannelRegulated, Priority: domain.PriorityLow, RecipientCount: 1,
	})
	if !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("want ErrNoAccounts, got %v", err)
	}
}

func TestMinutesUntil(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[time.Duration]int{
		-time.Minute:     0,
		0:                0,
		time.Second:      1,
		time.Minute:      1,
		61 * time.Second: 2,
	}
	for d, want := range cases {
		if got := minutesUntil(now, now.Add(d)); got != want {
			t.Fatalf("minutesUntil(+%v)=%d, want %d", d, got, want)
		}
	}
}

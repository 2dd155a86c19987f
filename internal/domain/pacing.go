package domain

import "time"

// RateLimitCalculation is the recommended pacing for one campaign. It is
// recomputed per call and only persisted as part of a Plan.
type RateLimitCalculation struct {
	RecommendedMessagesPerMinute int           `json:"recommended_messages_per_minute" example:"36"`
	RecommendedDelayMs           int           `json:"recommended_delay_ms"            example:"1667"`
	EstimatedCompletionMinutes   int           `json:"estimated_completion_minutes"    example:"2"`
	SafetyFactor                 float64       `json:"safety_factor"                   example:"0.9"`
	Warnings                     []string      `json:"warnings"`
	ChannelLimits                ChannelLimits `json:"channel_limits"`
}

// RateLimitStatus is the last-known quota state of one account on one
// channel class. ThrottleReason is non-empty only when IsThrottled.
type RateLimitStatus struct {
	CurrentRate       int       `json:"current_rate"`
	RemainingToday    int       `json:"remaining_today"`
	RemainingThisHour int       `json:"remaining_this_hour"`
	NextResetTime     time.Time `json:"next_reset_time"`
	IsThrottled       bool      `json:"is_throttled"`
	ThrottleReason    string    `json:"throttle_reason,omitempty"`
}

// AdmissionResult is the outcome of checking whether a campaign may start now.
type AdmissionResult struct {
	CanExecute            bool     `json:"can_execute"`
	Reasons               []string `json:"reasons"`
	EstimatedDelayMinutes *int     `json:"estimated_delay_minutes,omitempty"`
}

// BusinessHours is a daily sending window in "HH:MM" local time.
type BusinessHours struct {
	Start string `json:"start" example:"09:00"`
	End   string `json:"end"   example:"17:00"`
}

// BusinessHoursBatch is one day's share of a scheduled campaign.
type BusinessHoursBatch struct {
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	MessageCount int       `json:"message_count"`
}

// BusinessHoursSchedule lays a campaign out over weekdays, in chronological
// order. TotalDays always equals len(ScheduledBatches).
type BusinessHoursSchedule struct {
	ScheduledBatches []BusinessHoursBatch `json:"scheduled_batches"`
	TotalDays        int                  `json:"total_days"`
}

// Package domain defines the pacing value objects and the persistence models
// for campaign plans. Persistent types are mapped with GORM; value objects are
// embedded into them as JSON columns.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Plan is a stored pacing decision for one campaign: the baseline rate, the
// admission verdict at planning time, an optional failure-driven revision and
// an optional business-hours schedule.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ClientID: caller that requested the plan; indexed with CreatedAt for listings.
//   - ChannelClass / Priority / RecipientCount / AccountIDs: the planning input.
//   - RecentFailureRate: optional telemetry supplied by the caller.
//   - Calculation / Admission / Schedule / AntiBan: JSON-serialized results.
//   - AdjustedRate: rate after the adaptive revision, when one was requested.
//   - FinalRatePerMinute / FinalDelayMs / FinalCompletionMin: the pacing
//     the caller should actually use, after any adaptive revision.
type Plan struct {
	ID                 string                 `json:"id"                            gorm:"type:char(36);primaryKey"`
	ClientID           string                 `json:"client_id"                     gorm:"type:varchar(64);not null;index:idx_client_plans,priority:1"`
	ChannelClass       ChannelClass           `json:"channel_class"                 gorm:"type:varchar(16);not null;check:channel_class IN ('regulated','unregulated')"`
	Priority           Priority               `json:"priority"                      gorm:"type:varchar(8);not null"`
	RecipientCount     int                    `json:"recipient_count"               gorm:"not null"`
	AccountIDs         []string               `json:"account_ids"                   gorm:"type:text;serializer:json"`
	RecentFailureRate  *float64               `json:"recent_failure_rate,omitempty"`
	Calculation        RateLimitCalculation   `json:"calculation"                   gorm:"type:text;serializer:json"`
	Admission          AdmissionResult        `json:"admission"                     gorm:"type:text;serializer:json"`
	AdjustedRate       *int                   `json:"adjusted_rate,omitempty"`
	FinalRatePerMinute int                    `json:"final_rate_per_minute"         gorm:"not null"`
	FinalDelayMs       int                    `json:"final_delay_ms"                gorm:"not null"`
	FinalCompletionMin int                    `json:"final_completion_minutes"      gorm:"not null"`
	Schedule           *BusinessHoursSchedule `json:"schedule,omitempty"            gorm:"type:text;serializer:json"`
	AntiBan            AntiBanSettings        `json:"anti_ban"                      gorm:"type:text;serializer:json"`
	CreatedAt          time.Time              `json:"created_at"                    gorm:"index:idx_client_plans,priority:2"`
	UpdatedAt          time.Time              `json:"updated_at"`
	DeletedAt          gorm.DeletedAt         `json:"-"                             gorm:"index"`
}

// TableName returns the database table name for Plan.
func (Plan) TableName() string { return "plans" }

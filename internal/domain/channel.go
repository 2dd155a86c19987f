package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// ChannelClass categorizes a messaging account by its provider's quota and
// suspension-risk profile.
type ChannelClass string

const (
	// ChannelRegulated covers official providers: generous quotas, low compliance risk.
	ChannelRegulated ChannelClass = "regulated"
	// ChannelUnregulated covers unofficial providers: low quotas, high suspension risk.
	ChannelUnregulated ChannelClass = "unregulated"
)

// ChannelClasses lists every known class in a stable order.
var ChannelClasses = []ChannelClass{ChannelRegulated, ChannelUnregulated}

var channelAliases = map[string]ChannelClass{
	"regulated":   ChannelRegulated,
	"official":    ChannelRegulated,
	"unregulated": ChannelUnregulated,
	"unofficial":  ChannelUnregulated,
}

// ParseChannelClass resolves a case-insensitive class name or alias
// ("official"/"unofficial") to a ChannelClass.
func ParseChannelClass(s string) (ChannelClass, bool) {
	c, ok := channelAliases[foldName(strings.TrimSpace(s))]
	return c, ok
}

// Valid reports whether c is one of the known classes.
func (c ChannelClass) Valid() bool {
	return c == ChannelRegulated || c == ChannelUnregulated
}

// Priority expresses how aggressively a campaign asks to be sent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority resolves a case-insensitive priority name.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(foldName(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

// ChannelLimits holds the externally defined ceilings for a channel class.
type ChannelLimits struct {
	MaxPerMinute int `json:"max_per_minute" yaml:"max_per_minute" example:"80"`
	MaxPerHour   int `json:"max_per_hour"   yaml:"max_per_hour"   example:"10000"`
	MaxPerDay    int `json:"max_per_day"    yaml:"max_per_day"    example:"100000"`
	BurstLimit   int `json:"burst_limit"    yaml:"burst_limit"    example:"100"`
}

// AntiBanSettings are the sending-behaviour recommendations attached to a
// channel class.
type AntiBanSettings struct {
	Enabled                  bool   `json:"enabled"                    yaml:"enabled"`
	Mode                     string `json:"mode"                       yaml:"mode" example:"conservative"`
	RandomizeDelay           bool   `json:"randomize_delay"            yaml:"randomize_delay"`
	MinDelayMs               int    `json:"min_delay_ms"               yaml:"min_delay_ms"`
	MaxDelayMs               int    `json:"max_delay_ms"               yaml:"max_delay_ms"`
	AccountRotation          bool   `json:"account_rotation"           yaml:"account_rotation"`
	CooldownSeconds          int    `json:"cooldown_seconds"           yaml:"cooldown_seconds"`
	BusinessHoursOnly        bool   `json:"business_hours_only"        yaml:"business_hours_only"`
	RespectWeekends          bool   `json:"respect_weekends"           yaml:"respect_weekends"`
	RespectRecipientTimezone bool   `json:"respect_recipient_timezone" yaml:"respect_recipient_timezone"`
	AvoidSpamTriggers        bool   `json:"avoid_spam_triggers"        yaml:"avoid_spam_triggers"`
	UseTypingIndicators      bool   `json:"use_typing_indicators"      yaml:"use_typing_indicators"`
	RandomizeMessageTiming   bool   `json:"randomize_message_timing"   yaml:"randomize_message_timing"`
}

// foldName case-folds s. Casers carry state, so one is built per call.
func foldName(s string) string {
	return cases.Fold().String(s)
}

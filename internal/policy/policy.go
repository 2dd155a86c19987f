// Package policy holds the pacing policy constants: per-class channel limits,
// the safety-factor table, adaptive thresholds, rate floors, warning
// thresholds and anti-ban recommendations.
//
// Default returns the built-in table. LoadFile overlays a YAML document on
// top of it so operators can tune the numbers without a rebuild:
//
//	limits:
//	  unregulated: {max_per_minute: 15, max_per_hour: 150, max_per_day: 800, burst_limit: 5}
//	safety_factors:
//	  regulated: {low: 0.95, medium: 0.85, high: 0.75}
//	adaptive:
//	  severe_failure_rate: 0.2
//
// Map entries are merged per class; a class that is listed replaces that
// class's whole entry, so partial entries fail validation.
package policy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-send-pacer/internal/domain"
)

// AdaptiveRules drive the failure-rate revision of a running campaign.
type AdaptiveRules struct {
	SevereFailureRate     float64 `yaml:"severe_failure_rate"`
	SevereMultiplier      float64 `yaml:"severe_multiplier"`
	ElevatedFailureRate   float64 `yaml:"elevated_failure_rate"`
	ElevatedMultiplier    float64 `yaml:"elevated_multiplier"`
	UnregulatedMultiplier float64 `yaml:"unregulated_multiplier"`
}

// WarningRules are the thresholds behind the advisory calculator warnings.
type WarningRules struct {
	LargeUnregulatedRecipients int `yaml:"large_unregulated_recipients"`
	HighUnregulatedRate        int `yaml:"high_unregulated_rate"`
	LongCampaignMinutes        int `yaml:"long_campaign_minutes"`
	SingleAccountRecipients    int `yaml:"single_account_recipients"`
}

// Policy is the full set of pacing constants. It is read-only after load.
type Policy struct {
	Limits          map[domain.ChannelClass]domain.ChannelLimits        `yaml:"limits"`
	SafetyFactors   map[domain.ChannelClass]map[domain.Priority]float64 `yaml:"safety_factors"`
	CalculatorFloor map[domain.ChannelClass]int                         `yaml:"calculator_floor"`
	AdjusterFloor   map[domain.ChannelClass]int                         `yaml:"adjuster_floor"`
	Adaptive        AdaptiveRules                                       `yaml:"adaptive"`
	Warnings        WarningRules                                        `yaml:"warnings"`
	HourlyDemandCap int                                                 `yaml:"hourly_demand_cap"`
	AntiBan         map[domain.ChannelClass]domain.AntiBanSettings      `yaml:"anti_ban"`
	BusinessHours   map[domain.ChannelClass]bool                        `yaml:"business_hours_required"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		Limits: map[domain.ChannelClass]domain.ChannelLimits{
			domain.ChannelRegulated:   {MaxPerMinute: 80, MaxPerHour: 10000, MaxPerDay: 100000, BurstLimit: 100},
			domain.ChannelUnregulated: {MaxPerMinute: 20, MaxPerHour: 200, MaxPerDay: 1000, BurstLimit: 5},
		},
		SafetyFactors: map[domain.ChannelClass]map[domain.Priority]float64{
			domain.ChannelRegulated: {
				domain.PriorityLow: 0.9, domain.PriorityMedium: 0.8, domain.PriorityHigh: 0.7,
			},
			domain.ChannelUnregulated: {
				domain.PriorityLow: 0.6, domain.PriorityMedium: 0.5, domain.PriorityHigh: 0.4,
			},
		},
		CalculatorFloor: map[domain.ChannelClass]int{
			domain.ChannelRegulated:   10,
			domain.ChannelUnregulated: 1,
		},
		AdjusterFloor: map[domain.ChannelClass]int{
			domain.ChannelRegulated:   5,
			domain.ChannelUnregulated: 1,
		},
		Adaptive: AdaptiveRules{
			SevereFailureRate:     0.10,
			SevereMultiplier:      0.7,
			ElevatedFailureRate:   0.05,
			ElevatedMultiplier:    0.85,
			UnregulatedMultiplier: 0.8,
		},
		Warnings: WarningRules{
			LargeUnregulatedRecipients: 500,
			HighUnregulatedRate:        15,
			LongCampaignMinutes:        480,
			SingleAccountRecipients:    1000,
		},
		HourlyDemandCap: 100,
		AntiBan: map[domain.ChannelClass]domain.AntiBanSettings{
			domain.ChannelRegulated: {
				Enabled:                  true,
				Mode:                     "moderate",
				RandomizeDelay:           true,
				MinDelayMs:               1000,
				MaxDelayMs:               5000,
				AccountRotation:          true,
				CooldownSeconds:          30,
				BusinessHoursOnly:        false,
				RespectWeekends:          false,
				RespectRecipientTimezone: false,
				AvoidSpamTriggers:        true,
				UseTypingIndicators:      true,
				RandomizeMessageTiming:   true,
			},
			domain.ChannelUnregulated: {
				Enabled:                  true,
				Mode:                     "conservative",
				RandomizeDelay:           true,
				MinDelayMs:               5000,
				MaxDelayMs:               15000,
				AccountRotation:          true,
				CooldownSeconds:          60,
				BusinessHoursOnly:        true,
				RespectWeekends:          true,
				RespectRecipientTimezone: true,
				AvoidSpamTriggers:        true,
				UseTypingIndicators:      true,
				RandomizeMessageTiming:   true,
			},
		},
		BusinessHours: map[domain.ChannelClass]bool{
			domain.ChannelRegulated:   false,
			domain.ChannelUnregulated: true,
		},
	}
}

// LoadFile returns Default overlaid with the YAML document at path.
// An empty path yields Default unchanged.
func LoadFile(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that every known class has a complete, sane entry.
func (p *Policy) Validate() error {
	for _, c := range domain.ChannelClasses {
		l, ok := p.Limits[c]
		if !ok {
			return fmt.Errorf("limits for %s missing", c)
		}
		if l.MaxPerMinute <= 0 || l.MaxPerHour <= 0 || l.MaxPerDay <= 0 || l.BurstLimit <= 0 {
			return fmt.Errorf("limits for %s must be positive", c)
		}
		for _, pr := range []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh} {
			f, ok := p.SafetyFactors[c][pr]
			if !ok || f <= 0 || f > 1 {
				return fmt.Errorf("safety factor for %s/%s must be in (0,1]", c, pr)
			}
		}
		if p.CalculatorFloor[c] < 1 || p.AdjusterFloor[c] < 1 {
			return fmt.Errorf("rate floors for %s must be >= 1", c)
		}
		if _, ok := p.AntiBan[c]; !ok {
			return fmt.Errorf("anti-ban settings for %s missing", c)
		}
	}
	a := p.Adaptive
	if a.ElevatedFailureRate < 0 || a.SevereFailureRate < a.ElevatedFailureRate || a.SevereFailureRate > 1 {
		return errors.New("adaptive failure thresholds must satisfy 0 <= elevated <= severe <= 1")
	}
	for _, m := range []float64{a.SevereMultiplier, a.ElevatedMultiplier, a.UnregulatedMultiplier} {
		if m <= 0 || m > 1 {
			return errors.New("adaptive multipliers must be in (0,1]")
		}
	}
	if p.HourlyDemandCap < 1 {
		return errors.New("hourly_demand_cap must be >= 1")
	}
	return nil
}

// ChannelLimits returns the ceilings for c.
func (p *Policy) ChannelLimits(c domain.ChannelClass) (domain.ChannelLimits, bool) {
	l, ok := p.Limits[c]
	return l, ok
}

// SafetyFactor returns the fraction applied to the per-account ceiling.
func (p *Policy) SafetyFactor(c domain.ChannelClass, pr domain.Priority) (float64, bool) {
	f, ok := p.SafetyFactors[c][pr]
	return f, ok
}

// AntiBanSettings returns the sending-behaviour recommendations for c.
func (p *Policy) AntiBanSettings(c domain.ChannelClass) domain.AntiBanSettings {
	return p.AntiBan[c]
}

// RequiresBusinessHours reports whether campaigns on c should be confined to
// business-hours windows.
func (p *Policy) RequiresBusinessHours(c domain.ChannelClass) bool {
	return p.BusinessHours[c]
}

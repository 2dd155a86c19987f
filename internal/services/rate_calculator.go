package services

import (
	"fmt"
	"math"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/policy"
)

// Advisory warnings emitted by CalculateOptimalRateLimit.
const (
	WarnBanRisk        = "Unofficial channels have higher ban risk - consider business hours only"
	WarnLargeCampaign  = "Large campaigns on unofficial channels may trigger account restrictions"
	WarnHighRate       = "High rate detected - consider reducing to avoid detection"
	WarnLongCampaign   = "Campaign will take over 8 hours - consider splitting into smaller batches"
	WarnSingleAccount  = "Consider using multiple accounts for better distribution and reduced risk"
	warnFloorOverrides = "Per-account ceiling of %d/min is below the channel minimum; using %d/min - consider fewer accounts"
)

// CalculateOptimalRateLimit turns a campaign shape into a recommended
// per-account rate, delay, ETA and advisory warnings. Warnings never block
// the result.
//
// The recommendation is floor(floor(maxPerMinute/accountCount) * safetyFactor),
// raised to the class minimum when it would fall below it.
func CalculateOptimalRateLimit(p *policy.Policy, class domain.ChannelClass, recipientCount, accountCount int, priority domain.Priority) (domain.RateLimitCalculation, error) {
	limits, ok := p.ChannelLimits(class)
	if !ok {
		return domain.RateLimitCalculation{}, ErrUnknownChannelClass
	}
	factor, ok := p.SafetyFactor(class, priority)
	if !ok {
		return domain.RateLimitCalculation{}, ErrInvalidPriority
	}
	if accountCount < 1 || accountCount > MaxAccountCount {
		return domain.RateLimitCalculation{}, ErrInvalidAccountCount
	}
	if recipientCount < 0 || recipientCount > MaxRecipientCount {
		return domain.RateLimitCalculation{}, ErrInvalidRecipientCount
	}

	warnings := []string{}

	perAccount := limits.MaxPerMinute / accountCount
	recommended := floorInt(float64(perAccount) * factor)
	if minRate := p.CalculatorFloor[class]; recommended < minRate {
		if perAccount < minRate {
			warnings = append(warnings, fmt.Sprintf(warnFloorOverrides, perAccount, minRate))
		}
		recommended = minRate
	}

	eta := ceilDiv(recipientCount, recommended*accountCount)

	if class == domain.ChannelUnregulated {
		warnings = append(warnings, WarnBanRisk)
		if recipientCount > p.Warnings.LargeUnregulatedRecipients {
			warnings = append(warnings, WarnLargeCampaign)
		}
		if recommended > p.Warnings.HighUnregulatedRate {
			warnings = append(warnings, WarnHighRate)
		}
	}
	if eta > p.Warnings.LongCampaignMinutes {
		warnings = append(warnings, WarnLongCampaign)
	}
	if accountCount == 1 && recipientCount > p.Warnings.SingleAccountRecipients {
		warnings = append(warnings, WarnSingleAccount)
	}

	return domain.RateLimitCalculation{
		RecommendedMessagesPerMinute: recommended,
		RecommendedDelayMs:           delayMs(recommended),
		EstimatedCompletionMinutes:   eta,
		SafetyFactor:                 factor,
		Warnings:                     warnings,
		ChannelLimits:                limits,
	}, nil
}

// delayMs is the inter-message gap for a per-minute rate.
func delayMs(ratePerMinute int) int {
	return ceilDiv(60000, ratePerMinute)
}

// ceilDiv returns ceil(a/b) for a >= 0, b > 0 without forming a+b-1.
func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// floorInt floors v, absorbing binary representation error so that
// 20*0.7 lands on 14 rather than 13.
func floorInt(v float64) int {
	return int(math.Floor(v + 1e-9))
}

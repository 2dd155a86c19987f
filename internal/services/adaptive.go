package services

import (
	"math"

	"github.com/tbourn/go-send-pacer/internal/domain"
	"github.com/tbourn/go-send-pacer/internal/policy"
)

// AdaptiveRateLimit revises a running campaign's rate from the caller's
// recent delivery failure ratio. It has no memory of earlier calls.
//
// Steps, each floored to an integer:
//  1. failure > severe threshold: × severe multiplier;
//     otherwise failure > elevated threshold: × elevated multiplier
//  2. unregulated class: × unregulated multiplier
//  3. raise to the adjuster floor for the class
func AdaptiveRateLimit(p *policy.Policy, baseRate int, class domain.ChannelClass, recentFailureRate float64) (int, error) {
	if !class.Valid() {
		return 0, ErrUnknownChannelClass
	}
	if baseRate < 1 || baseRate > MaxRatePerMinute {
		return 0, ErrInvalidRate
	}
	if math.IsNaN(recentFailureRate) || recentFailureRate < 0 || recentFailureRate > 1 {
		return 0, ErrInvalidFailureRate
	}

	a := p.Adaptive
	rate := baseRate
	switch {
	case recentFailureRate > a.SevereFailureRate:
		rate = floorInt(float64(rate) * a.SevereMultiplier)
	case recentFailureRate > a.ElevatedFailureRate:
		rate = floorInt(float64(rate) * a.ElevatedMultiplier)
	}
	if class == domain.ChannelUnregulated {
		rate = floorInt(float64(rate) * a.UnregulatedMultiplier)
	}
	if minRate := p.AdjusterFloor[class]; rate < minRate {
		rate = minRate
	}
	return rate, nil
}

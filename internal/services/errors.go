// Package services implements the send-pacing core: rate calculation, the
// per-account status cache, admission checks, adaptive revision, business-hours
// scheduling and persisted campaign plans.
//
// This file centralizes service-level error values. Input errors all wrap
// ErrInvalidInput so the HTTP layer can map them with a single errors.Is.
package services

import (
	"errors"
	"fmt"
)

// Input bounds enforced by every calculator entry point.
const (
	MaxRecipientCount = 10_000_000
	MaxAccountCount   = 1_000
	MaxRatePerMinute  = 1_000_000
	MaxScheduleDays   = 366
)

// ErrInvalidInput is the parent of every caller-contract violation.
var ErrInvalidInput = errors.New("invalid input")

func invalid(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidInput, msg) }

// Input errors.
var (
	// ErrUnknownChannelClass is returned for a class outside the policy table.
	ErrUnknownChannelClass = invalid("unknown channel class")

	// ErrInvalidPriority is returned for a priority other than low, medium or high.
	ErrInvalidPriority = invalid("priority must be low, medium or high")

	// ErrInvalidAccountCount is returned when accountCount is outside [1, MaxAccountCount].
	ErrInvalidAccountCount = invalid(fmt.Sprintf("account count must be within [1, %d]", MaxAccountCount))

	// ErrInvalidRecipientCount is returned when recipientCount is outside [0, MaxRecipientCount].
	ErrInvalidRecipientCount = invalid(fmt.Sprintf("recipient count must be within [0, %d]", MaxRecipientCount))

	// ErrNoAccounts is returned when an admission check names no accounts.
	ErrNoAccounts = invalid("at least one account id is required")

	// ErrEmptyAccountID is returned when an account id is blank.
	ErrEmptyAccountID = invalid("account id must not be empty")

	// ErrInvalidFailureRate is returned when the failure rate is outside [0,1].
	ErrInvalidFailureRate = invalid("recent failure rate must be within [0,1]")

	// ErrInvalidRate is returned when a base or schedule rate is outside [1, MaxRatePerMinute].
	ErrInvalidRate = invalid(fmt.Sprintf("rate must be within [1, %d]", MaxRatePerMinute))

	// ErrScheduleTooLong is returned when a schedule would need more than
	// MaxScheduleDays business days.
	ErrScheduleTooLong = invalid(fmt.Sprintf("schedule would exceed %d business days", MaxScheduleDays))

	// ErrInvalidBusinessHours is returned for malformed or empty windows.
	ErrInvalidBusinessHours = invalid("business hours must be HH:MM with start before end")

	// ErrInvalidTimezone is returned when the IANA zone name cannot be loaded.
	ErrInvalidTimezone = invalid("unknown timezone")
)

// ErrPlanNotFound indicates that the requested plan does not exist or belongs
// to another client.
var ErrPlanNotFound = errors.New("plan not found")

// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). Codes give clients a
// stable, machine-readable error taxonomy next to the human-readable message.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes mirror common HTTP status semantics.
//   - Pacing-specific codes (e.g., plan_failed, status_failed) are reserved for
//     failures that cannot be conveyed by status alone.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "bad_request",
//	  "message": "invalid input: unknown channel class"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-send-pacer/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Pacing-specific:
	ErrCodeStatusFailed = "status_failed"
	ErrCodePlanFailed   = "plan_failed"
	ErrCodeListFailed   = "list_failed"
)

// serverMessages are the user-facing texts for 5xx codes.
var serverMessages = map[string]string{
	ErrCodeStatusFailed: "account status unavailable",
	ErrCodePlanFailed:   "could not plan campaign",
	ErrCodeListFailed:   "could not list plans",
}

// failService maps a service error onto the response envelope. Validation
// errors become 400 with their message, unknown plans 404; anything else is
// a 500 whose cause is logged, not returned.
func failService(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrPlanNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "plan not found")
	default:
		msg, known := serverMessages[code]
		if !known {
			msg = "internal server error"
		}
		failWith(c, http.StatusInternalServerError, code, msg, err)
	}
}

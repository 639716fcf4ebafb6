// Package models holds the request classes and results shared by the rate
// limit stores and middleware.
package models

import (
	"fmt"
	"time"
)

// Class groups endpoints that share one request budget.
type Class string

const (
	ClassRead              Class = "read"
	ClassLedger            Class = "ledger"
	ClassVerificationStart Class = "verification_start"
)

// Limit is a budget of Requests per sliding Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is whole seconds, only set when not allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Key builds the bucket key for a class and caller identity (a principal or
// a client IP).
func Key(class Class, kind, identity string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", class, kind, identity)
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

// RetryAfterSeconds rounds up so clients never retry early.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

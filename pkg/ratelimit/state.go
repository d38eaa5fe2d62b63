// Package ratelimit tracks the push API's request quota and gates requests.
// It reads the X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset
// headers, plus Retry-After on 429 responses.
package ratelimit

import (
	"time"
)

// Response headers consumed by the tracker.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// ThrottleRatio is the fraction of the quota below which requests are slowed down.
const ThrottleRatio = 0.1

// State is the last observed quota.
type State struct {
	// Limit is the window quota. 0 when the server never sent it.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window. -1 until the
	// first response carrying rate limit headers.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// Known reports whether the server has reported any quota yet.
func (s State) Known() bool {
	return s.Remaining >= 0
}

// NeedsBlock reports whether requests must be refused at now.
func (s State) NeedsBlock(now time.Time) bool {
	return s.Known() && s.Remaining <= 0 && now.Before(s.ResetAt)
}

// NeedsThrottling reports whether requests should be slowed down at now.
func (s State) NeedsThrottling(now time.Time) bool {
	if !s.Known() || s.Limit <= 0 || s.NeedsBlock(now) || !now.Before(s.ResetAt) {
		return false
	}
	return float64(s.Remaining) < float64(s.Limit)*ThrottleRatio
}

// TimeUntilReset returns the duration until the window resets, or 0 if it
// already has.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

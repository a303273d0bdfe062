// Package ratelimit tracks the search API's per-window request budget.
// It monitors the x-rate-limit-remaining and x-rate-limit-reset headers so
// that requests are refused locally, instead of being rejected remotely,
// once a window is exhausted.
package ratelimit

import (
	"time"
)

// Redis hash holding the window state for one API resource.
const RedisKeyPrefix = "datasource:rate_limit:"

// Hash fields of the window state.
const (
	fieldLimit      = "limit"
	fieldRemaining  = "remaining"
	fieldReset      = "reset"
	fieldLastUpdate = "last_update"
)

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdCritical blocks requests when remaining falls below
	// this value and the window has not reset yet.
	RemainingThresholdCritical = 1

	// RemainingThresholdWarning applies throttling when remaining falls below this value.
	RemainingThresholdWarning = 5

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 20
)

// State is the current request window for one API resource.
// It is shared across all client instances via Redis.
type State struct {
	// Limit is the window's total request allowance (x-rate-limit-limit).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (x-rate-limit-remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (x-rate-limit-reset, epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// WindowOpen reports whether ResetAt is still in the future.
func (s *State) WindowOpen() bool {
	return time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if the window is exhausted and has not reset.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < RemainingThresholdCritical && s.WindowOpen()
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning && s.WindowOpen() && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy || !s.WindowOpen()
}

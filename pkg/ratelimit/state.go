// Package ratelimit tracks upstream provider rate limits and gates requests.
// It reads the GitHub (X-RateLimit-*) and GitLab (RateLimit-*) response
// headers per host, so a shared store keeps every instance below the quota.
package ratelimit

import (
	"time"
)

// KeyPrefix prefixes the store key of each host's state.
const KeyPrefix = "gitfeed:rate_limit:"

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests when fewer calls than this remain.
	ThresholdCritical = 5

	// ThresholdWarning throttles requests when fewer calls than this remain.
	ThresholdWarning = 20

	// ThresholdHealthy indicates normal operation.
	ThresholdHealthy = 50
)

// StateKey returns the store key holding the state of host.
func StateKey(host string) string {
	return KeyPrefix + host
}

// State is the last known rate limit window of one upstream host.
type State struct {
	Host string `json:"host"`

	// Limit is the size of the window, when the provider reports it.
	Limit int `json:"limit,omitempty"`

	// Remaining is the number of calls left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was read from a response.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed for hosts never seen or whose window has reset.
func defaultState(host string, now time.Time) *State {
	return &State{
		Host:       host,
		Remaining:  ThresholdHealthy * 2,
		ResetAt:    now,
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0 if the
// reset time has passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}

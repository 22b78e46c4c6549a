// Package ratelimit tracks the health of upstream API credentials.
// The gateway reports every soft failure (429, timeout, unreachable) and
// every success per credential; the tracker keeps counters for the status
// endpoint and the astro_credential_soft_failures gauge. It never changes
// rotation order: each fetch still starts at the first credential.
package ratelimit

import (
	"time"
)

// Redis key layout for shared credential state. One hash per credential.
const (
	RedisKeyPrefix = "astro:credentials"

	fieldSoftFailures        = "soft_failures"
	fieldConsecutiveFailures = "consecutive_failures"
	fieldLastReason          = "last_reason"
	fieldLastFailure         = "last_failure"
	fieldLastSuccess         = "last_success"
)

// FailureThresholdUnhealthy marks a credential unhealthy once this many
// soft failures happen in a row without a success in between.
const FailureThresholdUnhealthy = 3

// CredentialState is the health snapshot of one credential.
type CredentialState struct {
	// Credential is the 1-based position in the configured key list.
	// The key itself is never stored or reported.
	Credential int `json:"credential"`

	// SoftFailures counts every soft failure since startup.
	SoftFailures int64 `json:"soft_failures"`

	// ConsecutiveFailures resets to 0 on success.
	ConsecutiveFailures int64 `json:"consecutive_failures"`

	// LastReason is the error class of the latest soft failure.
	LastReason string `json:"last_reason,omitempty"`

	LastFailure time.Time `json:"last_failure"`
	LastSuccess time.Time `json:"last_success"`

	// IsHealthy is false once ConsecutiveFailures reaches
	// FailureThresholdUnhealthy.
	IsHealthy bool `json:"is_healthy"`
}

// UpdateHealth recomputes IsHealthy from ConsecutiveFailures.
func (s *CredentialState) UpdateHealth() {
	s.IsHealthy = s.ConsecutiveFailures < FailureThresholdUnhealthy
}

// SinceLastFailure returns the time elapsed since the last soft failure,
// or 0 if there has been none.
func (s *CredentialState) SinceLastFailure(now time.Time) time.Duration {
	if s.LastFailure.IsZero() {
		return 0
	}
	return now.Sub(s.LastFailure)
}

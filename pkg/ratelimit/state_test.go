package ratelimit

import (
	"testing"
	"time"
)

func TestCredentialState_UpdateHealth(t *testing.T) {
	tests := []struct {
		name        string
		consecutive int64
		wantHealthy bool
	}{
		{"no failures", 0, true},
		{"one failure", 1, true},
		{"just below threshold", FailureThresholdUnhealthy - 1, true},
		{"at threshold", FailureThresholdUnhealthy, false},
		{"above threshold", FailureThresholdUnhealthy + 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &CredentialState{ConsecutiveFailures: tt.consecutive}
			s.UpdateHealth()
			if s.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestCredentialState_SinceLastFailure(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s := &CredentialState{}
	if got := s.SinceLastFailure(now); got != 0 {
		t.Errorf("SinceLastFailure() without failures = %v, want 0", got)
	}

	s.LastFailure = now.Add(-90 * time.Second)
	if got := s.SinceLastFailure(now); got != 90*time.Second {
		t.Errorf("SinceLastFailure() = %v, want 90s", got)
	}
}

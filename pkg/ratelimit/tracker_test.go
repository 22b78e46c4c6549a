package ratelimit

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestTracker(n int) *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewTracker(n, nil, logger)
}

func TestNewTracker(t *testing.T) {
	tracker := newTestTracker(3)

	if tracker.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tracker.Len())
	}

	states, err := tracker.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	for i, s := range states {
		if s.Credential != i+1 {
			t.Errorf("states[%d].Credential = %d, want %d", i, s.Credential, i+1)
		}
		if !s.IsHealthy {
			t.Errorf("credential %d should start healthy", s.Credential)
		}
	}
}

func TestTracker_RecordFailure(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(2)

	for i := 0; i < FailureThresholdUnhealthy; i++ {
		if err := tracker.RecordFailure(ctx, 1, "rate_limited"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	states, _ := tracker.Snapshot(ctx)
	first := states[0]
	if first.SoftFailures != FailureThresholdUnhealthy {
		t.Errorf("SoftFailures = %d, want %d", first.SoftFailures, FailureThresholdUnhealthy)
	}
	if first.LastReason != "rate_limited" {
		t.Errorf("LastReason = %q, want rate_limited", first.LastReason)
	}
	if first.IsHealthy {
		t.Error("credential 1 should be unhealthy after consecutive failures")
	}
	if first.LastFailure.IsZero() {
		t.Error("LastFailure should be set")
	}
	if !states[1].IsHealthy || states[1].SoftFailures != 0 {
		t.Errorf("credential 2 should be untouched: %+v", states[1])
	}

	healthy, _ := tracker.Healthy(ctx)
	if healthy != 1 {
		t.Errorf("Healthy() = %d, want 1", healthy)
	}
}

func TestTracker_RecordSuccessResetsConsecutive(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(1)

	for i := 0; i < 5; i++ {
		_ = tracker.RecordFailure(ctx, 1, "timeout")
	}
	if err := tracker.RecordSuccess(ctx, 1); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	states, _ := tracker.Snapshot(ctx)
	s := states[0]
	if s.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", s.ConsecutiveFailures)
	}
	if s.SoftFailures != 5 {
		t.Errorf("SoftFailures = %d, want 5 (total is kept)", s.SoftFailures)
	}
	if !s.IsHealthy {
		t.Error("credential should be healthy after success")
	}
	if s.LastSuccess.IsZero() {
		t.Error("LastSuccess should be set")
	}
}

func TestTracker_UnknownCredential(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(2)

	for _, credential := range []int{0, -1, 3} {
		if err := tracker.RecordFailure(ctx, credential, "timeout"); !errors.Is(err, ErrUnknownCredential) {
			t.Errorf("RecordFailure(%d) error = %v, want ErrUnknownCredential", credential, err)
		}
		if err := tracker.RecordSuccess(ctx, credential); !errors.Is(err, ErrUnknownCredential) {
			t.Errorf("RecordSuccess(%d) error = %v, want ErrUnknownCredential", credential, err)
		}
	}
}

func TestTracker_SnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(1)

	states, _ := tracker.Snapshot(ctx)
	states[0].SoftFailures = 99

	again, _ := tracker.Snapshot(ctx)
	if again[0].SoftFailures != 0 {
		t.Error("Snapshot should not expose internal state")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(3)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tracker.RecordFailure(ctx, i%3+1, "upstream_unreachable")
		}(i)
	}
	wg.Wait()

	states, _ := tracker.Snapshot(ctx)
	for _, s := range states {
		if s.SoftFailures != 10 {
			t.Errorf("credential %d SoftFailures = %d, want 10", s.Credential, s.SoftFailures)
		}
	}
}

func TestStateFromHash(t *testing.T) {
	s, err := stateFromHash(2, map[string]string{
		fieldSoftFailures:        "7",
		fieldConsecutiveFailures: "4",
		fieldLastReason:          "timeout",
		fieldLastFailure:         "1700000000000000000",
	})
	if err != nil {
		t.Fatalf("stateFromHash() error = %v", err)
	}
	if s.Credential != 2 || s.SoftFailures != 7 || s.ConsecutiveFailures != 4 {
		t.Errorf("unexpected state: %+v", s)
	}
	if s.IsHealthy {
		t.Error("4 consecutive failures should be unhealthy")
	}
	if s.LastFailure.UnixNano() != 1700000000000000000 {
		t.Errorf("LastFailure = %v", s.LastFailure)
	}
	if !s.LastSuccess.IsZero() {
		t.Error("LastSuccess should be zero when absent")
	}

	if _, err := stateFromHash(1, map[string]string{fieldSoftFailures: "many"}); err == nil {
		t.Error("expected parse error for non-numeric counter")
	}
}

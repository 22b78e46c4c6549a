package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestEntry_IsExpired(t *testing.T) {
	stored := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := Entry[string]{Value: "svg", StoredAt: stored}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just stored", stored, false},
		{"one hour later", stored.Add(time.Hour), false},
		{"one nanosecond before ttl", stored.Add(DefaultTTL - time.Nanosecond), false},
		{"exactly ttl", stored.Add(DefaultTTL), true},
		{"past ttl", stored.Add(DefaultTTL + time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsExpired(tt.now, DefaultTTL); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Remaining(t *testing.T) {
	stored := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := Entry[int]{StoredAt: stored}

	if got := entry.Remaining(stored.Add(time.Hour), 2*time.Hour); got != time.Hour {
		t.Errorf("Remaining() = %v, want 1h", got)
	}
	if got := entry.Remaining(stored.Add(3*time.Hour), 2*time.Hour); got != 0 {
		t.Errorf("Remaining() = %v, want 0", got)
	}
}

func TestTTLCache_GetAfterPut(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache[string]("test", DefaultTTL)

	if err := c.Put(ctx, "k", "<svg/>"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %q, %v, %v; want hit", got, ok, err)
	}
	if got != "<svg/>" {
		t.Errorf("Get() = %q, want <svg/>", got)
	}
}

func TestTTLCache_Miss(t *testing.T) {
	c := NewTTLCache[string]("test", DefaultTTL)

	got, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || got != "" {
		t.Errorf("Get() = %q, %v; want miss", got, ok)
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewTTLCache[string]("test", time.Hour, WithClock(clock.Now))

	_ = c.Put(ctx, "k", "v")

	clock.Advance(59 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before ttl")
	}

	clock.Advance(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss once ttl elapsed")
	}

	// stale entries are shadowed, not purged
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestTTLCache_PutOverwritesAndResets(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewTTLCache[string]("test", time.Hour, WithClock(clock.Now))

	_ = c.Put(ctx, "k", "old")
	clock.Advance(50 * time.Minute)
	_ = c.Put(ctx, "k", "new")
	clock.Advance(50 * time.Minute)

	got, ok, _ := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit: second Put should reset freshness")
	}
	if got != "new" {
		t.Errorf("Get() = %q, want new", got)
	}
}

func TestTTLCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache[int]("test", DefaultTTL)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := Key(fmt.Sprintf("k%d", i%20))
				_ = c.Put(ctx, key, w*1000+i)
				_, _, _ = c.Get(ctx, key)
			}
		}(w)
	}
	wg.Wait()

	if c.Len() != 20 {
		t.Errorf("Len() = %d, want 20", c.Len())
	}
}

func TestTTLCache_ImplementsInterfaces(t *testing.T) {
	var _ Cache[string] = NewTTLCache[string]("test", DefaultTTL)
	var _ Pinger = NewTTLCache[string]("test", DefaultTTL)
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(func(context.Context, string) (int, error) { return 0, nil }, Config{})
	if bf.config.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", bf.config.MaxConcurrency, DefaultMaxConcurrency)
	}
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	items := []string{"d1", "d9", "d10", "d60", "d2"}
	bf := NewBatchFetcher(func(_ context.Context, item string) (string, error) {
		// later items finish first
		time.Sleep(time.Duration(10-len(item)) * time.Millisecond)
		return strings.ToUpper(item), nil
	}, DefaultConfig())

	results := bf.FetchAll(context.Background(), items)

	if len(results) != len(items) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Item != items[i] {
			t.Errorf("results[%d].Item = %q, want %q", i, r.Item, items[i])
		}
		if r.Value != strings.ToUpper(items[i]) || r.Err != nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
}

func TestFetchAll_PerItemErrors(t *testing.T) {
	boom := errors.New("boom")
	bf := NewBatchFetcher(func(_ context.Context, item string) (int, error) {
		if item == "bad" {
			return 0, boom
		}
		return len(item), nil
	}, DefaultConfig())

	results := bf.FetchAll(context.Background(), []string{"ok", "bad", "fine"})

	if !errors.Is(results[1].Err, boom) {
		t.Errorf("results[1].Err = %v, want boom", results[1].Err)
	}
	if results[0].Err != nil || results[0].Value != 2 {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[2].Err != nil || results[2].Value != 4 {
		t.Errorf("results[2] = %+v", results[2])
	}
}

func TestFetchAll_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	bf := NewBatchFetcher(func(context.Context, string) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	}, Config{MaxConcurrency: 2})

	items := make([]string, 8)
	for i := range items {
		items[i] = fmt.Sprintf("d%d", i+1)
	}
	bf.FetchAll(context.Background(), items)

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestFetchAll_CancelledContext(t *testing.T) {
	var calls int32
	bf := NewBatchFetcher(func(context.Context, string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := bf.FetchAll(ctx, []string{"d1", "d9"})
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s: Err = %v, want context.Canceled", r.Item, r.Err)
		}
	}
	if calls != 0 {
		t.Errorf("fetch called %d times after cancellation", calls)
	}
}

func TestFetchAll_ItemTimeout(t *testing.T) {
	bf := NewBatchFetcher(func(ctx context.Context, _ string) (int, error) {
		select {
		case <-time.After(time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}, Config{MaxConcurrency: 2, Timeout: 20 * time.Millisecond})

	results := bf.FetchAll(context.Background(), []string{"slow"})
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want deadline exceeded", results[0].Err)
	}
}

func TestFetchAll_Empty(t *testing.T) {
	bf := NewBatchFetcher(func(context.Context, string) (int, error) { return 0, nil }, DefaultConfig())
	if got := bf.FetchAll(context.Background(), nil); len(got) != 0 {
		t.Errorf("FetchAll(nil) = %v, want empty", got)
	}
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips when none is running.
// The integration suite uses testcontainers-go instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestNewRedisCache_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisCache should panic with nil redis client")
		}
	}()
	NewRedisCache[string](nil, "diagrams", DefaultTTL)
}

func TestRedisCache_Key(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	c := NewRedisCache[string](client, "diagrams", DefaultTTL)
	if got := c.redisKey("d1_2003"); got != "astro:diagrams:d1_2003" {
		t.Errorf("redisKey() = %q", got)
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	c := NewRedisCache[string](client, "diagrams", DefaultTTL)

	if err := c.Put(ctx, "k", "<svg/>"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %q, %v, %v", got, ok, err)
	}
	if got != "<svg/>" {
		t.Errorf("Get() = %q, want <svg/>", got)
	}

	ttl := client.TTL(ctx, c.redisKey("k")).Val()
	if ttl <= 0 || ttl > DefaultTTL {
		t.Errorf("redis TTL = %v, want within (0, %v]", ttl, DefaultTTL)
	}
}

func TestRedisCache_Miss(t *testing.T) {
	client := setupTestRedis(t)
	c := NewRedisCache[string](client, "diagrams", DefaultTTL)

	if _, ok, err := c.Get(context.Background(), "nonexistent"); ok || err != nil {
		t.Errorf("Get() = %v, %v; want miss", ok, err)
	}
}

func TestRedisCache_StaleEntryShadowed(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	clock := newFakeClock()
	c := NewRedisCache[string](client, "diagrams", time.Hour, WithClock(clock.Now))

	_ = c.Put(ctx, "k", "v")
	clock.Advance(2 * time.Hour)

	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Errorf("Get() = %v, %v; want stale miss", ok, err)
	}
}

func TestRedisCache_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	c := NewRedisCache[string](client, "diagrams", DefaultTTL)

	client.Set(ctx, c.redisKey("bad"), "not json", 0)

	if _, _, err := c.Get(ctx, "bad"); err == nil {
		t.Error("expected decode error for corrupted entry")
	}
}

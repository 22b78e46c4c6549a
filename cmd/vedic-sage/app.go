package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Abhiiiiiinav/Vedic-Sage/internal/config"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/batch"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/cache"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/client"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/kundali"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/logging"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/ratelimit"
)

// app is the wired service graph.
type app struct {
	client  *client.Client
	service *kundali.Service
	closers []func() error
}

// Close releases backend connections in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp creates the caches for the configured backend, the gateway and
// the chart service.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewLogger("main")
	a := &app{}

	keys := cfg.APIKeys()
	ccfg := client.Config{
		BaseURL: cfg.Upstream.BaseURL,
		APIKeys: keys,
		Timeout: cfg.Upstream.Timeout,
		KeyFunc: cfg.KeyFunc(),
	}

	switch cfg.Cache.Backend {
	case config.BackendMemory:
		ccfg.Diagrams = cache.NewTTLCache[string]("diagrams", cfg.Cache.TTL)
		ccfg.Positions = cache.NewTTLCache[json.RawMessage](cache.KindPlanets, cfg.Cache.TTL)

	case config.BackendRedis:
		rdb, err := newRedisClient(cfg.Cache.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Connected to Redis")

		ccfg.Diagrams = cache.NewRedisCache[string](rdb, "diagrams", cfg.Cache.TTL)
		ccfg.Positions = cache.NewRedisCache[json.RawMessage](rdb, cache.KindPlanets, cfg.Cache.TTL)
		ccfg.Tracker = ratelimit.NewTracker(len(keys), rdb, logging.NewLogger("ratelimit"))

	case config.BackendSQLite:
		db, err := cache.OpenSQLite(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		logger.Info().Str("path", cfg.Cache.SQLitePath).Msg("Opened SQLite cache")

		diagrams, err := cache.NewSQLiteCache[string](db, "diagrams", cfg.Cache.TTL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		positions, err := cache.NewSQLiteCache[json.RawMessage](db, cache.KindPlanets, cfg.Cache.TTL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		ccfg.Diagrams = diagrams
		ccfg.Positions = positions

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	c, err := client.New(ccfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create client: %w", err)
	}
	a.client = c
	a.service = kundali.NewService(c, batch.Config{MaxConcurrency: cfg.Batch.MaxConcurrency})

	logger.Info().
		Str("backend", cfg.Cache.Backend).
		Dur("ttl", cfg.Cache.TTL).
		Int("credentials", c.Credentials()).
		Bool("strict_keys", cfg.Cache.StrictKeys).
		Msg("Chart service ready")
	return a, nil
}

// newRedisClient accepts a host:port address or a redis:// URL.
func newRedisClient(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

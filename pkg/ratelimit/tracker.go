package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for credential tracking.
var (
	credentialSoftFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "astro_credential_soft_failures",
		Help: "Soft failures recorded per upstream credential",
	}, []string{"credential"})
)

// ErrUnknownCredential is returned for a credential index outside 1..N.
var ErrUnknownCredential = errors.New("unknown credential")

// Tracker records per-credential soft failures. With a Redis client the
// counters are shared by every instance using that Redis; without one they
// are kept in process.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	states []CredentialState
}

// NewTracker creates a tracker for n credentials. redisClient may be nil.
func NewTracker(n int, redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	states := make([]CredentialState, n)
	for i := range states {
		states[i] = CredentialState{Credential: i + 1, IsHealthy: true}
	}
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
		states: states,
	}
}

// Len returns the number of tracked credentials.
func (t *Tracker) Len() int {
	return len(t.states)
}

func (t *Tracker) redisKey(credential int) string {
	return fmt.Sprintf("%s:%d", RedisKeyPrefix, credential)
}

func (t *Tracker) check(credential int) error {
	if credential < 1 || credential > len(t.states) {
		return fmt.Errorf("%w: %d", ErrUnknownCredential, credential)
	}
	return nil
}

// RecordFailure notes a soft failure for the 1-based credential index.
func (t *Tracker) RecordFailure(ctx context.Context, credential int, reason string) error {
	if err := t.check(credential); err != nil {
		return err
	}
	now := t.now()

	t.mu.Lock()
	s := &t.states[credential-1]
	s.SoftFailures++
	s.ConsecutiveFailures++
	s.LastReason = reason
	s.LastFailure = now
	s.UpdateHealth()
	state := *s
	t.mu.Unlock()

	total := state.SoftFailures
	if t.redis != nil {
		pipe := t.redis.TxPipeline()
		incr := pipe.HIncrBy(ctx, t.redisKey(credential), fieldSoftFailures, 1)
		pipe.HIncrBy(ctx, t.redisKey(credential), fieldConsecutiveFailures, 1)
		pipe.HSet(ctx, t.redisKey(credential),
			fieldLastReason, reason,
			fieldLastFailure, now.UnixNano(),
		)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store credential state in redis: %w", err)
		}
		total = incr.Val()
	}

	credentialSoftFailures.WithLabelValues(strconv.Itoa(credential)).Set(float64(total))

	event := t.logger.Debug()
	if !state.IsHealthy {
		event = t.logger.Warn()
	}
	event.
		Int("credential", credential).
		Str("error_class", reason).
		Int64("consecutive_failures", state.ConsecutiveFailures).
		Msg("Credential soft failure")

	return nil
}

// RecordSuccess resets the consecutive failure count of a credential.
func (t *Tracker) RecordSuccess(ctx context.Context, credential int) error {
	if err := t.check(credential); err != nil {
		return err
	}
	now := t.now()

	t.mu.Lock()
	s := &t.states[credential-1]
	recovered := !s.IsHealthy
	s.ConsecutiveFailures = 0
	s.LastSuccess = now
	s.UpdateHealth()
	t.mu.Unlock()

	if t.redis != nil {
		err := t.redis.HSet(ctx, t.redisKey(credential),
			fieldConsecutiveFailures, 0,
			fieldLastSuccess, now.UnixNano(),
		).Err()
		if err != nil {
			return fmt.Errorf("store credential state in redis: %w", err)
		}
	}

	if recovered {
		t.logger.Info().Int("credential", credential).Msg("Credential recovered")
	}
	return nil
}

// Snapshot returns the state of every credential in configured order.
func (t *Tracker) Snapshot(ctx context.Context) ([]CredentialState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		out := make([]CredentialState, len(t.states))
		copy(out, t.states)
		return out, nil
	}

	out := make([]CredentialState, len(t.states))
	for i := range out {
		fields, err := t.redis.HGetAll(ctx, t.redisKey(i+1)).Result()
		if err != nil {
			return nil, fmt.Errorf("get credential state: %w", err)
		}
		state, err := stateFromHash(i+1, fields)
		if err != nil {
			return nil, err
		}
		out[i] = state
	}
	return out, nil
}

// Healthy returns the number of credentials currently healthy.
func (t *Tracker) Healthy(ctx context.Context) (int, error) {
	states, err := t.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range states {
		if s.IsHealthy {
			n++
		}
	}
	return n, nil
}

func stateFromHash(credential int, fields map[string]string) (CredentialState, error) {
	s := CredentialState{Credential: credential, LastReason: fields[fieldLastReason]}

	var err error
	if v := fields[fieldSoftFailures]; v != "" {
		if s.SoftFailures, err = strconv.ParseInt(v, 10, 64); err != nil {
			return s, fmt.Errorf("parse %s: %w", fieldSoftFailures, err)
		}
	}
	if v := fields[fieldConsecutiveFailures]; v != "" {
		if s.ConsecutiveFailures, err = strconv.ParseInt(v, 10, 64); err != nil {
			return s, fmt.Errorf("parse %s: %w", fieldConsecutiveFailures, err)
		}
	}
	if s.LastFailure, err = parseUnixNano(fields[fieldLastFailure]); err != nil {
		return s, fmt.Errorf("parse %s: %w", fieldLastFailure, err)
	}
	if s.LastSuccess, err = parseUnixNano(fields[fieldLastSuccess]); err != nil {
		return s, fmt.Errorf("parse %s: %w", fieldLastSuccess, err)
	}

	s.UpdateHealth()
	return s, nil
}

func parseUnixNano(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}

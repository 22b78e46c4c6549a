package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds parallel fetches per batch.
const DefaultMaxConcurrency = 4

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches.
	MaxConcurrency int

	// Timeout per item fetch. Zero leaves the item bounded only by ctx.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MaxConcurrency: DefaultMaxConcurrency}
}

// Fetcher fetches a single item.
type Fetcher[T any] func(ctx context.Context, item string) (T, error)

// Result is the outcome for one item.
type Result[T any] struct {
	Item  string
	Value T
	Err   error
}

// BatchFetcher handles parallel fetching of multiple items.
type BatchFetcher[T any] struct {
	fetch  Fetcher[T]
	config Config
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher[T any](fetch Fetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	return &BatchFetcher[T]{fetch: fetch, config: config}
}

// FetchAll fetches every item and returns the results in input order.
// A failed item never cancels the others.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, items []string) []Result[T] {
	start := time.Now()
	results := make([]Result[T], len(items))

	var g errgroup.Group
	g.SetLimit(bf.config.MaxConcurrency)

	for i, item := range items {
		results[i].Item = item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			itemCtx := ctx
			if bf.config.Timeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(ctx, bf.config.Timeout)
				defer cancel()
			}

			v, err := bf.fetch(itemCtx, item)
			results[i].Value = v
			results[i].Err = err
			if err != nil {
				log.Debug().Err(err).Str("item", item).Msg("Batch item failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Debug().
		Int("items", len(items)).
		Int("failed", failed).
		Int("workers", bf.config.MaxConcurrency).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results
}

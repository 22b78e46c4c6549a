// Package batch fans independent fetches out across a bounded worker pool.
//
// Batch and full-kundali requests fetch many chart divisions for the same
// birth details. Each division is an independent logical fetch (its own cache
// lookup and credential rotation), so they can run in parallel while the
// credential attempts inside one fetch stay sequential.
//
// Example usage:
//
//	fetcher := batch.NewBatchFetcher(func(ctx context.Context, code string) (*kundali.Chart, error) {
//		return svc.Chart(ctx, code, req)
//	}, batch.DefaultConfig())
//	results := fetcher.FetchAll(ctx, []string{"d1", "d9", "d10"})
//
// The batch fetcher:
//   - Runs at most MaxConcurrency fetches at once (errgroup.SetLimit)
//   - Returns one Result per item, in input order
//   - Records per-item errors instead of aborting the batch
//   - Stops starting new fetches once the context is cancelled
package batch

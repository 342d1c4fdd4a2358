// Package batch fans out many fetches of one named request with bounded
// parallelism.
//
// Example usage:
//
//	fetcher := batch.New(registry, batch.DefaultConfig())
//	items, err := fetcher.FetchAll(ctx, "todos", batch.Pages("_page", 1, 20, api.FetchOptions{}))
//
// Items come back in input order. A failed item keeps its failure in
// Item.Result; only configuration faults (such as an unknown request name)
// abort the batch.
package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/reqcache/pkg/api"
	"github.com/Sternrassler/reqcache/pkg/logging"
	"github.com/Sternrassler/reqcache/pkg/urlbuilder"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	MaxConcurrency int
	// Timeout per item, zero means only the batch context applies
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// Fetcher is satisfied by *api.API.
type Fetcher interface {
	Fetch(ctx context.Context, name string, opts api.FetchOptions) (api.Result, error)
}

// Item is the outcome of one fetch in a batch.
type Item struct {
	Index   int
	Options api.FetchOptions
	Result  api.Result
}

// BatchFetcher runs fetches in parallel.
type BatchFetcher struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a new batch fetcher. Non-positive concurrency falls back to
// the default.
func New(fetcher Fetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentBatch),
	}
}

// FetchAll fetches name once per entry of opts.
func (b *BatchFetcher) FetchAll(ctx context.Context, name string, opts []api.FetchOptions) ([]Item, error) {
	start := time.Now()
	items := make([]Item, len(opts))
	if len(opts) == 0 {
		return items, nil
	}

	b.logger.Info().
		Str("name", name).
		Int("total", len(opts)).
		Int("concurrency", b.config.MaxConcurrency).
		Msg("Starting batch fetch")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.MaxConcurrency)

	var done, failed atomic.Int64
	for i, o := range opts {
		i, o := i, o
		g.Go(func() error {
			itemCtx := gctx
			if b.config.Timeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(gctx, b.config.Timeout)
				defer cancel()
			}

			res, err := b.fetcher.Fetch(itemCtx, name, o)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = Item{Index: i, Options: o, Result: res}

			if !res.IsSuccess {
				failed.Add(1)
				b.logger.Warn().Int("index", i).Strs("errors", res.Errors).Msg("Item fetch failed")
			}

			// Progress logging every 50 items
			if n := done.Add(1); n%50 == 0 {
				b.logger.Info().
					Int64("fetched", n).
					Int("total", len(opts)).
					Float64("progress_pct", float64(n)/float64(len(opts))*100).
					Msg("Batch progress")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.logger.Error().Err(err).Str("name", name).Msg("Batch aborted")
		return nil, err
	}

	b.logger.Info().
		Str("name", name).
		Int("items", len(items)).
		Int64("failed", failed.Load()).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return items, nil
}

// Pages returns one FetchOptions per page number in [first, last], each a
// copy of base with param set to the page number.
func Pages(param string, first, last int, base api.FetchOptions) []api.FetchOptions {
	if last < first {
		return nil
	}
	out := make([]api.FetchOptions, 0, last-first+1)
	for page := first; page <= last; page++ {
		o := base
		o.SearchParams = urlbuilder.Merge(base.SearchParams, urlbuilder.Values{param: page})
		out = append(out, o)
	}
	return out
}

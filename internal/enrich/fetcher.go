// Package enrich turns extracted entities into context summaries.
//
// DESIGN: The fetcher owns the whole lookup policy:
//   - Retry: an explicit bounded loop with an attempt counter. Transient
//     failures back off exponentially (base delay doubling, capped); permanent
//     failures and context cancellation stop immediately.
//   - Fan-out: one goroutine per entity, bounded by a channel semaphore, with
//     results written by index so output order always equals input order.
//     Completion order never leaks into the result sequence.
//
// A failed lookup is not an error: it degrades to Success=false and the
// pipeline continues without that entity's context.
package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mailscope/enrichment-gateway/internal/config"
	"github.com/mailscope/enrichment-gateway/internal/extract"
	"github.com/mailscope/enrichment-gateway/internal/search"
)

// Searcher is the single-attempt lookup the fetcher drives.
type Searcher interface {
	Lookup(ctx context.Context, query string) ([]search.Result, error)
}

// ContextResult is the outcome of enriching one entity.
type ContextResult struct {
	Entity   extract.Entity
	Summary  string
	Success  bool
	Attempts int
}

// Fetcher runs bounded, concurrent entity lookups.
type Fetcher struct {
	searcher    Searcher
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	concurrency int
}

// NewFetcher creates a fetcher with the configured retry and concurrency policy.
func NewFetcher(searcher Searcher, cfg config.SearchConfig) *Fetcher {
	return &Fetcher{
		searcher:    searcher,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase.Std(),
		backoffMax:  cfg.BackoffMax.Std(),
		concurrency: cfg.Concurrency,
	}
}

// Fetch looks up one entity, retrying transient failures up to maxRetries
// times after the initial attempt. It always returns a result; exhaustion and
// permanent failures yield Success=false with an empty summary.
func (f *Fetcher) Fetch(ctx context.Context, entity extract.Entity) ContextResult {
	result := ContextResult{Entity: entity}

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		result.Attempts = attempt + 1

		hits, err := f.searcher.Lookup(ctx, entity.Value)
		if err == nil {
			result.Summary = summarize(hits)
			result.Success = true
			return result
		}

		if !search.IsTransient(err) || ctx.Err() != nil || attempt == f.maxRetries {
			log.Debug().
				Err(err).
				Str("entity", entity.Value).
				Int("attempts", result.Attempts).
				Msg("enrich: lookup failed")
			return result
		}

		delay := f.backoffDelay(attempt)
		log.Debug().
			Err(err).
			Str("entity", entity.Value).
			Int("attempt", result.Attempts).
			Dur("delay", delay).
			Msg("enrich: transient lookup failure, retrying")

		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}
	}
	return result
}

// backoffDelay computes the delay before retrying after the given attempt
// (0-based): base, 2*base, 4*base, ... capped at backoffMax.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	delay := f.backoffBase << uint(attempt)
	if delay <= 0 || delay > f.backoffMax {
		return f.backoffMax
	}
	return delay
}

// FetchAll enriches all entities concurrently, bounded by the configured
// concurrency limit, and joins every lookup before returning. Results are in
// entity order regardless of completion order.
func (f *Fetcher) FetchAll(ctx context.Context, entities []extract.Entity) []ContextResult {
	if len(entities) == 0 {
		return nil
	}

	results := make([]ContextResult, len(entities))
	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i, entity := range entities {
		wg.Add(1)
		go func(i int, entity extract.Entity) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = ContextResult{Entity: entity, Attempts: 0}
				return
			}
			results[i] = f.Fetch(ctx, entity)
		}(i, entity)
	}
	wg.Wait()
	return results
}

// summarize flattens search hits into one text block per entity:
// title, link and snippet on separate lines, hits separated by blank lines.
func summarize(hits []search.Result) string {
	blocks := make([]string, 0, len(hits))
	for _, hit := range hits {
		blocks = append(blocks, hit.Title+"\n"+hit.Link+"\n"+hit.Snippet)
	}
	return strings.Join(blocks, "\n\n")
}

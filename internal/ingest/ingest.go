// Package ingest drives one ingestion pass: fetch from every source,
// normalize, categorize and store.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"techtrends/aggregator/internal/categorize"
	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/normalize"
	"techtrends/aggregator/internal/sources"
	"techtrends/aggregator/internal/store"
)

// Report summarizes one ingestion run.
type Report struct {
	Fetched          int               `json:"fetched"`
	Inserted         int               `json:"inserted"`
	SkippedDuplicate int               `json:"skipped_duplicate"`
	SkippedInvalid   int               `json:"skipped_invalid"`
	Failed           int               `json:"failed"`
	FailedSources    map[string]string `json:"failed_sources,omitempty"`
}

// Runner runs ingestion passes over a fixed adapter set.
type Runner struct {
	adapters []sources.Adapter
	rules    []categorize.Rule
	store    *store.Store
	now      func() time.Time
}

// New creates a Runner. The rule list is applied in order during
// categorization.
func New(adapters []sources.Adapter, rules []categorize.Rule, st *store.Store) *Runner {
	return &Runner{
		adapters: adapters,
		rules:    rules,
		store:    st,
		now:      time.Now,
	}
}

// Run ingests up to maxItems articles per source. Adapters run
// concurrently and share no state; a failing adapter still contributes
// whatever items it fetched before the failure and is reported in
// FailedSources instead of failing the run. The returned error is reserved
// for storage-level failures that stop the whole batch.
func (r *Runner) Run(ctx context.Context, maxItems int) (*Report, error) {
	report := &Report{FailedSources: make(map[string]string)}

	var (
		mu  sync.Mutex
		raw []models.RawItem
		wg  sync.WaitGroup
	)

	for _, adapter := range r.adapters {
		wg.Add(1)
		go func(adapter sources.Adapter) {
			defer wg.Done()
			items, err := adapter.Fetch(ctx, maxItems)

			mu.Lock()
			defer mu.Unlock()
			raw = append(raw, items...)
			if err != nil {
				report.FailedSources[string(adapter.Source())] = err.Error()
				log.Error().
					Err(err).
					Str("source", string(adapter.Source())).
					Int("partial_items", len(items)).
					Msg("Source fetch failed")
			}
		}(adapter)
	}
	wg.Wait()

	report.Fetched = len(raw)

	ingestedAt := r.now().UTC()
	seen := make(map[string]struct{}, len(raw))
	batch := make([]models.Article, 0, len(raw))
	for _, item := range raw {
		article := normalize.Normalize(item, ingestedAt)
		if article.Title == "" {
			report.SkippedInvalid++
			log.Warn().
				Str("source", string(item.Source)).
				Str("native_id", item.NativeID).
				Msg("Skipping item without a title")
			continue
		}
		if _, dup := seen[article.Identity]; dup {
			continue
		}
		seen[article.Identity] = struct{}{}
		batch = append(batch, categorize.Apply(article, r.rules))
	}

	result, err := r.store.UpsertBatch(ctx, batch)
	report.Inserted = result.Inserted
	report.SkippedDuplicate = result.SkippedDuplicate
	report.Failed = result.Failed
	if err != nil {
		return report, fmt.Errorf("storing articles: %w", err)
	}

	log.Info().
		Int("fetched", report.Fetched).
		Int("inserted", report.Inserted).
		Int("skipped_duplicate", report.SkippedDuplicate).
		Int("skipped_invalid", report.SkippedInvalid).
		Int("failed", report.Failed).
		Int("failed_sources", len(report.FailedSources)).
		Msg("Ingestion run complete")

	return report, nil
}

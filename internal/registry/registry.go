// Package registry selects which sources are due for crawling and seeds the
// built-in source list.
package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// Registry wraps a SourceStore with due-date selection.
type Registry struct {
	store  pipeline.SourceStore
	clock  pipeline.Clock
	logger *zap.Logger
}

// SeedResult summarizes a Seed call.
type SeedResult struct {
	Initialized   int            `json:"initialized"`
	TotalSources  int            `json:"totalSources"`
	TierBreakdown map[string]int `json:"tierBreakdown"`
}

// New constructs a Registry.
func New(store pipeline.SourceStore, clock pipeline.Clock, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, clock: clock, logger: logger}
}

// ListDue returns allowed sources with tier <= maxTier that were never
// crawled or whose crawl frequency has elapsed, lowest tier first.
func (r *Registry) ListDue(ctx context.Context, maxTier, limit int) ([]pipeline.Source, error) {
	sources, err := r.store.ListDueSources(ctx, pipeline.DueQuery{
		MaxTier: maxTier,
		Limit:   limit,
		Now:     r.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("list due sources: %w", err)
	}
	return sources, nil
}

// MarkCrawled stamps the source with the current time.
func (r *Registry) MarkCrawled(ctx context.Context, sourceID int64) error {
	if err := r.store.MarkCrawled(ctx, sourceID, r.clock.Now()); err != nil {
		return fmt.Errorf("mark source %d crawled: %w", sourceID, err)
	}
	return nil
}

// MarkAttempted stamps the source's last attempt with the current time,
// whatever the fetch outcome.
func (r *Registry) MarkAttempted(ctx context.Context, sourceID int64) error {
	if err := r.store.MarkAttempted(ctx, sourceID, r.clock.Now()); err != nil {
		return fmt.Errorf("mark source %d attempted: %w", sourceID, err)
	}
	return nil
}

// Seed inserts the built-in sources whose URL is not yet registered.
func (r *Registry) Seed(ctx context.Context) (SeedResult, error) {
	seeds, err := SeedSources()
	if err != nil {
		return SeedResult{}, err
	}
	existing, err := r.store.ListSources(ctx)
	if err != nil {
		return SeedResult{}, fmt.Errorf("list sources: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		known[s.URL] = struct{}{}
	}

	var fresh []pipeline.Source
	for _, s := range seeds {
		if _, ok := known[s.URL]; ok {
			continue
		}
		known[s.URL] = struct{}{}
		fresh = append(fresh, s)
	}

	result := SeedResult{TotalSources: len(existing), TierBreakdown: map[string]int{}}
	if len(fresh) == 0 {
		r.logger.Info("all seed sources already registered", zap.Int("total", len(existing)))
		return result, nil
	}
	inserted, err := r.store.UpsertSources(ctx, fresh)
	if err != nil {
		return SeedResult{}, fmt.Errorf("insert seed sources: %w", err)
	}
	for _, s := range fresh {
		result.TierBreakdown[TierLabel(s.Tier)]++
	}
	result.Initialized = inserted
	result.TotalSources += inserted
	r.logger.Info("seeded sources", zap.Int("initialized", inserted), zap.Int("total", result.TotalSources))
	return result, nil
}

// TierLabel names the ROI band a tier belongs to.
func TierLabel(tier int) string {
	switch {
	case tier <= 2:
		return "Tier 1 (Highest ROI)"
	case tier <= 4:
		return "Tier 2 (Good Quality)"
	case tier <= 6:
		return "Tier 3 (Forum/Discussion)"
	case tier <= 8:
		return "Tier 4 (Regulatory)"
	default:
		return "Tier 5 (Supplementary)"
	}
}

package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/discover"
	"github.com/JakeFAU/yacht-qa-crawler/internal/id/uuid"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// TopicDiscoverCompleted is emitted when a discovery run completes.
const TopicDiscoverCompleted = "discover.run.completed"

// SourceTypeDiscovered marks sources registered by discovery.
const SourceTypeDiscovered = "discovered"

// Walker walks a site from a root URL.
type Walker interface {
	Walk(ctx context.Context, root string, visit discover.Visit) (discover.Result, error)
}

// DiscoverRequest parameterizes one discovery run. Zero MaxTier uses the
// batch default; a non-empty Domain restricts roots to that domain.
type DiscoverRequest struct {
	MaxTier int    `json:"maxTier"`
	Domain  string `json:"domain,omitempty"`
	Roots   int    `json:"roots"`
}

// DomainDiscovery reports one walked root.
type DomainDiscovery struct {
	Root         string `json:"root"`
	LinksFound   int    `json:"linksFound"`
	ArticleLinks int    `json:"articleLinks"`
	Registered   int    `json:"registered"`
	PagesStored  int    `json:"pagesStored"`
	Denied       int    `json:"denied"`
	Failed       int    `json:"failed"`
	Error        string `json:"error,omitempty"`
}

// DiscoverResult reports one discovery run.
type DiscoverResult struct {
	RunID      string            `json:"runId"`
	Status     string            `json:"status"`
	Message    string            `json:"message"`
	Roots      int               `json:"roots"`
	Registered int               `json:"registered"`
	Stored     int               `json:"stored"`
	Domains    []DomainDiscovery `json:"domains"`
}

// DiscoverRunner walks registered sources, stores every fetched page as a
// snapshot under its own run id, and registers discovered links as new
// sources one tier below their root.
type DiscoverRunner struct {
	sources   pipeline.SourceStore
	walker    Walker
	snapshots SnapshotSaver
	runs      pipeline.RunStore
	ids       pipeline.IDGenerator
	clock     pipeline.Clock
	events    emitter
	maxTier   int
	logger    *zap.Logger
}

// DiscoverDeps bundles DiscoverRunner collaborators. IDs, Clock, Events and
// Logger are optional.
type DiscoverDeps struct {
	Sources   pipeline.SourceStore
	Walker    Walker
	Snapshots SnapshotSaver
	Runs      pipeline.RunStore
	IDs       pipeline.IDGenerator
	Clock     pipeline.Clock
	Events    pipeline.EventPublisher
	MaxTier   int
	Logger    *zap.Logger
}

// NewDiscoverRunner constructs a DiscoverRunner.
func NewDiscoverRunner(deps DiscoverDeps) *DiscoverRunner {
	if deps.IDs == nil {
		deps.IDs = uuid.NewPrefixed("discover")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxTier <= 0 {
		deps.MaxTier = DefaultMaxTier
	}
	return &DiscoverRunner{
		sources:   deps.Sources,
		walker:    deps.Walker,
		snapshots: deps.Snapshots,
		runs:      deps.Runs,
		ids:       deps.IDs,
		clock:     deps.Clock,
		events:    emitter{publisher: deps.Events, logger: deps.Logger},
		maxTier:   deps.MaxTier,
		logger:    deps.Logger,
	}
}

// Run walks each eligible root in tier order. A root that fails is reported
// in its DomainDiscovery and the run moves on.
func (d *DiscoverRunner) Run(ctx context.Context, req DiscoverRequest) (DiscoverResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "discover.run")
	defer span.End()

	if req.MaxTier <= 0 {
		req.MaxTier = d.maxTier
	}
	roots, err := d.roots(ctx, req)
	if err != nil {
		return DiscoverResult{}, err
	}

	runID, err := d.ids.NewID()
	if err != nil {
		return DiscoverResult{}, fmt.Errorf("generate run id: %w", err)
	}
	if err := d.runs.CreateRun(ctx, pipeline.ScrapeRun{
		RunID:     runID,
		Status:    pipeline.RunRunning,
		BatchSize: len(roots),
		MaxTier:   req.MaxTier,
		StartedAt: d.clock.Now(),
	}); err != nil {
		return DiscoverResult{}, fmt.Errorf("create run: %w", err)
	}
	logger := d.logger.With(zap.String("run_id", runID))
	logger.Info("discovery started", zap.Int("roots", len(roots)), zap.Int("max_tier", req.MaxTier))

	res := DiscoverResult{RunID: runID, Roots: len(roots), Domains: []DomainDiscovery{}}
	var counts pipeline.RunCounts
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		dd := d.discoverRoot(ctx, runID, root, &counts, logger)
		res.Registered += dd.Registered
		res.Stored += dd.PagesStored
		res.Domains = append(res.Domains, dd)
	}

	status := pipeline.RunCompleted
	if ctx.Err() != nil {
		status = pipeline.RunFailed
	}
	if err := d.runs.CompleteRun(context.WithoutCancel(ctx), runID, status, counts, d.clock.Now()); err != nil {
		logger.Error("complete run failed", zap.Error(err))
	}

	res.Status = "success"
	res.Message = fmt.Sprintf("Discovered %d sources from %d roots", res.Registered, len(roots))
	if len(roots) == 0 {
		res.Status = "OK"
		res.Message = "No sources available"
	}
	d.events.emit(context.WithoutCancel(ctx), TopicDiscoverCompleted, map[string]any{
		"run_id":     runID,
		"status":     string(status),
		"roots":      len(roots),
		"registered": res.Registered,
		"stored":     res.Stored,
		"timestamp":  d.clock.Now().Format(time.RFC3339),
	})
	logger.Info("discovery complete",
		zap.Int("registered", res.Registered),
		zap.Int("stored", res.Stored),
		zap.Int("fetched", counts.Fetched),
	)
	return res, nil
}

func (d *DiscoverRunner) roots(ctx context.Context, req DiscoverRequest) ([]pipeline.Source, error) {
	all, err := d.sources.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	var roots []pipeline.Source
	for _, src := range all {
		if !src.Allowed || src.Tier > req.MaxTier || src.SourceType == SourceTypeDiscovered {
			continue
		}
		if domain != "" && !strings.EqualFold(src.Domain, domain) {
			continue
		}
		roots = append(roots, src)
		if req.Roots > 0 && len(roots) == req.Roots {
			break
		}
	}
	return roots, nil
}

func (d *DiscoverRunner) discoverRoot(
	ctx context.Context,
	runID string,
	root pipeline.Source,
	counts *pipeline.RunCounts,
	logger *zap.Logger,
) DomainDiscovery {
	logger = logger.With(zap.String("root", root.URL), zap.String("domain", root.Domain))
	dd := DomainDiscovery{Root: root.URL}

	walk, err := d.walker.Walk(ctx, root.URL, func(ctx context.Context, page pipeline.FetchedPage, _ int) error {
		_, stored, err := d.snapshots.Save(ctx, runID, root, page)
		if err != nil {
			counts.Failed++
			metrics.ObservePage("discover", "failed")
			return fmt.Errorf("store %s: %w", page.URL, err)
		}
		if stored {
			dd.PagesStored++
			counts.Fetched++
			metrics.ObservePage("discover", "fetched")
		} else {
			counts.Skipped++
			metrics.ObservePage("discover", "duplicate")
		}
		return nil
	})
	counts.Attempted += walk.Fetched + walk.Denied + walk.Failed
	counts.Failed += walk.Failed
	counts.Skipped += walk.Denied
	dd.LinksFound = len(walk.Links)
	dd.Denied = walk.Denied
	dd.Failed = walk.Failed
	if err != nil {
		dd.Error = err.Error()
		logger.Error("discovery walk failed", zap.Error(err))
		return dd
	}

	candidates := articleLinks(walk.Links)
	dd.ArticleLinks = len(candidates)
	if len(candidates) == 0 {
		candidates = walk.Links
	}
	fresh := make([]pipeline.Source, 0, len(candidates))
	for _, link := range candidates {
		fresh = append(fresh, pipeline.Source{
			URL:                link,
			Domain:             root.Domain,
			Tier:               root.Tier + 1,
			SourceType:         SourceTypeDiscovered,
			Allowed:            true,
			CrawlFrequencyDays: root.CrawlFrequencyDays,
			Notes:              "discovered from " + root.URL,
		})
	}
	if len(fresh) > 0 {
		inserted, err := d.sources.UpsertSources(ctx, fresh)
		dd.Registered = inserted
		if err != nil {
			dd.Error = err.Error()
			logger.Error("register discovered sources failed", zap.Error(err))
			return dd
		}
	}
	logger.Info("root discovered",
		zap.Int("links", dd.LinksFound),
		zap.Int("articles", dd.ArticleLinks),
		zap.Int("registered", dd.Registered),
		zap.Int("stored", dd.PagesStored),
	)
	return dd
}

// articleLinks keeps editorial-looking URLs.
func articleLinks(links []string) []string {
	var out []string
	for _, l := range links {
		if discover.IsArticle(l) {
			out = append(out, l)
		}
	}
	return out
}

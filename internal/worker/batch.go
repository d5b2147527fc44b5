package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/id/uuid"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// Batch defaults applied to zero request fields.
const (
	DefaultBatchSize = 5
	DefaultMaxTier   = 2
)

// SourceRegistry selects and stamps crawl targets.
type SourceRegistry interface {
	ListDue(ctx context.Context, maxTier, limit int) ([]pipeline.Source, error)
	MarkCrawled(ctx context.Context, sourceID int64) error
	MarkAttempted(ctx context.Context, sourceID int64) error
}

// SnapshotSaver stores fetched pages once per content hash.
type SnapshotSaver interface {
	Save(ctx context.Context, runID string, source pipeline.Source, page pipeline.FetchedPage) (pipeline.RawPage, bool, error)
}

// BatchRequest parameterizes one batch run.
type BatchRequest struct {
	BatchSize int `json:"batchSize"`
	MaxTier   int `json:"maxTier"`
}

// BatchResult reports one batch run.
type BatchResult struct {
	RunID     string   `json:"runId"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Attempted int      `json:"attempted"`
	Fetched   int      `json:"fetched"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// BatchRunner fetches due sources and stores their snapshots.
type BatchRunner struct {
	registry  SourceRegistry
	fetcher   pipeline.Fetcher
	snapshots SnapshotSaver
	runs      pipeline.RunStore
	ids       pipeline.IDGenerator
	clock     pipeline.Clock
	events    emitter
	defaults  BatchRequest
	logger    *zap.Logger
}

// BatchDeps bundles BatchRunner collaborators. IDs, Clock, Events and Logger
// are optional.
type BatchDeps struct {
	Registry  SourceRegistry
	Fetcher   pipeline.Fetcher
	Snapshots SnapshotSaver
	Runs      pipeline.RunStore
	IDs       pipeline.IDGenerator
	Clock     pipeline.Clock
	Events    pipeline.EventPublisher
	Defaults  BatchRequest
	Logger    *zap.Logger
}

// NewBatchRunner constructs a BatchRunner.
func NewBatchRunner(deps BatchDeps) *BatchRunner {
	if deps.IDs == nil {
		deps.IDs = uuid.NewPrefixed("batch")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Defaults.BatchSize <= 0 {
		deps.Defaults.BatchSize = DefaultBatchSize
	}
	if deps.Defaults.MaxTier <= 0 {
		deps.Defaults.MaxTier = DefaultMaxTier
	}
	return &BatchRunner{
		registry:  deps.Registry,
		fetcher:   deps.Fetcher,
		snapshots: deps.Snapshots,
		runs:      deps.Runs,
		ids:       deps.IDs,
		clock:     deps.Clock,
		events:    emitter{publisher: deps.Events, logger: deps.Logger},
		defaults:  deps.Defaults,
		logger:    deps.Logger,
	}
}

// Run executes one batch. Sources are fetched sequentially so the per-domain
// delay holds across the whole batch.
func (b *BatchRunner) Run(ctx context.Context, req BatchRequest) (BatchResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "batch.run")
	defer span.End()

	if req.BatchSize <= 0 {
		req.BatchSize = b.defaults.BatchSize
	}
	if req.MaxTier <= 0 {
		req.MaxTier = b.defaults.MaxTier
	}

	runID, err := b.ids.NewID()
	if err != nil {
		return BatchResult{}, fmt.Errorf("generate run id: %w", err)
	}
	if err := b.runs.CreateRun(ctx, pipeline.ScrapeRun{
		RunID:     runID,
		Status:    pipeline.RunRunning,
		BatchSize: req.BatchSize,
		MaxTier:   req.MaxTier,
		StartedAt: b.clock.Now(),
	}); err != nil {
		return BatchResult{}, fmt.Errorf("create run: %w", err)
	}
	logger := b.logger.With(zap.String("run_id", runID))
	logger.Info("batch started", zap.Int("batch_size", req.BatchSize), zap.Int("max_tier", req.MaxTier))

	sources, err := b.registry.ListDue(ctx, req.MaxTier, req.BatchSize)
	if err != nil {
		b.complete(ctx, runID, pipeline.RunFailed, pipeline.RunCounts{}, logger)
		return BatchResult{}, err
	}

	res := BatchResult{RunID: runID, Attempted: len(sources)}
	if len(sources) == 0 {
		b.complete(ctx, runID, pipeline.RunCompleted, pipeline.RunCounts{}, logger)
		res.Status = "OK"
		res.Message = "No sources available"
		return res, nil
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", src.URL, ctx.Err()))
			res.Failed++
			continue
		}
		b.runSource(ctx, runID, src, &res, logger)
	}

	status := pipeline.RunCompleted
	if ctx.Err() != nil {
		status = pipeline.RunFailed
	}
	counts := pipeline.RunCounts{
		Attempted: res.Attempted,
		Fetched:   res.Fetched,
		Failed:    res.Failed,
		Skipped:   res.Skipped,
	}
	b.complete(context.WithoutCancel(ctx), runID, status, counts, logger)

	res.Status = "success"
	res.Message = fmt.Sprintf("Scraped %d sources", res.Fetched)
	b.events.emit(context.WithoutCancel(ctx), TopicScrapeCompleted, map[string]any{
		"run_id":    runID,
		"status":    string(status),
		"attempted": res.Attempted,
		"fetched":   res.Fetched,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"timestamp": b.clock.Now().Format(time.RFC3339),
	})
	logger.Info("batch complete",
		zap.Int("fetched", res.Fetched),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (b *BatchRunner) runSource(ctx context.Context, runID string, src pipeline.Source, res *BatchResult, logger *zap.Logger) {
	logger = logger.With(zap.String("url", src.URL), zap.String("domain", src.Domain))
	defer func() {
		if err := b.registry.MarkAttempted(context.WithoutCancel(ctx), src.ID); err != nil {
			logger.Warn("mark attempted failed", zap.Error(err))
		}
	}()

	page, err := b.fetcher.Fetch(ctx, src.URL)
	if errors.Is(err, pipeline.ErrPolicyDenied) {
		res.Skipped++
		metrics.ObservePage("batch", "denied")
		logger.Info("source denied by crawl policy", zap.Error(err))
		return
	}
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", src.URL, err))
		metrics.ObservePage("batch", "failed")
		logger.Error("fetch failed", zap.Error(err))
		return
	}
	if page == nil {
		res.Failed++
		metrics.ObservePage("batch", "failed")
		logger.Warn("fetch returned no page")
		return
	}

	_, stored, err := b.snapshots.Save(ctx, runID, src, *page)
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", src.URL, err))
		metrics.ObservePage("batch", "failed")
		logger.Error("store snapshot failed", zap.Error(err))
		return
	}
	if stored {
		res.Fetched++
		metrics.ObservePage("batch", "fetched")
		logger.Info("snapshot stored")
	} else {
		res.Skipped++
		metrics.ObservePage("batch", "duplicate")
		logger.Info("content already stored, skipping")
	}

	if err := b.registry.MarkCrawled(ctx, src.ID); err != nil {
		logger.Warn("mark crawled failed", zap.Error(err))
	}
}

func (b *BatchRunner) complete(
	ctx context.Context,
	runID string,
	status pipeline.RunStatus,
	counts pipeline.RunCounts,
	logger *zap.Logger,
) {
	if err := b.runs.CompleteRun(ctx, runID, status, counts, b.clock.Now()); err != nil {
		logger.Error("complete run failed", zap.Error(err))
	}
}

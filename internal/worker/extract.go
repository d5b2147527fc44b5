package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/quality"
)

// DefaultExtractLimit caps pages per extract run.
const DefaultExtractLimit = 10

// PageQueue yields pending snapshots and records their extraction outcome.
type PageQueue interface {
	Pending(ctx context.Context, runID string, limit int) ([]pipeline.RawPage, error)
	MarkExtracted(ctx context.Context, pageID int64) error
	MarkSkipped(ctx context.Context, pageID int64) error
	MarkFailed(ctx context.Context, pageID int64, cause error) error
}

// Extractor mines drafts from page content.
type Extractor interface {
	Extract(ctx context.Context, content, sourceURL string) ([]pipeline.Draft, error)
}

// Gate validates drafts.
type Gate interface {
	ValidateBatch(drafts []pipeline.Draft, existingPending []string) []quality.Validated
}

// ExtractRequest parameterizes one extract run. An empty RunID processes
// pending pages from any run.
type ExtractRequest struct {
	RunID string `json:"runId"`
	Limit int    `json:"limit"`
}

// ExtractResult reports one extract run.
type ExtractResult struct {
	Status             string   `json:"status"`
	Message            string   `json:"message"`
	PagesProcessed     int      `json:"pagesProcessed"`
	TotalExtracted     int      `json:"totalQAExtracted"`
	CandidatesApproved int      `json:"candidatesApproved"`
	Errors             []string `json:"errors,omitempty"`
}

// ExtractRunner turns pending snapshots into review candidates.
type ExtractRunner struct {
	pages      PageQueue
	extractor  Extractor
	gate       Gate
	candidates pipeline.CandidateStore
	clock      pipeline.Clock
	events     emitter
	limit      int
	logger     *zap.Logger
}

// ExtractDeps bundles ExtractRunner collaborators.
type ExtractDeps struct {
	Pages      PageQueue
	Extractor  Extractor
	Gate       Gate
	Candidates pipeline.CandidateStore
	Clock      pipeline.Clock
	Events     pipeline.EventPublisher
	Limit      int
	Logger     *zap.Logger
}

// NewExtractRunner constructs an ExtractRunner.
func NewExtractRunner(deps ExtractDeps) *ExtractRunner {
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Limit <= 0 {
		deps.Limit = DefaultExtractLimit
	}
	return &ExtractRunner{
		pages:      deps.Pages,
		extractor:  deps.Extractor,
		gate:       deps.Gate,
		candidates: deps.Candidates,
		clock:      deps.Clock,
		events:     emitter{publisher: deps.Events, logger: deps.Logger},
		limit:      deps.Limit,
		logger:     deps.Logger,
	}
}

// Run extracts every pending page up to the limit. Approved questions join
// the pending set as they are stored, so later pages in the run dedup
// against them too.
func (r *ExtractRunner) Run(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "extract.run")
	defer span.End()

	if req.Limit <= 0 {
		req.Limit = r.limit
	}
	logger := r.logger.With(zap.String("run_id", req.RunID))

	pages, err := r.pages.Pending(ctx, req.RunID, req.Limit)
	if err != nil {
		return ExtractResult{}, err
	}
	if len(pages) == 0 {
		logger.Info("no pending pages")
		return ExtractResult{Status: "OK", Message: "No pending pages"}, nil
	}

	pending, err := r.candidates.PendingQuestions(ctx)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("load pending questions: %w", err)
	}

	res := ExtractResult{Status: "success", Message: "Extraction complete", PagesProcessed: len(pages)}
	for _, page := range pages {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", page.URL, ctx.Err()))
			break
		}
		drafts, approved, err := r.extractPage(ctx, page, pending)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", page.URL, err))
			metrics.ObservePage("extract", "failed")
			logger.Error("extraction failed", zap.String("url", page.URL), zap.Error(err))
			if markErr := r.pages.MarkFailed(context.WithoutCancel(ctx), page.ID, err); markErr != nil {
				logger.Error("mark page failed", zap.Int64("page_id", page.ID), zap.Error(markErr))
			}
			continue
		}
		res.TotalExtracted += drafts
		res.CandidatesApproved += len(approved)
		pending = append(pending, approved...)
	}

	r.events.emit(context.WithoutCancel(ctx), TopicExtractCompleted, map[string]any{
		"run_id":              req.RunID,
		"pages_processed":     res.PagesProcessed,
		"total_extracted":     res.TotalExtracted,
		"candidates_approved": res.CandidatesApproved,
		"errors":              len(res.Errors),
		"timestamp":           r.clock.Now().Format(time.RFC3339),
	})
	logger.Info("extraction complete",
		zap.Int("pages", res.PagesProcessed),
		zap.Int("extracted", res.TotalExtracted),
		zap.Int("approved", res.CandidatesApproved),
	)
	return res, nil
}

// extractPage returns the number of drafts and the approved questions.
func (r *ExtractRunner) extractPage(
	ctx context.Context,
	page pipeline.RawPage,
	pending []string,
) (int, []string, error) {
	drafts, err := r.extractor.Extract(ctx, page.FullContent, page.URL)
	if err != nil {
		return 0, nil, err
	}
	if len(drafts) == 0 {
		metrics.ObservePage("extract", "skipped")
		if err := r.pages.MarkSkipped(ctx, page.ID); err != nil {
			return 0, nil, err
		}
		return 0, nil, nil
	}

	validated := r.gate.ValidateBatch(drafts, pending)
	approved := quality.Approved(validated)
	metrics.ObserveCandidates("approved", len(approved))
	metrics.ObserveCandidates("rejected", len(validated)-len(approved))

	var questions []string
	if len(approved) > 0 {
		cands := make([]pipeline.Candidate, 0, len(approved))
		for _, v := range approved {
			cands = append(cands, v.Candidate(page.RunID, page.ID))
			questions = append(questions, v.Question)
		}
		if _, err := r.candidates.InsertCandidates(ctx, cands); err != nil {
			return 0, nil, fmt.Errorf("insert candidates: %w", err)
		}
	}
	if err := r.pages.MarkExtracted(ctx, page.ID); err != nil {
		return 0, nil, err
	}
	metrics.ObservePage("extract", "extracted")
	return len(drafts), questions, nil
}

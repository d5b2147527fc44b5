// Package publish bulk-promotes candidates into public entries.
package publish

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const (
	reasonBulkPublish = "Bulk publish"
	previewChars      = 50
	bulkReviewer      = "bulk_publish"
)

// Store is the persistence the publisher needs.
type Store interface {
	pipeline.CandidateStore
	pipeline.EntryStore
	pipeline.ReviewStore
}

// Filter narrows the candidates considered for publication.
type Filter struct {
	MinConfidence float64  `json:"minConfidence"`
	Tags          []string `json:"tags"`
	NoFlags       bool     `json:"noFlags"`
}

// PreviewItem is one row of a dry run.
type PreviewItem struct {
	ID           int64    `json:"id"`
	Question     string   `json:"question"`
	Confidence   float64  `json:"confidence"`
	QualityFlags []string `json:"flags"`
}

// Result reports a publish run. Errors lists per-candidate failures.
type Result struct {
	DryRun    bool          `json:"dryRun"`
	Published int           `json:"published"`
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors,omitempty"`
	Preview   []PreviewItem `json:"preview,omitempty"`
}

// Publisher promotes approved or still-pending candidates.
type Publisher struct {
	store  Store
	clock  pipeline.Clock
	logger *zap.Logger
}

// New builds a Publisher. A nil clock uses the system clock.
func New(store Store, clock pipeline.Clock, logger *zap.Logger) *Publisher {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{store: store, clock: clock, logger: logger}
}

// Publish selects candidates matching f. A dry run returns the preview and
// writes nothing. Otherwise each candidate whose question already has an
// entry is skipped and the rest are inserted along with an audit row.
func (p *Publisher) Publish(ctx context.Context, f Filter, dryRun bool) (Result, error) {
	cands, err := p.store.ListCandidates(ctx, pipeline.CandidateQuery{
		Statuses:      []pipeline.ReviewStatus{pipeline.StatusApproved, pipeline.StatusPending},
		MinConfidence: f.MinConfidence,
	})
	if err != nil {
		return Result{}, fmt.Errorf("list candidates: %w", err)
	}
	cands = slices.DeleteFunc(cands, func(c pipeline.Candidate) bool { return !f.matches(c) })

	res := Result{DryRun: dryRun, Total: len(cands)}
	if dryRun {
		res.Preview = make([]PreviewItem, 0, len(cands))
		for _, c := range cands {
			res.Preview = append(res.Preview, PreviewItem{
				ID:           c.ID,
				Question:     truncateRunes(c.Question, previewChars),
				Confidence:   c.Confidence,
				QualityFlags: c.QualityFlags,
			})
		}
		return res, nil
	}

	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("candidate %d: %v", c.ID, err))
			break
		}
		published, err := p.publishOne(ctx, c)
		switch {
		case published:
			res.Published++
			if err != nil {
				p.logger.Warn("entry published without audit review",
					zap.Int64("candidate_id", c.ID), zap.Error(err))
			}
		case err != nil:
			p.logger.Warn("bulk publish failed", zap.Int64("candidate_id", c.ID), zap.Error(err))
			res.Errors = append(res.Errors, fmt.Sprintf("candidate %d: %v", c.ID, err))
		default:
			res.Skipped++
		}
	}
	metrics.ObserveEntriesPublished("bulk", res.Published)
	p.logger.Info("bulk publish complete",
		zap.Int("total", res.Total),
		zap.Int("published", res.Published),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// publishOne reports published=true once the entry exists, even when the
// audit review insert then fails.
func (p *Publisher) publishOne(ctx context.Context, c pipeline.Candidate) (bool, error) {
	_, err := p.store.FindEntryByQuestionHash(ctx, c.QuestionHash)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, pipeline.ErrNotFound):
		return false, fmt.Errorf("find entry: %w", err)
	}

	entry, err := p.store.InsertEntry(ctx, pipeline.EntryFromCandidate(c, p.clock.Now()))
	if err != nil {
		if errors.Is(err, pipeline.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("insert entry: %w", err)
	}
	entryID := entry.ID
	if _, err := p.store.InsertReview(ctx, pipeline.Review{
		CandidateID: c.ID,
		EntryID:     &entryID,
		Action:      pipeline.ActionApproved,
		Reason:      reasonBulkPublish,
		Reviewer:    bulkReviewer,
	}); err != nil {
		return true, fmt.Errorf("insert review: %w", err)
	}
	return true, nil
}

func (f Filter) matches(c pipeline.Candidate) bool {
	if c.Confidence < f.MinConfidence {
		return false
	}
	if f.NoFlags && len(c.QualityFlags) > 0 {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(c.Tags, t) }) {
		return false
	}
	return true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

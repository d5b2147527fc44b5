// Package review moves candidates through the pending, approved and rejected
// states and promotes approved candidates into public entries.
//
// Every action checks its preconditions before the first write, so a refused
// action leaves the candidate, the entries and the audit log untouched.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/quality"
)

// Default audit reasons.
const (
	ReasonApprove = "Manual approval"
	ReasonReject  = "Rejected by reviewer"
	ReasonEdit    = "Edited before approval"

	minQuestionChars = 5
	minAnswerChars   = 40
	defaultReviewer  = "system"
)

// Action names accepted by Apply.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionEdit    = "edit"
)

// Store is the persistence the workflow needs.
type Store interface {
	pipeline.CandidateStore
	pipeline.EntryStore
	pipeline.ReviewStore
}

// Outcome describes a completed action.
type Outcome struct {
	CandidateID int64                 `json:"candidateId"`
	Action      pipeline.ReviewAction `json:"action"`
	Status      pipeline.ReviewStatus `json:"status"`
	EntryID     *int64                `json:"entryId,omitempty"`
	ReviewID    int64                 `json:"reviewId"`
}

// Detail is a candidate with its audit history.
type Detail struct {
	Candidate    pipeline.Candidate `json:"candidate"`
	Reviews      []pipeline.Review  `json:"reviews"`
	QualityScore int                `json:"qualityScore"`
	Suggestion   quality.Suggestion `json:"suggestion"`
}

// Request is a single action as it arrives from the API or CLI.
type Request struct {
	CandidateID    int64  `json:"candidateId"`
	Action         string `json:"action"`
	Reason         string `json:"reason"`
	EditedQuestion string `json:"editedQuestion"`
	EditedAnswer   string `json:"editedAnswer"`
}

// Workflow applies review actions.
type Workflow struct {
	store    Store
	clock    pipeline.Clock
	hasher   pipeline.Hasher
	reviewer string
	logger   *zap.Logger
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithClock overrides the clock used for published timestamps.
func WithClock(c pipeline.Clock) Option { return func(w *Workflow) { w.clock = c } }

// WithHasher overrides the content hasher.
func WithHasher(h pipeline.Hasher) Option { return func(w *Workflow) { w.hasher = h } }

// WithReviewer sets the name recorded on audit rows.
func WithReviewer(name string) Option { return func(w *Workflow) { w.reviewer = name } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(w *Workflow) { w.logger = l } }

// New builds a Workflow over store.
func New(store Store, opts ...Option) *Workflow {
	w := &Workflow{
		store:    store,
		clock:    system.New(),
		hasher:   sha256.New(),
		reviewer: defaultReviewer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Apply dispatches a Request to Approve, Reject or Edit.
func (w *Workflow) Apply(ctx context.Context, req Request) (Outcome, error) {
	switch strings.ToLower(req.Action) {
	case ActionApprove:
		return w.Approve(ctx, req.CandidateID, req.Reason)
	case ActionReject:
		return w.Reject(ctx, req.CandidateID, req.Reason)
	case ActionEdit:
		return w.Edit(ctx, req.CandidateID, req.EditedQuestion, req.EditedAnswer)
	default:
		return Outcome{}, fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
	}
}

// Approve publishes a pending candidate as an active entry.
func (w *Workflow) Approve(ctx context.Context, candidateID int64, reason string) (Outcome, error) {
	c, err := w.pending(ctx, candidateID)
	if err != nil {
		return Outcome{}, err
	}
	if err := w.ensureUnpublished(ctx, c.QuestionHash, c.AnswerHash); err != nil {
		return Outcome{}, err
	}

	entry, err := w.store.InsertEntry(ctx, pipeline.EntryFromCandidate(c, w.clock.Now()))
	if err != nil {
		if errors.Is(err, pipeline.ErrDuplicate) {
			return Outcome{}, ErrConflict
		}
		return Outcome{}, fmt.Errorf("insert entry: %w", err)
	}
	entryID := entry.ID
	rev, err := w.store.InsertReview(ctx, pipeline.Review{
		CandidateID: c.ID,
		EntryID:     &entryID,
		Action:      pipeline.ActionApproved,
		Reason:      orDefault(reason, ReasonApprove),
		Reviewer:    w.reviewer,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("insert review: %w", err)
	}
	if err := w.store.UpdateCandidateStatus(ctx, c.ID, pipeline.StatusApproved); err != nil {
		return Outcome{}, fmt.Errorf("update candidate status: %w", err)
	}

	metrics.ObserveEntriesPublished("review", 1)
	w.logger.Info("candidate approved",
		zap.Int64("candidate_id", c.ID),
		zap.Int64("entry_id", entryID),
	)
	return Outcome{
		CandidateID: c.ID,
		Action:      pipeline.ActionApproved,
		Status:      pipeline.StatusApproved,
		EntryID:     &entryID,
		ReviewID:    rev.ID,
	}, nil
}

// Reject closes a pending candidate without publishing it.
func (w *Workflow) Reject(ctx context.Context, candidateID int64, reason string) (Outcome, error) {
	c, err := w.pending(ctx, candidateID)
	if err != nil {
		return Outcome{}, err
	}
	rev, err := w.store.InsertReview(ctx, pipeline.Review{
		CandidateID: c.ID,
		Action:      pipeline.ActionRejected,
		Reason:      orDefault(reason, ReasonReject),
		Reviewer:    w.reviewer,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("insert review: %w", err)
	}
	if err := w.store.UpdateCandidateStatus(ctx, c.ID, pipeline.StatusRejected); err != nil {
		return Outcome{}, fmt.Errorf("update candidate status: %w", err)
	}
	w.logger.Info("candidate rejected", zap.Int64("candidate_id", c.ID))
	return Outcome{
		CandidateID: c.ID,
		Action:      pipeline.ActionRejected,
		Status:      pipeline.StatusRejected,
		ReviewID:    rev.ID,
	}, nil
}

// Edit rewrites a pending candidate's text. Empty arguments keep the
// original text. The candidate stays pending.
func (w *Workflow) Edit(ctx context.Context, candidateID int64, question, answer string) (Outcome, error) {
	c, err := w.pending(ctx, candidateID)
	if err != nil {
		return Outcome{}, err
	}

	newQ := orDefault(strings.TrimSpace(question), c.Question)
	newA := orDefault(strings.TrimSpace(answer), c.Answer)
	if len(newQ) < minQuestionChars {
		return Outcome{}, fmt.Errorf("%w: question must be at least %d characters", ErrValidation, minQuestionChars)
	}
	if len(newA) < minAnswerChars {
		return Outcome{}, fmt.Errorf("%w: answer must be at least %d characters", ErrValidation, minAnswerChars)
	}

	qHash := w.hasher.HashString(newQ)
	aHash := w.hasher.HashString(newA)
	if err := w.ensureUnpublished(ctx, qHash, aHash); err != nil {
		return Outcome{}, err
	}

	if err := w.store.UpdateCandidateContent(ctx, c.ID, newQ, newA, qHash, aHash); err != nil {
		return Outcome{}, fmt.Errorf("update candidate content: %w", err)
	}
	origQ, origA := c.Question, c.Answer
	rev, err := w.store.InsertReview(ctx, pipeline.Review{
		CandidateID:      c.ID,
		Action:           pipeline.ActionEdited,
		Reason:           ReasonEdit,
		OriginalQuestion: &origQ,
		OriginalAnswer:   &origA,
		EditedQuestion:   &newQ,
		EditedAnswer:     &newA,
		Reviewer:         w.reviewer,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("insert review: %w", err)
	}
	w.logger.Info("candidate edited", zap.Int64("candidate_id", c.ID))
	return Outcome{
		CandidateID: c.ID,
		Action:      pipeline.ActionEdited,
		Status:      pipeline.StatusPending,
		ReviewID:    rev.ID,
	}, nil
}

// Get returns a candidate and its review history.
func (w *Workflow) Get(ctx context.Context, candidateID int64) (Detail, error) {
	c, err := w.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return Detail{}, fmt.Errorf("get candidate %d: %w", candidateID, err)
	}
	reviews, err := w.store.ListReviews(ctx, candidateID)
	if err != nil {
		return Detail{}, fmt.Errorf("list reviews: %w", err)
	}
	return Detail{
		Candidate:    c,
		Reviews:      reviews,
		QualityScore: quality.Score(c.QualityFlags, c.Confidence, c.ExtractionMethod),
		Suggestion:   quality.Suggest(c),
	}, nil
}

func (w *Workflow) pending(ctx context.Context, candidateID int64) (pipeline.Candidate, error) {
	c, err := w.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return pipeline.Candidate{}, fmt.Errorf("get candidate %d: %w", candidateID, err)
	}
	if c.ReviewStatus != pipeline.StatusPending {
		return pipeline.Candidate{}, &StateError{CandidateID: c.ID, Status: c.ReviewStatus}
	}
	return c, nil
}

func (w *Workflow) ensureUnpublished(ctx context.Context, questionHash, answerHash string) error {
	_, err := w.store.FindEntryByHashes(ctx, questionHash, answerHash)
	switch {
	case err == nil:
		return ErrConflict
	case errors.Is(err, pipeline.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("find entry: %w", err)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

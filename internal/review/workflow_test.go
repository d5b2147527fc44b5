package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/extract"
	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/quality"
	"github.com/JakeFAU/yacht-qa-crawler/internal/storage/memory"
)

const hullAnswer = "Hull insurance covers physical damage to the vessel from collision, fire, and weather."

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedCandidate(t *testing.T, store *memory.Store, question, answer string) int64 {
	t.Helper()
	_, err := store.InsertCandidates(context.Background(), []pipeline.Candidate{{
		SourceURL:    "https://example.com/faq",
		Question:     question,
		Answer:       answer,
		QuestionHash: sha256.Sum(question),
		AnswerHash:   sha256.Sum(answer),
		Tags:         []string{"coverage"},
		Confidence:   0.8,
	}})
	require.NoError(t, err)
	cands, err := store.ListCandidates(context.Background(), pipeline.CandidateQuery{})
	require.NoError(t, err)
	return cands[len(cands)-1].ID
}

func newWorkflow(store Store) *Workflow {
	return New(store, WithClock(system.NewManual(fixedNow)), WithReviewer("tester"))
}

func TestApprovePublishesEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()
	id := seedCandidate(t, store, "What is hull insurance?", hullAnswer)

	out, err := newWorkflow(store).Approve(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusApproved, out.Status)
	require.NotNil(t, out.EntryID)

	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Active)
	require.Equal(t, fixedNow, entries[0].PublishedAt)
	require.Equal(t, *out.EntryID, entries[0].ID)

	reviews, err := store.ListReviews(ctx, id)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, pipeline.ActionApproved, reviews[0].Action)
	require.Equal(t, ReasonApprove, reviews[0].Reason)
	require.Equal(t, "tester", reviews[0].Reviewer)
	require.Equal(t, out.EntryID, reviews[0].EntryID)

	c, err := store.GetCandidate(ctx, id)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusApproved, c.ReviewStatus)
}

func TestApproveConflictsWithPublishedEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()
	first := seedCandidate(t, store, "What is hull insurance?", hullAnswer)
	second := seedCandidate(t, store, "What is hull insurance?", hullAnswer)
	w := newWorkflow(store)

	_, err := w.Approve(ctx, first, "")
	require.NoError(t, err)

	_, err = w.Approve(ctx, second, "")
	require.ErrorIs(t, err, ErrConflict)

	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	c, err := store.GetCandidate(ctx, second)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPending, c.ReviewStatus)
	reviews, err := store.ListReviews(ctx, second)
	require.NoError(t, err)
	require.Empty(t, reviews)
}

func TestRejectOnApprovedIsStateConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()
	id := seedCandidate(t, store, "What is hull insurance?", hullAnswer)
	w := newWorkflow(store)

	_, err := w.Approve(ctx, id, "looks right")
	require.NoError(t, err)

	_, err = w.Reject(ctx, id, "changed my mind")
	require.ErrorIs(t, err, ErrStateConflict)
	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	require.Contains(t, err.Error(), "approved")

	c, err := store.GetCandidate(ctx, id)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusApproved, c.ReviewStatus)
	reviews, err := store.ListReviews(ctx, id)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRejectRecordsReason(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()
	id := seedCandidate(t, store, "What is hull insurance?", hullAnswer)

	out, err := newWorkflow(store).Reject(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusRejected, out.Status)
	require.Nil(t, out.EntryID)

	reviews, err := store.ListReviews(ctx, id)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, ReasonReject, reviews[0].Reason)

	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestEdit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()
	id := seedCandidate(t, store, "What is hull insurance?", hullAnswer)
	w := newWorkflow(store)

	newAnswer := "Hull insurance pays to repair or replace the yacht after an insured loss."
	out, err := w.Edit(ctx, id, "", newAnswer)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPending, out.Status)

	c, err := store.GetCandidate(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "What is hull insurance?", c.Question)
	require.Equal(t, newAnswer, c.Answer)
	require.Equal(t, sha256.Sum(newAnswer), c.AnswerHash)
	require.Equal(t, pipeline.StatusPending, c.ReviewStatus)

	reviews, err := store.ListReviews(ctx, id)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, pipeline.ActionEdited, reviews[0].Action)
	require.Equal(t, ReasonEdit, reviews[0].Reason)
	require.Equal(t, hullAnswer, *reviews[0].OriginalAnswer)
	require.Equal(t, newAnswer, *reviews[0].EditedAnswer)
}

func TestEditValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		question string
		answer   string
	}{
		{name: "short question", question: "Hull", answer: ""},
		{name: "short answer", question: "", answer: "Too short to publish."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := memory.NewStore()
			id := seedCandidate(t, store, "What is hull insurance?", hullAnswer)

			_, err := newWorkflow(store).Edit(ctx, id, tt.question, tt.answer)
			require.ErrorIs(t, err, ErrValidation)

			c, err := store.GetCandidate(ctx, id)
			require.NoError(t, err)
			require.Equal(t, hullAnswer, c.Answer)
			reviews, err := store.ListReviews(ctx, id)
			require.NoError(t, err)
			require.Empty(t, reviews)
		})
	}
}

func TestEditCollisionLeavesCandidateUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()
	published := seedCandidate(t, store, "What is hull insurance?", hullAnswer)
	other := seedCandidate(t, store, "What does hull cover include?", strings.Repeat("vessel ", 10))
	w := newWorkflow(store)

	_, err := w.Approve(ctx, published, "")
	require.NoError(t, err)

	_, err = w.Edit(ctx, other, "What is hull insurance?", hullAnswer)
	require.ErrorIs(t, err, ErrConflict)

	c, err := store.GetCandidate(ctx, other)
	require.NoError(t, err)
	require.Equal(t, "What does hull cover include?", c.Question)
	require.Equal(t, pipeline.StatusPending, c.ReviewStatus)
	reviews, err := store.ListReviews(ctx, other)
	require.NoError(t, err)
	require.Empty(t, reviews)
}

func TestApplyAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()
	id := seedCandidate(t, store, "What is hull insurance?", hullAnswer)
	w := newWorkflow(store)

	_, err := w.Apply(ctx, Request{CandidateID: id, Action: "archive"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = w.Apply(ctx, Request{CandidateID: id, Action: "Reject", Reason: "off topic"})
	require.NoError(t, err)

	d, err := w.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusRejected, d.Candidate.ReviewStatus)
	require.Len(t, d.Reviews, 1)
	require.Equal(t, "off topic", d.Reviews[0].Reason)
	require.Equal(t, 100, d.QualityScore)
	require.Empty(t, d.Suggestion.Improvements)
	require.Equal(t, "What is hull insurance?", d.Suggestion.Question)

	_, err = w.Get(ctx, 999)
	require.ErrorIs(t, err, pipeline.ErrNotFound)
	_, err = w.Approve(ctx, 999, "")
	require.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestApproveSurfacesLookupFailure(t *testing.T) {
	t.Parallel()
	store := &brokenEntries{Store: memory.NewStore()}
	id := seedCandidate(t, store.Store, "What is hull insurance?", hullAnswer)

	_, err := newWorkflow(store).Approve(context.Background(), id, "")
	require.ErrorIs(t, err, errLookup)
	c, err := store.GetCandidate(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPending, c.ReviewStatus)
}

func TestHullInsuranceEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()

	drafts, err := extract.New().Extract(ctx,
		"Q: What is hull insurance?\nA: "+hullAnswer, "https://example.com/faq")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "What is hull insurance?", drafts[0].Question)
	require.Contains(t, drafts[0].Tags, extract.TagCoverage)
	require.InDelta(t, 0.4, drafts[0].Confidence, 1e-9)

	validated := quality.New(quality.Config{}, nil).ValidateBatch(drafts, nil)
	require.Len(t, validated, 1)
	require.True(t, validated[0].IsApproved, validated[0].RejectionReason)

	_, err = store.InsertCandidates(ctx, []pipeline.Candidate{validated[0].Candidate("batch_test", 1)})
	require.NoError(t, err)
	cands, err := store.ListCandidates(ctx, pipeline.CandidateQuery{})
	require.NoError(t, err)
	require.Len(t, cands, 1)

	_, err = newWorkflow(store).Approve(ctx, cands[0].ID, "")
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	reviews, err := store.ListReviews(ctx, cands[0].ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, pipeline.ActionApproved, reviews[0].Action)
}

var errLookup = errors.New("entry lookup failed")

type brokenEntries struct {
	*memory.Store
}

func (*brokenEntries) FindEntryByHashes(context.Context, string, string) (pipeline.Entry, error) {
	return pipeline.Entry{}, errLookup
}

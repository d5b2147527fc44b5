package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

func TestStoreSourcesDueOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()

	n, err := s.UpsertSources(ctx, []pipeline.Source{
		{URL: "https://b.example/faq", Tier: 2, Allowed: true, CrawlFrequencyDays: 7},
		{URL: "https://a.example/faq", Tier: 1, Allowed: true, CrawlFrequencyDays: 7},
		{URL: "https://c.example/faq", Tier: 1, Allowed: false, CrawlFrequencyDays: 7},
		{URL: "https://d.example/faq", Tier: 5, Allowed: true, CrawlFrequencyDays: 7},
	})
	require.NoError(t, err)
	require.Equal(t, 4, n)

	n, err = s.UpsertSources(ctx, []pipeline.Source{{URL: "https://a.example/faq", Tier: 1}})
	require.NoError(t, err)
	require.Zero(t, n)

	due, err := s.ListDueSources(ctx, pipeline.DueQuery{MaxTier: 2, Limit: 10, Now: now})
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "https://a.example/faq", due[0].URL)
	require.Equal(t, "https://b.example/faq", due[1].URL)

	require.NoError(t, s.MarkCrawled(ctx, due[0].ID, now.Add(-24*time.Hour)))
	due, err = s.ListDueSources(ctx, pipeline.DueQuery{MaxTier: 2, Limit: 10, Now: now})
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "https://b.example/faq", due[0].URL)

	due, err = s.ListDueSources(ctx, pipeline.DueQuery{MaxTier: 2, Limit: 10, Now: now.Add(7 * 24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, due, 2)

	require.ErrorIs(t, s.MarkCrawled(ctx, 999, now), pipeline.ErrNotFound)
}

func TestStoreDueOrderingRotatesAttemptedSources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	_, err := s.UpsertSources(ctx, []pipeline.Source{
		{URL: "https://denied.example/faq", Tier: 1, Allowed: true, CrawlFrequencyDays: 7},
		{URL: "https://flaky.example/faq", Tier: 1, Allowed: true, CrawlFrequencyDays: 7},
		{URL: "https://fresh.example/faq", Tier: 1, Allowed: true, CrawlFrequencyDays: 7},
		{URL: "https://tier2.example/faq", Tier: 2, Allowed: true, CrawlFrequencyDays: 7},
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkAttempted(ctx, 1, now.Add(-time.Hour)))
	require.NoError(t, s.MarkAttempted(ctx, 2, now.Add(-2*time.Hour)))

	due, err := s.ListDueSources(ctx, pipeline.DueQuery{MaxTier: 2, Now: now})
	require.NoError(t, err)
	require.Len(t, due, 4)
	got := make([]string, 0, len(due))
	for _, src := range due {
		got = append(got, src.URL)
	}
	require.Equal(t, []string{
		"https://fresh.example/faq",
		"https://flaky.example/faq",
		"https://denied.example/faq",
		"https://tier2.example/faq",
	}, got)
	require.NotNil(t, due[1].LastAttemptedAt)
	require.Nil(t, due[1].LastCrawledAt)

	require.ErrorIs(t, s.MarkAttempted(ctx, 999, now), pipeline.ErrNotFound)
}

func TestStorePagesDedupAndPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()

	p1, err := s.InsertPage(ctx, pipeline.RawPage{RunID: "run-1", ContentHash: "h1"})
	require.NoError(t, err)
	require.Equal(t, pipeline.ExtractionPending, p1.ExtractionStatus)
	_, err = s.InsertPage(ctx, pipeline.RawPage{RunID: "run-1", ContentHash: "h1"})
	require.ErrorIs(t, err, pipeline.ErrDuplicate)
	_, err = s.InsertPage(ctx, pipeline.RawPage{RunID: "run-2", ContentHash: "h2"})
	require.NoError(t, err)

	found, err := s.FindPageByHash(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, p1.ID, found.ID)
	_, err = s.FindPageByHash(ctx, "nope")
	require.ErrorIs(t, err, pipeline.ErrNotFound)

	pending, err := s.ListPendingPages(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	pending, err = s.ListPendingPages(ctx, "run-2", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	msg := "boom"
	require.NoError(t, s.UpdateExtraction(ctx, p1.ID, pipeline.ExtractionFailed, &msg))
	pending, err = s.ListPendingPages(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestStoreCandidatesAndEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()

	n, err := s.InsertCandidates(ctx, []pipeline.Candidate{
		{Question: "What is hull cover?", Confidence: 0.8, Tags: []string{"coverage"}},
		{Question: "What is P&I?", Confidence: 0.4},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	qs, err := s.PendingQuestions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"What is hull cover?", "What is P&I?"}, qs)

	require.NoError(t, s.UpdateCandidateStatus(ctx, 2, pipeline.StatusRejected))
	list, err := s.ListCandidates(ctx, pipeline.CandidateQuery{
		Statuses:      []pipeline.ReviewStatus{pipeline.StatusPending, pipeline.StatusApproved},
		MinConfidence: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := s.GetCandidate(ctx, 1)
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	again, err := s.GetCandidate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "coverage", again.Tags[0])

	require.NoError(t, s.UpdateCandidateContent(ctx, 1, "Q?", "A", "qh", "ah"))
	again, err = s.GetCandidate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "qh", again.QuestionHash)

	e, err := s.InsertEntry(ctx, pipeline.Entry{QuestionHash: "qh", AnswerHash: "ah", Active: true, Tags: []string{"coverage"}})
	require.NoError(t, err)
	require.NotZero(t, e.ID)
	_, err = s.InsertEntry(ctx, pipeline.Entry{QuestionHash: "qh", AnswerHash: "ah"})
	require.ErrorIs(t, err, pipeline.ErrDuplicate)
	_, err = s.InsertEntry(ctx, pipeline.Entry{QuestionHash: "qh2", AnswerHash: "ah2", Active: false})
	require.NoError(t, err)

	_, err = s.FindEntryByHashes(ctx, "qh", "ah")
	require.NoError(t, err)
	_, err = s.FindEntryByQuestionHash(ctx, "qh2")
	require.NoError(t, err)
	_, err = s.FindEntryByQuestionHash(ctx, "none")
	require.ErrorIs(t, err, pipeline.ErrNotFound)

	active, err := s.ListEntries(ctx, pipeline.EntryQuery{ActiveOnly: true, Tag: "coverage"})
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestStoreReviewsAndRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	s.SetClock(func() time.Time { return fixed })

	r, err := s.InsertReview(ctx, pipeline.Review{CandidateID: 7, Action: pipeline.ActionRejected})
	require.NoError(t, err)
	require.Equal(t, fixed, r.CreatedAt)
	reviews, err := s.ListReviews(ctx, 7)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	require.NoError(t, s.CreateRun(ctx, pipeline.ScrapeRun{RunID: "batch_1", StartedAt: fixed}))
	require.ErrorIs(t, s.CreateRun(ctx, pipeline.ScrapeRun{RunID: "batch_1"}), pipeline.ErrDuplicate)
	counts := pipeline.RunCounts{Attempted: 4, Fetched: 2, Failed: 1, Skipped: 1}
	require.NoError(t, s.CompleteRun(ctx, "batch_1", pipeline.RunCompleted, counts, fixed.Add(time.Minute)))
	run, err := s.GetRun(ctx, "batch_1")
	require.NoError(t, err)
	require.Equal(t, pipeline.RunCompleted, run.Status)
	require.Equal(t, counts, run.Counts)
	require.NotNil(t, run.CompletedAt)

	require.ErrorIs(t, s.CompleteRun(ctx, "missing", pipeline.RunFailed, counts, fixed), pipeline.ErrNotFound)
}

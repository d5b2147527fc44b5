package publish

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/storage/memory"
)

func candidate(q string, conf float64, status pipeline.ReviewStatus, tags []string, flags []string) pipeline.Candidate {
	a := "Answer for " + q + " with enough words to look real."
	return pipeline.Candidate{
		Question:     q,
		Answer:       a,
		QuestionHash: sha256.Sum(q),
		AnswerHash:   sha256.Sum(a),
		Confidence:   conf,
		ReviewStatus: status,
		Tags:         tags,
		QualityFlags: flags,
		SourceURL:    "https://example.com",
	}
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	_, err := store.InsertCandidates(context.Background(), []pipeline.Candidate{
		candidate("What is hull insurance?", 0.8, pipeline.StatusApproved, []string{"coverage"}, nil),
		candidate("Is towing covered?", 0.6, pipeline.StatusPending, []string{"coverage"}, []string{"too_short"}),
		candidate("Can I cruise to Mexico?", 0.8, pipeline.StatusRejected, []string{"requirements"}, nil),
		candidate("What drives the premium?", 0.4, pipeline.StatusPending, []string{"cost"}, nil),
	})
	require.NoError(t, err)
	return store
}

func TestPublishDryRunWritesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seeded(t)

	res, err := New(store, nil, nil).Publish(ctx, Filter{}, true)
	require.NoError(t, err)
	require.True(t, res.DryRun)
	require.Equal(t, 3, res.Total)
	require.Len(t, res.Preview, 3)
	require.Equal(t, 0, res.Published)
	require.Equal(t, []string{"too_short"}, res.Preview[1].QualityFlags)

	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPublishFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "all publishable", filter: Filter{}, want: 3},
		{name: "min confidence", filter: Filter{MinConfidence: 0.6}, want: 2},
		{name: "no flags", filter: Filter{NoFlags: true}, want: 2},
		{name: "tag overlap", filter: Filter{Tags: []string{"cost", "exclusions"}}, want: 1},
		{name: "combined", filter: Filter{MinConfidence: 0.5, Tags: []string{"coverage"}, NoFlags: true}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := New(seeded(t), nil, nil).Publish(context.Background(), tt.filter, true)
			require.NoError(t, err)
			require.Equal(t, tt.want, res.Total)
		})
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seeded(t)
	p := New(store, nil, nil)

	res, err := p.Publish(ctx, Filter{}, false)
	require.NoError(t, err)
	require.Equal(t, 3, res.Published)
	require.Empty(t, res.Errors)

	res, err = p.Publish(ctx, Filter{}, false)
	require.NoError(t, err)
	require.Equal(t, 0, res.Published)
	require.Equal(t, 3, res.Skipped)

	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	reviews, err := store.ListReviews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, reasonBulkPublish, reviews[0].Reason)

	// candidate status is left as it was
	c, err := store.GetCandidate(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusPending, c.ReviewStatus)
}

func TestPublishAccumulatesFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &flakyEntries{Store: seeded(t), failOn: sha256.Sum("Is towing covered?")}

	res, err := New(store, nil, nil).Publish(ctx, Filter{}, false)
	require.NoError(t, err)
	require.Equal(t, 2, res.Published)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "candidate 2")
}

func TestPublishCountsEntryWhenAuditFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := failingReviews{Store: seeded(t)}

	res, err := New(store, nil, nil).Publish(ctx, Filter{}, false)
	require.NoError(t, err)
	require.Equal(t, 3, res.Published)
	require.Empty(t, res.Errors)

	entries, err := store.ListEntries(ctx, pipeline.EntryQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestPublishListFailure(t *testing.T) {
	t.Parallel()

	_, err := New(failingList{Store: memory.NewStore()}, nil, nil).Publish(context.Background(), Filter{}, true)
	require.ErrorIs(t, err, errStore)
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 60)
	require.Equal(t, strings.Repeat("é", 50), truncateRunes(long, 50))
	require.Equal(t, "short", truncateRunes("short", 50))
}

var errStore = errors.New("store down")

type flakyEntries struct {
	*memory.Store
	failOn string
}

func (f *flakyEntries) InsertEntry(ctx context.Context, e pipeline.Entry) (pipeline.Entry, error) {
	if e.QuestionHash == f.failOn {
		return pipeline.Entry{}, errStore
	}
	return f.Store.InsertEntry(ctx, e)
}

type failingList struct {
	*memory.Store
}

func (failingList) ListCandidates(context.Context, pipeline.CandidateQuery) ([]pipeline.Candidate, error) {
	return nil, errStore
}

type failingReviews struct {
	*memory.Store
}

func (failingReviews) InsertReview(context.Context, pipeline.Review) (pipeline.Review, error) {
	return pipeline.Review{}, errStore
}

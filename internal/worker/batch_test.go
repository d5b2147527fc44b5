package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	collyfetcher "github.com/JakeFAU/yacht-qa-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	memorypub "github.com/JakeFAU/yacht-qa-crawler/internal/publisher/memory"
	"github.com/JakeFAU/yacht-qa-crawler/internal/registry"
	"github.com/JakeFAU/yacht-qa-crawler/internal/snapshot"
	"github.com/JakeFAU/yacht-qa-crawler/internal/storage/memory"
)

var start = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

const hullPage = "Q: What is hull insurance?\nA: Hull insurance covers physical damage to the vessel from collision, fire, and weather."

type batchFixture struct {
	store   *memory.Store
	fetcher *fakeFetcher
	events  *memorypub.Publisher
	runner  *BatchRunner
}

func newBatchFixture(t *testing.T, sources ...pipeline.Source) batchFixture {
	t.Helper()
	store := memory.NewStore()
	_, err := store.UpsertSources(context.Background(), sources)
	require.NoError(t, err)
	clock := system.NewManual(start)
	f := batchFixture{
		store:   store,
		fetcher: &fakeFetcher{pages: map[string]string{}, errs: map[string]error{}},
		events:  memorypub.New(),
	}
	f.runner = NewBatchRunner(BatchDeps{
		Registry:  registry.New(store, clock, nil),
		Fetcher:   f.fetcher,
		Snapshots: snapshot.New(store, memory.NewBlobStore(), "", nil),
		Runs:      store,
		IDs:       &seqIDs{prefix: "batch_test"},
		Clock:     clock,
		Events:    f.events,
	})
	return f
}

func source(url string, tier int) pipeline.Source {
	return pipeline.Source{URL: url, Domain: "example.com", Tier: tier, Allowed: true, CrawlFrequencyDays: 7}
}

func TestBatchRunFetchesAndStores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newBatchFixture(t,
		source("https://a.example/faq", 1),
		source("https://b.example/faq", 1),
		source("https://c.example/mirror", 2),
		source("https://d.example/down", 2),
		source("https://e.example/deep", 3),
	)
	f.fetcher.pages["https://a.example/faq"] = hullPage
	f.fetcher.pages["https://b.example/faq"] = "Q: Is towing covered?\nA: Many yacht policies include towing and assistance up to a limit."
	f.fetcher.pages["https://c.example/mirror"] = hullPage

	res, err := f.runner.Run(ctx, BatchRequest{BatchSize: 10})
	require.NoError(t, err)
	require.Equal(t, "batch_test_1", res.RunID)
	require.Equal(t, 4, res.Attempted)
	require.Equal(t, 2, res.Fetched)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, 1, res.Failed)
	require.Empty(t, res.Errors)

	pages, err := f.store.ListPendingPages(ctx, "batch_test_1", 0)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.NotEmpty(t, pages[0].BlobURI)

	run, err := f.store.GetRun(ctx, "batch_test_1")
	require.NoError(t, err)
	require.Equal(t, pipeline.RunCompleted, run.Status)
	require.Equal(t, pipeline.RunCounts{Attempted: 4, Fetched: 2, Failed: 1, Skipped: 1}, run.Counts)
	require.Equal(t, 2, run.MaxTier)

	sources, err := f.store.ListSources(ctx)
	require.NoError(t, err)
	crawled, attempted := 0, 0
	for _, s := range sources {
		if s.LastCrawledAt != nil {
			crawled++
		}
		if s.LastAttemptedAt != nil {
			attempted++
		}
	}
	require.Equal(t, 3, crawled)
	require.Equal(t, 4, attempted)

	events := f.events.ByTopic(TopicScrapeCompleted)
	require.Len(t, events, 1)
	require.Contains(t, string(events[0].Data), `"fetched":2`)

	again, err := f.runner.Run(ctx, BatchRequest{BatchSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, again.Attempted)
}

func TestBatchRunNoSources(t *testing.T) {
	t.Parallel()
	f := newBatchFixture(t, source("https://deep.example", 3))

	res, err := f.runner.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	require.Equal(t, "No sources available", res.Message)
	require.Zero(t, res.Attempted)
	run, err := f.store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunCompleted, run.Status)
	require.Empty(t, f.events.Messages())
}

func TestBatchRunDefaultsBatchSize(t *testing.T) {
	t.Parallel()
	var sources []pipeline.Source
	for _, u := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		sources = append(sources, source("https://"+u+".example", 1))
	}
	f := newBatchFixture(t, sources...)

	res, err := f.runner.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	require.Equal(t, DefaultBatchSize, res.Attempted)
	require.Equal(t, DefaultBatchSize, res.Failed)
}

func TestBatchRunFetchErrorIsReported(t *testing.T) {
	t.Parallel()
	f := newBatchFixture(t, source("https://a.example", 1))
	f.fetcher.errs["https://a.example"] = errors.New("invalid url")

	res, err := f.runner.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
}

func TestBatchRunCountsRobotsDenialAsSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var pageHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	mux.HandleFunc("/faq", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&pageHits, 1)
		_, _ = w.Write([]byte(hullPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := memory.NewStore()
	_, err := store.UpsertSources(ctx, []pipeline.Source{source(srv.URL+"/faq", 1)})
	require.NoError(t, err)
	clock := system.NewManual(start)
	runner := NewBatchRunner(BatchDeps{
		Registry:  registry.New(store, clock, nil),
		Fetcher:   collyfetcher.New(collyfetcher.Config{UserAgent: "YachtInsuranceBot/1.0", RespectRobots: true}),
		Snapshots: snapshot.New(store, memory.NewBlobStore(), "", nil),
		Runs:      store,
		IDs:       &seqIDs{prefix: "robots"},
		Clock:     clock,
	})

	res, err := runner.Run(ctx, BatchRequest{BatchSize: 5})
	require.NoError(t, err)
	require.Equal(t, 1, res.Attempted)
	require.Zero(t, res.Failed)
	require.Equal(t, 1, res.Skipped)
	require.Empty(t, res.Errors)
	require.Zero(t, atomic.LoadInt32(&pageHits))

	run, err := store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunCounts{Attempted: 1, Skipped: 1}, run.Counts)

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	require.Nil(t, sources[0].LastCrawledAt)
	require.NotNil(t, sources[0].LastAttemptedAt)
	require.Equal(t, start, *sources[0].LastAttemptedAt)
}

func TestBatchRunCreateRunFailure(t *testing.T) {
	t.Parallel()
	store := memory.NewStore()
	runner := NewBatchRunner(BatchDeps{
		Registry:  registry.New(store, system.New(), nil),
		Fetcher:   &fakeFetcher{},
		Snapshots: snapshot.New(store, nil, "", nil),
		Runs:      store,
		IDs:       fixedIDs("dup"),
	})
	_, err := runner.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), BatchRequest{})
	require.ErrorIs(t, err, pipeline.ErrDuplicate)
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*pipeline.FetchedPage, error) {
	if err := f.errs[rawURL]; err != nil {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, nil
	}
	return &pipeline.FetchedPage{
		URL:         rawURL,
		Domain:      "example.com",
		Title:       "FAQ",
		Content:     body,
		ContentHash: sha256.Sum(body),
		StatusCode:  200,
		FetchedAt:   start,
	}, nil
}

type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s_%d", s.prefix, s.n), nil
}

type fixedIDs string

func (f fixedIDs) NewID() (string, error) { return string(f), nil }

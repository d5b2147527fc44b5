package discover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/yacht-qa-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

func newMarineSite(t *testing.T, privateHits *int32) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/": `<a href="/blog/hull">Hull</a><a href="/blog/towing#top">Towing</a>` +
			`<a href="/private/claims">Claims</a><a href="https://other.example/x">Other</a>` +
			`<a href="/logo.png">Logo</a><a href="mailto:desk@example.com">Mail</a>`,
		"/blog/hull":         `<a href="/blog/agreed-value">Agreed value</a><a href="/">Home</a>`,
		"/blog/towing":       `<p>Towing is usually covered.</p>`,
		"/blog/agreed-value": `<a href="/blog/too-deep">Deeper</a>`,
		"/blog/too-deep":     `<p>unreachable at depth 2</p>`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/private/claims" {
			atomic.AddInt32(privateHits, 1)
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>Marine</title></head><body>" + body + "</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher() *collyfetcher.Fetcher {
	return collyfetcher.New(collyfetcher.Config{UserAgent: "YachtInsuranceBot/1.0", RespectRobots: true})
}

func TestWalkFollowsSameSiteLinksWithinDepth(t *testing.T) {
	t.Parallel()

	var privateHits int32
	srv := newMarineSite(t, &privateHits)
	c := New(newFetcher(), Config{MaxDepth: 2}, nil)

	var visited []string
	depths := map[string]int{}
	res, err := c.Walk(context.Background(), srv.URL, func(_ context.Context, page pipeline.FetchedPage, depth int) error {
		visited = append(visited, page.URL)
		depths[page.URL] = depth
		return nil
	})
	require.NoError(t, err)

	root := srv.URL + "/"
	require.Equal(t, root, res.Root)
	require.Equal(t, []string{
		srv.URL + "/blog/hull",
		srv.URL + "/blog/towing",
		srv.URL + "/private/claims",
		srv.URL + "/blog/agreed-value",
	}, res.Links)
	require.Equal(t, 4, res.Fetched)
	require.Equal(t, 1, res.Denied)
	require.Zero(t, res.Failed)
	require.Zero(t, atomic.LoadInt32(&privateHits))

	require.Equal(t, []string{root, srv.URL + "/blog/hull", srv.URL + "/blog/towing", srv.URL + "/blog/agreed-value"}, visited)
	require.Equal(t, 0, depths[root])
	require.Equal(t, 2, depths[srv.URL+"/blog/agreed-value"])
}

func TestWalkStopsQueueingAtMaxPages(t *testing.T) {
	t.Parallel()

	var privateHits int32
	srv := newMarineSite(t, &privateHits)
	c := New(newFetcher(), Config{MaxDepth: 3, MaxPages: 3}, nil)

	res, err := c.Walk(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/blog/hull", srv.URL + "/blog/towing"}, res.Links)
	require.Equal(t, 3, res.Fetched)
}

func TestWalkCountsFailedPages(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{
		pages: map[string]string{"https://marine.example/": `<a href="/gone">Gone</a><a href="/boom">Boom</a>`},
		errs:  map[string]error{"https://marine.example/boom": errors.New("invalid url")},
	}
	res, err := New(f, Config{}, nil).Walk(context.Background(), "https://marine.example", nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Fetched)
	require.Equal(t, 2, res.Failed)
	require.Len(t, res.Links, 2)
}

func TestWalkAbortsOnVisitError(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{pages: map[string]string{"https://marine.example/": `<a href="/a">A</a>`}}
	errStore := errors.New("store down")
	_, err := New(f, Config{}, nil).Walk(context.Background(), "https://marine.example/",
		func(context.Context, pipeline.FetchedPage, int) error { return errStore })
	require.ErrorIs(t, err, errStore)
}

func TestWalkRejectsBadRoot(t *testing.T) {
	t.Parallel()

	_, err := New(&scriptedFetcher{}, Config{}, nil).Walk(context.Background(), "/relative/only", nil)
	require.Error(t, err)
}

func TestWalkHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&scriptedFetcher{}, Config{}, nil).Walk(ctx, "https://marine.example/", nil)
	require.ErrorIs(t, err, context.Canceled)
}

type scriptedFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *scriptedFetcher) Fetch(_ context.Context, rawURL string) (*pipeline.FetchedPage, error) {
	if err := f.errs[rawURL]; err != nil {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, nil
	}
	return &pipeline.FetchedPage{URL: rawURL, Domain: "marine.example", Content: body, StatusCode: http.StatusOK}, nil
}

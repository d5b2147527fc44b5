package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/yacht-qa-crawler/internal/cache/memory"
	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const testUA = "Mozilla/5.0 (compatible; YachtInsuranceBot/1.0; +https://www.myyachtsinsurance.com/bot)"

func newSite(t *testing.T, robots string, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		if robots == "" {
			http.NotFound(w, nil)
			return
		}
		_, _ = w.Write([]byte(robots))
	})
	mux.HandleFunc("/faq", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.Header.Get("DNT") != "1" || r.Header.Get("Accept-Language") != headerAcceptLanguage {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title> Yacht FAQ </title></head><body>Q: What is hull cover?</body></html>"))
	})
	mux.HandleFunc("/notitle", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>plain</body></html>"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchReturnsPage(t *testing.T) {
	t.Parallel()

	srv := newSite(t, "User-agent: *\nAllow: /\n", nil)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := New(Config{UserAgent: testUA, RespectRobots: true, Timeout: 2 * time.Second},
		WithClock(func() time.Time { return fixed }))

	page, err := f.Fetch(context.Background(), srv.URL+"/faq")
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Equal(t, "Yacht FAQ", page.Title)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, page.Content, "What is hull cover?")
	require.Equal(t, sha256.Sum(page.Content), page.ContentHash)
	require.Equal(t, fixed, page.FetchedAt)
	require.Equal(t, "127.0.0.1", page.Domain)
}

func TestFetchDefaultsTitle(t *testing.T) {
	t.Parallel()

	srv := newSite(t, "", nil)
	f := New(Config{UserAgent: testUA, RespectRobots: true})

	page, err := f.Fetch(context.Background(), srv.URL+"/notitle")
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Equal(t, untitled, page.Title)
}

func TestFetchRobotsDisallowSkips(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := newSite(t, "User-agent: *\nDisallow: /\n", &hits)
	f := New(Config{UserAgent: testUA, RespectRobots: true})

	page, err := f.Fetch(context.Background(), srv.URL+"/faq")
	require.ErrorIs(t, err, pipeline.ErrPolicyDenied)
	require.Nil(t, page)
	require.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchIgnoresRobotsWhenDisabled(t *testing.T) {
	t.Parallel()

	srv := newSite(t, "User-agent: *\nDisallow: /\n", nil)
	f := New(Config{UserAgent: testUA, RespectRobots: false})

	page, err := f.Fetch(context.Background(), srv.URL+"/faq")
	require.NoError(t, err)
	require.NotNil(t, page)
}

func TestFetchNonOKReturnsNil(t *testing.T) {
	t.Parallel()

	srv := newSite(t, "", nil)
	f := New(Config{UserAgent: testUA})

	page, err := f.Fetch(context.Background(), srv.URL+"/broken")
	require.NoError(t, err)
	require.Nil(t, page)
}

func TestFetchTransportErrorReturnsNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{UserAgent: testUA, Timeout: time.Second})
	page, err := f.Fetch(context.Background(), addr+"/faq")
	require.NoError(t, err)
	require.Nil(t, page)
}

func TestFetchUsesPageCache(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := newSite(t, "", &hits)
	f := New(Config{UserAgent: testUA, CacheTTL: time.Hour}, WithCache(memory.New()))

	first, err := f.Fetch(context.Background(), srv.URL+"/faq")
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := f.Fetch(context.Background(), srv.URL+"/faq")
	require.NoError(t, err)
	require.NotNil(t, second)

	require.Equal(t, first.ContentHash, second.ContentHash)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchInvalidURL(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), "::not a url")
	require.Error(t, err)
}

func TestFetchLimiterErrorPropagates(t *testing.T) {
	t.Parallel()

	srv := newSite(t, "", nil)
	f := New(Config{UserAgent: testUA}, WithLimiter(failingWaiter{}))
	_, err := f.Fetch(context.Background(), srv.URL+"/faq")
	require.Error(t, err)
}

func TestFetchUsesInjectedRobots(t *testing.T) {
	t.Parallel()

	srv := newSite(t, "", nil)
	f := New(Config{UserAgent: testUA, RespectRobots: true}, WithRobots(denyAll{}))
	page, err := f.Fetch(context.Background(), srv.URL+"/faq")
	require.ErrorIs(t, err, pipeline.ErrPolicyDenied)
	require.ErrorContains(t, err, reasonRobotsDisallow)
	require.Nil(t, page)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var (
		resp     *colly.Response
		fetchErr error
	)
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &resp, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	req := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(req)
	require.Equal(t, headerAccept, req.Headers.Get("Accept"))
	require.Equal(t, "1", req.Headers.Get("DNT"))

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	require.NotNil(t, resp)
	require.NoError(t, fetchErr)

	resp = nil
	hooks.onError(nil, errors.New("dial failed"))
	require.Nil(t, resp)
	require.EqualError(t, fetchErr, "dial failed")
}

func TestExtractTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Hello", extractTitle([]byte("<title>Hello</title>")))
	require.Equal(t, untitled, extractTitle([]byte("<title>   </title>")))
	require.Equal(t, untitled, extractTitle(nil))
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback)   { s.onRequest = cb }
func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

type failingWaiter struct{}

func (failingWaiter) Wait(context.Context, string) error { return context.Canceled }

type denyAll struct{}

func (denyAll) Allowed(context.Context, string) (bool, string) { return false, reasonRobotsDisallow }

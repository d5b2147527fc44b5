// Package collyfetcher implements pipeline.Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/cache"
	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/policy/ratelimit"
)

const (
	defaultTimeout = 15 * time.Second
	untitled       = "Untitled"

	headerAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	headerAcceptLanguage = "en-US,en;q=0.5"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	CacheTTL      time.Duration
}

// RobotsChecker decides robots eligibility for a URL.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) (bool, string)
}

// Waiter blocks until the politeness delay for a URL's domain has elapsed.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher implements pipeline.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	robots        RobotsChecker
	limiter       Waiter
	cache         cache.Cache
	hasher        pipeline.Hasher
	now           func() time.Time
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRobots overrides the robots checker.
func WithRobots(r RobotsChecker) Option { return func(f *Fetcher) { f.robots = r } }

// WithLimiter overrides the per-domain limiter.
func WithLimiter(w Waiter) Option { return func(f *Fetcher) { f.limiter = w } }

// WithCache sets the page cache.
func WithCache(c cache.Cache) Option { return func(f *Fetcher) { f.cache = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithClock sets the time source used for FetchedAt.
func WithClock(now func() time.Time) Option { return func(f *Fetcher) { f.now = now } }

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Without explicit options it uses a zero-delay limiter,
// no page cache and, when RespectRobots is set, an uncached robots policy.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	f := &Fetcher{
		cfg:           cfg,
		limiter:       ratelimit.New(ratelimit.Config{}),
		cache:         cache.Nop{},
		hasher:        sha256.New(),
		now:           func() time.Time { return time.Now().UTC() },
		logger:        zap.NewNop(),
		baseCollector: c,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.robots == nil && cfg.RespectRobots {
		f.robots = NewRobotsPolicy(RobotsConfig{UserAgent: cfg.UserAgent, Logger: f.logger})
	}
	return f
}

// Fetch retrieves rawURL. A robots refusal yields pipeline.ErrPolicyDenied.
// A non-2xx answer or a transport failure yields a nil page and a nil error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*pipeline.FetchedPage, error) {
	domain := ratelimit.Domain(rawURL)
	if domain == "unknown" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	if f.cfg.RespectRobots && f.robots != nil {
		if ok, reason := f.robots.Allowed(ctx, rawURL); !ok {
			metrics.ObserveRobotsDenial(rawURL, reason)
			metrics.ObserveFetch(rawURL, "robots_denied", 0)
			f.logger.Info("fetch skipped by robots", zap.String("url", rawURL), zap.String("reason", reason))
			return nil, fmt.Errorf("%w: %s", pipeline.ErrPolicyDenied, reason)
		}
	}

	cacheKey := "page:" + f.hasher.HashString(rawURL)
	if page := f.cached(ctx, cacheKey); page != nil {
		metrics.ObserveFetch(rawURL, "cache_hit", 0)
		return page, nil
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var (
		resp     *colly.Response
		fetchErr error
	)
	collector := f.buildCollector(&resp, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &resp, &fetchErr); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		metrics.ObserveFetch(rawURL, "error", 0)
		f.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, nil
	}
	if resp == nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveFetch(rawURL, "non_ok", 0)
		return nil, nil
	}

	page := &pipeline.FetchedPage{
		URL:         rawURL,
		Domain:      domain,
		Title:       extractTitle(resp.Body),
		Content:     string(resp.Body),
		ContentHash: f.hasher.HashString(string(resp.Body)),
		StatusCode:  resp.StatusCode,
		FetchedAt:   f.now(),
	}
	if resp.Headers != nil {
		page.Headers = resp.Headers.Clone()
	}
	metrics.ObserveFetch(rawURL, "ok", len(resp.Body))
	f.store(ctx, cacheKey, page)
	return page, nil
}

func (f *Fetcher) cached(ctx context.Context, key string) *pipeline.FetchedPage {
	raw, ok, err := f.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	var page pipeline.FetchedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil
	}
	return &page
}

func (f *Fetcher) store(ctx context.Context, key string, page *pipeline.FetchedPage) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, key, raw, f.cfg.CacheTTL); err != nil {
		f.logger.Debug("page cache write failed", zap.String("url", page.URL), zap.Error(err))
	}
}

func (f *Fetcher) buildCollector(resp **colly.Response, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	f.configureCollectorHooks(collector, resp, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, resp **colly.Response, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", headerAccept)
		r.Headers.Set("Accept-Language", headerAcceptLanguage)
		r.Headers.Set("DNT", "1")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*resp = r
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*resp = r
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	resp **colly.Response,
	fetchErr *error,
) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		// Non-2xx responses surface as Visit errors but are judged by status.
		if err != nil && *resp == nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func extractTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return untitled
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return untitled
	}
	return title
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

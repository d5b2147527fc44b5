// Package discover walks a site breadth-first from a root URL and reports the
// same-site pages it can reach. Every page is retrieved through a
// pipeline.Fetcher, so robots rules and the per-domain delay apply to
// discovery exactly as they do to batch fetches.
package discover

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// Walk defaults applied to zero Config fields.
const (
	DefaultMaxDepth = 3
	DefaultMaxPages = 50
)

// Config bounds a walk.
type Config struct {
	// MaxDepth is the number of link hops followed from the root.
	MaxDepth int
	// MaxPages caps the number of distinct URLs queued, root included.
	MaxPages int
}

// Visit receives each page fetched during a walk. depth is 0 for the root.
// Returning an error aborts the walk.
type Visit func(ctx context.Context, page pipeline.FetchedPage, depth int) error

// Result summarizes one walk.
type Result struct {
	Root    string   `json:"root"`
	Fetched int      `json:"fetched"`
	Denied  int      `json:"denied"`
	Failed  int      `json:"failed"`
	Links   []string `json:"links"`
}

// Crawler discovers same-site links.
type Crawler struct {
	fetcher pipeline.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Crawler.
func New(fetcher pipeline.Fetcher, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, cfg: cfg, logger: logger}
}

type queued struct {
	url   string
	depth int
}

// Walk fetches root and follows same-site links breadth-first. Pages at
// MaxDepth are fetched but their links are not followed. Result.Links lists
// every discovered URL except the root, in discovery order.
func (c *Crawler) Walk(ctx context.Context, root string, visit Visit) (Result, error) {
	start, err := NormalizeURL(root)
	if err != nil {
		return Result{}, err
	}
	rootURL, err := url.Parse(start)
	if err != nil || rootURL.Host == "" {
		return Result{}, fmt.Errorf("invalid root url %q", root)
	}

	res := Result{Root: start}
	seen := map[string]struct{}{start: {}}
	queue := []queued{{url: start}}
	logger := c.logger.With(zap.String("root", start))

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		next := queue[0]
		queue = queue[1:]

		page, err := c.fetcher.Fetch(ctx, next.url)
		switch {
		case errors.Is(err, pipeline.ErrPolicyDenied):
			res.Denied++
			logger.Debug("link denied by crawl policy", zap.String("url", next.url))
			continue
		case err != nil:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			logger.Warn("link fetch failed", zap.String("url", next.url), zap.Error(err))
			continue
		case page == nil:
			res.Failed++
			continue
		}
		res.Fetched++

		if visit != nil {
			if err := visit(ctx, *page, next.depth); err != nil {
				return res, err
			}
		}
		if next.depth >= c.cfg.MaxDepth {
			continue
		}

		base, err := url.Parse(next.url)
		if err != nil {
			continue
		}
		for _, link := range ExtractLinks(base, page.Content) {
			if len(seen) >= c.cfg.MaxPages {
				break
			}
			if _, dup := seen[link]; dup || !SameSite(rootURL.Host, link) || isAsset(link) {
				continue
			}
			seen[link] = struct{}{}
			res.Links = append(res.Links, link)
			queue = append(queue, queued{url: link, depth: next.depth + 1})
		}
	}

	logger.Info("walk complete",
		zap.Int("fetched", res.Fetched),
		zap.Int("denied", res.Denied),
		zap.Int("failed", res.Failed),
		zap.Int("links", len(res.Links)),
	)
	return res, nil
}

// ExtractLinks returns the normalized absolute http(s) targets of every
// a[href] in body, resolved against base, without duplicates.
func ExtractLinks(base *url.URL, body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var links []string
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolve(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

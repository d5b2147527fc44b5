package collyfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/cache"
)

const (
	robotsFetchTimeout = 5 * time.Second
	robotsMaxBytes     = 1 << 20

	reasonRobotsUnreachable = "robots_unreachable"
	reasonRobotsDisallow    = "robots_disallow"
)

// robotsRecord is the cached form of one host's robots.txt response.
type robotsRecord struct {
	Status int    `json:"status"`
	Body   []byte `json:"body,omitempty"`
}

// RobotsPolicy answers whether the crawler identity may fetch a URL.
// Unreachable robots.txt denies and is not cached. Any non-2xx status allows
// everything on the host and is cached like a normal response.
type RobotsPolicy struct {
	client    *http.Client
	cache     cache.Cache
	ttl       time.Duration
	userAgent string
	logger    *zap.Logger
}

// RobotsConfig configures a RobotsPolicy.
type RobotsConfig struct {
	UserAgent string
	TTL       time.Duration
	Client    *http.Client
	Cache     cache.Cache
	Logger    *zap.Logger
}

// NewRobotsPolicy builds a RobotsPolicy.
func NewRobotsPolicy(cfg RobotsConfig) *RobotsPolicy {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: robotsFetchTimeout, Transport: newHTTPTransport()}
	}
	store := cfg.Cache
	if store == nil {
		store = cache.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsPolicy{
		client:    client,
		cache:     store,
		ttl:       cfg.TTL,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Allowed reports whether rawURL may be fetched. When it may not, the reason
// is one of robots_unreachable or robots_disallow.
func (p *RobotsPolicy) Allowed(ctx context.Context, rawURL string) (bool, string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false, reasonRobotsUnreachable
	}
	origin := u.Scheme + "://" + u.Host

	rec, err := p.record(ctx, origin)
	if err != nil {
		p.logger.Warn("robots fetch failed", zap.String("origin", origin), zap.Error(err))
		return false, reasonRobotsUnreachable
	}
	if rec.Status < 200 || rec.Status > 299 {
		return true, ""
	}

	data, err := robotstxt.FromStatusAndBytes(rec.Status, rec.Body)
	if err != nil {
		// Unparseable files are treated like a missing one.
		return true, ""
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if !data.TestAgent(path, robotsAgent(p.userAgent)) {
		return false, reasonRobotsDisallow
	}
	return true, ""
}

func (p *RobotsPolicy) record(ctx context.Context, origin string) (robotsRecord, error) {
	key := "robots:" + origin
	if raw, ok, err := p.cache.Get(ctx, key); err == nil && ok {
		var rec robotsRecord
		if json.Unmarshal(raw, &rec) == nil {
			return rec, nil
		}
	}

	rec, err := p.fetch(ctx, origin)
	if err != nil {
		return robotsRecord{}, err
	}
	if raw, err := json.Marshal(rec); err == nil {
		if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
			p.logger.Debug("robots cache write failed", zap.String("origin", origin), zap.Error(err))
		}
	}
	return rec, nil
}

func (p *RobotsPolicy) fetch(ctx context.Context, origin string) (robotsRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, robotsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return robotsRecord{}, fmt.Errorf("build robots request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return robotsRecord{}, fmt.Errorf("get robots.txt: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rec := robotsRecord{Status: resp.StatusCode}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
		if err != nil {
			return robotsRecord{}, fmt.Errorf("read robots.txt: %w", err)
		}
		rec.Body = body
	}
	return rec, nil
}

// robotsAgent reduces a browser-style user agent to its bot product token,
// e.g. "Mozilla/5.0 (compatible; YachtInsuranceBot/1.0; +url)" becomes
// "YachtInsuranceBot". Group matching in robots.txt is prefix based.
func robotsAgent(userAgent string) string {
	const marker = "compatible;"
	idx := strings.Index(userAgent, marker)
	if idx < 0 {
		return userAgent
	}
	rest := strings.TrimSpace(userAgent[idx+len(marker):])
	if end := strings.IndexAny(rest, "/;)"); end >= 0 {
		rest = rest[:end]
	}
	if rest = strings.TrimSpace(rest); rest == "" {
		return userAgent
	}
	return rest
}

// Package ratelimit enforces a minimum delay between requests to the same domain.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
)

// Limiter keeps one token bucket per domain. Each bucket refills one token per
// Delay with burst 1, so concurrent callers for the same domain serialize and
// are spaced at least Delay apart; distinct domains never block each other.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
}

// Config holds limiter configuration.
type Config struct {
	Delay time.Duration
}

// New creates a Limiter. A zero Delay disables throttling.
func New(cfg Config) *Limiter {
	every := rate.Inf
	if cfg.Delay > 0 {
		every = rate.Every(cfg.Delay)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
	}
}

// Wait blocks until rawURL's domain may be requested again or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := Domain(rawURL)
	limiter := l.forDomain(domain)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, waited)
	}
	return nil
}

func (l *Limiter) forDomain(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(l.every, 1)
		l.limiters[domain] = limiter
	}
	return limiter
}

// Domain returns the lowercase host of rawURL, or "unknown".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

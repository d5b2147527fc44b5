// Package metrics exposes Prometheus collectors for the acquisition pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	robotsDenialsTotal         *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	pagesTotal                 *prometheus.CounterVec
	candidatesTotal            *prometheus.CounterVec
	entriesPublishedTotal      *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qacrawler_fetches_total",
				Help: "Fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qacrawler_fetch_bytes_total",
				Help: "Bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		robotsDenialsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qacrawler_robots_denials_total",
				Help: "Fetches refused by robots policy, labeled by site and reason.",
			},
			[]string{"site", "reason"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qacrawler_rate_limit_delay_seconds",
				Help:    "Time spent waiting on per-domain politeness delays.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qacrawler_pages_total",
				Help: "Pages handled by pipeline stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qacrawler_candidates_total",
				Help: "Extracted candidates by quality gate outcome.",
			},
			[]string{"outcome"},
		)

		entriesPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qacrawler_entries_published_total",
				Help: "Entries created, labeled by ingestion path.",
			},
			[]string{"path"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(rawURL, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRobotsDenial records a robots refusal.
func ObserveRobotsDenial(rawURL, reason string) {
	Init()
	robotsDenialsTotal.WithLabelValues(SanitizeSite(rawURL), reason).Inc()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(d.Seconds())
}

// ObservePage records a page outcome for a stage ("batch" or "extract").
func ObservePage(stage, outcome string) {
	Init()
	pagesTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveCandidates adds n candidates with the given gate outcome.
func ObserveCandidates(outcome string, n int) {
	Init()
	if n <= 0 {
		return
	}
	candidatesTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveEntriesPublished adds n entries created through path.
func ObserveEntriesPublished(path string, n int) {
	Init()
	if n <= 0 {
		return
	}
	entriesPublishedTotal.WithLabelValues(path).Add(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

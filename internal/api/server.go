package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/auth"
	"github.com/JakeFAU/yacht-qa-crawler/internal/importer"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/publish"
	"github.com/JakeFAU/yacht-qa-crawler/internal/registry"
	"github.com/JakeFAU/yacht-qa-crawler/internal/review"
	"github.com/JakeFAU/yacht-qa-crawler/internal/worker"
)

const defaultServiceName = "qacrawler"

// Seeder initializes the source registry.
type Seeder interface {
	Seed(ctx context.Context) (registry.SeedResult, error)
}

// BatchRunner fetches due sources.
type BatchRunner interface {
	Run(ctx context.Context, req worker.BatchRequest) (worker.BatchResult, error)
}

// ExtractRunner turns pending pages into candidates.
type ExtractRunner interface {
	Run(ctx context.Context, req worker.ExtractRequest) (worker.ExtractResult, error)
}

// PublishRunner promotes candidates in bulk.
type PublishRunner interface {
	Run(ctx context.Context, req worker.PublishRequest) (publish.Result, error)
}

// Reviewer applies and reads manual review actions.
type Reviewer interface {
	Apply(ctx context.Context, req review.Request) (review.Outcome, error)
	Get(ctx context.Context, candidateID int64) (review.Detail, error)
}

// Importer writes operator-supplied rows as entries.
type Importer interface {
	Import(ctx context.Context, rows []importer.Row, dryRun bool) (importer.Result, error)
}

// EntryLister reads published entries.
type EntryLister interface {
	ListEntries(ctx context.Context, q pipeline.EntryQuery) ([]pipeline.Entry, error)
}

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Registry Seeder
	Batch    BatchRunner
	Extract  ExtractRunner
	Publish  PublishRunner
	Review   Reviewer
	Importer Importer
	Entries  EntryLister
	Health   Pinger
	Gate     *auth.Gate

	RequestTimeout time.Duration
	ServiceName    string
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the pipeline components.
type Server struct {
	deps    Deps
	logger  *zap.Logger
	handler http.Handler
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Gate == nil {
		deps.Gate = auth.NewGate("", "", logger)
	}
	if deps.ServiceName == "" {
		deps.ServiceName = defaultServiceName
	}
	s := &Server{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if deps.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(deps.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(deps.Gate.Middleware)
		r.Route("/scraper", func(r chi.Router) {
			r.Post("/init", s.seedSources)
			r.Post("/batch", s.runBatch)
			r.Post("/extract", s.runExtract)
			r.Post("/publish", s.runPublish)
			r.Post("/review", s.applyReview)
			r.Get("/review", s.getReview)
		})
		r.Post("/bulk-import", s.bulkImport)
		r.Get("/entries", s.listEntries)
	})

	s.handler = otelhttp.NewHandler(r, deps.ServiceName)
	return s
}

// Handler returns the root handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

var (
	errEmptyBody   = errors.New("request body is required")
	errInvalidJSON = errors.New("invalid JSON")
)

// decodeJSON reads the request body into dst. An empty body is accepted
// only when optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return errEmptyBody
		}
		return errInvalidJSON
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, review.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, review.ErrValidation),
		errors.Is(err, review.ErrConflict),
		errors.Is(err, importer.ErrNoEntries),
		errors.Is(err, errEmptyBody),
		errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package server builds the application's dependency graph from config and
// runs the HTTP trigger surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/api"
	"github.com/JakeFAU/yacht-qa-crawler/internal/auth"
	"github.com/JakeFAU/yacht-qa-crawler/internal/cache"
	memorycache "github.com/JakeFAU/yacht-qa-crawler/internal/cache/memory"
	sqlitecache "github.com/JakeFAU/yacht-qa-crawler/internal/cache/sqlite"
	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/config"
	"github.com/JakeFAU/yacht-qa-crawler/internal/discover"
	"github.com/JakeFAU/yacht-qa-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/yacht-qa-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/importer"
	"github.com/JakeFAU/yacht-qa-crawler/internal/logging"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/yacht-qa-crawler/internal/publish"
	memorypublisher "github.com/JakeFAU/yacht-qa-crawler/internal/publisher/memory"
	natspublisher "github.com/JakeFAU/yacht-qa-crawler/internal/publisher/nats"
	gcppublisher "github.com/JakeFAU/yacht-qa-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/yacht-qa-crawler/internal/quality"
	"github.com/JakeFAU/yacht-qa-crawler/internal/registry"
	"github.com/JakeFAU/yacht-qa-crawler/internal/review"
	"github.com/JakeFAU/yacht-qa-crawler/internal/snapshot"
	gcsstorage "github.com/JakeFAU/yacht-qa-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/yacht-qa-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/yacht-qa-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/yacht-qa-crawler/internal/storage/postgres"
	"github.com/JakeFAU/yacht-qa-crawler/internal/telemetry"
	"github.com/JakeFAU/yacht-qa-crawler/internal/worker"
)

// Version is stamped at build time.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

type closer struct {
	name string
	fn   func(context.Context) error
}

// App holds the wired components. Exported fields are what commands drive.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Store    pipeline.Store
	Events   pipeline.EventPublisher
	Registry *registry.Registry
	Batch    *worker.BatchRunner
	Discover *worker.DiscoverRunner
	Extract  *worker.ExtractRunner
	Publish  *worker.PublishRunner
	Pipeline *worker.Pipeline
	Review   *review.Workflow
	Importer *importer.Importer
	API      *api.Server

	closers []closer
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Build creates the application's dependencies. On error everything opened
// so far is closed.
func Build(ctx context.Context, cfg config.Config) (_ *App, err error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.closeAll(context.Background())
		}
	}()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     Version,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.onClose("tracer", shutdownTracer)

	if app.Store, err = setupStore(ctx, app); err != nil {
		return nil, err
	}
	blobs, err := setupBlobStore(ctx, app)
	if err != nil {
		return nil, err
	}
	fetchCache, err := setupCache(app)
	if err != nil {
		return nil, err
	}
	if app.Events, err = setupPublisher(ctx, app); err != nil {
		return nil, err
	}

	clock := system.New()
	hasher := sha256.New()
	fetcher := setupFetcher(app, fetchCache)

	app.Registry = registry.New(app.Store, clock, logger.Named("registry"))
	snapshots := snapshot.New(app.Store, blobs, cfg.Storage.Prefix, logger.Named("snapshot"))

	gateCfg := quality.Config{MinConfidence: cfg.Quality.MinConfidence}
	if cfg.Quality.DetectLanguage {
		gateCfg.Language = quality.NewLinguaDetector()
	}

	app.Batch = worker.NewBatchRunner(worker.BatchDeps{
		Registry:  app.Registry,
		Fetcher:   fetcher,
		Snapshots: snapshots,
		Runs:      app.Store,
		Clock:     clock,
		Events:    app.Events,
		Defaults:  worker.BatchRequest{BatchSize: cfg.Pipeline.BatchSize, MaxTier: cfg.Pipeline.MaxTier},
		Logger:    logger.Named("worker"),
	})
	walker := discover.New(fetcher, discover.Config{
		MaxDepth: cfg.Pipeline.DiscoverDepth,
		MaxPages: cfg.Pipeline.DiscoverMaxPages,
	}, logger.Named("discover"))
	app.Discover = worker.NewDiscoverRunner(worker.DiscoverDeps{
		Sources:   app.Store,
		Walker:    walker,
		Snapshots: snapshots,
		Runs:      app.Store,
		Clock:     clock,
		Events:    app.Events,
		MaxTier:   cfg.Pipeline.MaxTier,
		Logger:    logger.Named("worker"),
	})
	app.Extract = worker.NewExtractRunner(worker.ExtractDeps{
		Pages:      snapshots,
		Extractor:  extract.New(extract.WithLogger(logger.Named("extract"))),
		Gate:       quality.New(gateCfg, hasher),
		Candidates: app.Store,
		Clock:      clock,
		Events:     app.Events,
		Limit:      cfg.Pipeline.ExtractLimit,
		Logger:     logger.Named("worker"),
	})
	app.Publish = worker.NewPublishRunner(
		publish.New(app.Store, clock, logger.Named("publish")),
		app.Events,
		logger.Named("worker"),
	)
	app.Pipeline = &worker.Pipeline{
		Batch:   app.Batch,
		Extract: app.Extract,
		Publish: app.Publish,
		Filter:  publish.Filter{MinConfidence: cfg.Pipeline.PublishMinConfidence},
		Logger:  logger.Named("pipeline"),
	}
	app.Review = review.New(app.Store,
		review.WithClock(clock),
		review.WithHasher(hasher),
		review.WithLogger(logger.Named("review")),
	)
	app.Importer = importer.New(app.Store, clock, logger.Named("importer"))

	app.API = api.NewServer(api.Deps{
		Registry:       app.Registry,
		Batch:          app.Batch,
		Extract:        app.Extract,
		Publish:        app.Publish,
		Review:         app.Review,
		Importer:       app.Importer,
		Entries:        app.Store,
		Health:         app.Store,
		Gate:           auth.NewGate(cfg.Auth.ScraperAPIKey, cfg.Auth.ServiceRoleKey, logger.Named("auth")),
		RequestTimeout: cfg.RequestTimeout(),
		ServiceName:    cfg.Tracing.ServiceName,
		Logger:         logger.Named("api"),
	})

	logger.Info("application built",
		zap.String("version", Version),
		zap.String("db_backend", cfg.DB.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("events_backend", cfg.Events.Backend),
		zap.Bool("detect_language", cfg.Quality.DetectLanguage),
	)
	return app, nil
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives. The
// caller still owns Close.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.API.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	a.closeAll(ctx)
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) closeAll(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func setupStore(ctx context.Context, app *App) (pipeline.Store, error) {
	cfg := app.cfg.DB
	if cfg.Backend != "postgres" {
		app.logger.Info("using in-memory record store")
		return memorystorage.NewStore(), nil
	}
	if cfg.MigrateOnStart {
		if err := pgstore.Migrate(cfg.DSN, pgstore.Up); err != nil {
			return nil, fmt.Errorf("migrate on start: %w", err)
		}
		app.logger.Info("schema migrations applied")
	}
	store, err := pgstore.New(ctx, pgstore.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	app.onClose("postgres", func(context.Context) error {
		store.Close()
		return nil
	})
	app.logger.Info("postgres record store initialized", zap.Int32("max_conns", cfg.MaxConns))
	return store, nil
}

func setupBlobStore(ctx context.Context, app *App) (pipeline.BlobStore, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case "gcs":
		blobs, err := gcsstorage.Open(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.onClose("gcs", func(context.Context) error { return blobs.Close() })
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(cfg.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local storage backend", zap.String("path", cfg.BaseDir))
		return blobs, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func setupCache(app *App) (cache.Cache, error) {
	path := app.cfg.Fetcher.CachePath
	if path == "" {
		return memorycache.New(), nil
	}
	c, err := sqlitecache.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fetch cache init failed: %w", err)
	}
	app.onClose("sqlite cache", func(context.Context) error { return c.Close() })
	app.logger.Info("using sqlite fetch cache", zap.String("path", path))
	return c, nil
}

func setupFetcher(app *App, c cache.Cache) *collyfetcher.Fetcher {
	cfg := app.cfg.Fetcher
	logger := app.logger.Named("fetcher")
	robots := collyfetcher.NewRobotsPolicy(collyfetcher.RobotsConfig{
		UserAgent: cfg.UserAgent,
		TTL:       time.Duration(cfg.RobotsTTLHours) * time.Hour,
		Cache:     c,
		Logger:    logger,
	})
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.UserAgent,
		RespectRobots: cfg.RespectRobots,
		Timeout:       app.cfg.FetchTimeout(),
		CacheTTL:      time.Duration(cfg.CacheTTLHours) * time.Hour,
	},
		collyfetcher.WithRobots(robots),
		collyfetcher.WithLimiter(ratelimit.New(ratelimit.Config{Delay: app.cfg.FetchDelay()})),
		collyfetcher.WithCache(c),
		collyfetcher.WithLogger(logger),
	)
}

// setupPublisher returns nil when events are disabled.
func setupPublisher(ctx context.Context, app *App) (pipeline.EventPublisher, error) {
	cfg := app.cfg.Events
	switch cfg.Backend {
	case "memory":
		app.logger.Info("using in-memory event publisher")
		return memorypublisher.New(), nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		topic := client.Publisher(cfg.Topic)
		app.onClose("pubsub", func(context.Context) error {
			topic.Stop()
			return client.Close()
		})
		app.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", cfg.ProjectID),
			zap.String("topic", cfg.Topic),
		)
		return gcppublisher.New(topic), nil
	case "nats":
		pub, err := natspublisher.Connect(cfg.NATSURL, cfg.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("nats publisher init failed: %w", err)
		}
		app.onClose("nats", func(context.Context) error { return pub.Close() })
		app.logger.Info("NATS publisher initialized", zap.String("subject_prefix", cfg.SubjectPrefix))
		return pub, nil
	default:
		app.logger.Info("pipeline events disabled")
		return nil, nil
	}
}

package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/publish"
)

// Publisher promotes candidates to entries.
type Publisher interface {
	Publish(ctx context.Context, f publish.Filter, dryRun bool) (publish.Result, error)
}

// PublishRequest parameterizes one publish run.
type PublishRequest struct {
	Filter publish.Filter `json:"filter"`
	DryRun bool           `json:"dryRun"`
}

// PublishRunner wraps a Publisher with run logging and the completion event.
type PublishRunner struct {
	publisher Publisher
	events    emitter
	clock     pipeline.Clock
	logger    *zap.Logger
}

// NewPublishRunner constructs a PublishRunner. events and logger may be nil.
func NewPublishRunner(p Publisher, events pipeline.EventPublisher, logger *zap.Logger) *PublishRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishRunner{
		publisher: p,
		events:    emitter{publisher: events, logger: logger},
		clock:     system.New(),
		logger:    logger,
	}
}

// Run publishes and, unless it is a dry run, emits publish.run.completed.
func (r *PublishRunner) Run(ctx context.Context, req PublishRequest) (publish.Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "publish.run")
	defer span.End()

	res, err := r.publisher.Publish(ctx, req.Filter, req.DryRun)
	if err != nil {
		return publish.Result{}, err
	}
	if req.DryRun {
		return res, nil
	}
	r.events.emit(context.WithoutCancel(ctx), TopicPublishCompleted, map[string]any{
		"published": res.Published,
		"total":     res.Total,
		"skipped":   res.Skipped,
		"errors":    len(res.Errors),
		"timestamp": r.clock.Now().Format(time.RFC3339),
	})
	return res, nil
}

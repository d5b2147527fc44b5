// Package worker runs the pipeline stages: batch fetch, extraction and bulk
// publish. Each runner is synchronous and reports per-item failures in its
// result rather than aborting.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const tracerName = "internal/worker"

// Event topics emitted when a run completes.
const (
	TopicScrapeCompleted  = "scrape.run.completed"
	TopicExtractCompleted = "extract.run.completed"
	TopicPublishCompleted = "publish.run.completed"
)

// emitter sends run events. Publish failures are logged and never fail a run.
type emitter struct {
	publisher pipeline.EventPublisher
	logger    *zap.Logger
}

func (e emitter) emit(ctx context.Context, topic string, payload any) {
	if e.publisher == nil {
		return
	}
	id, err := e.publisher.Publish(ctx, topic, payload)
	if err != nil {
		e.logger.Warn("publish run event failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	e.logger.Debug("run event published", zap.String("topic", topic), zap.String("message_id", id))
}

package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/publish"
)

// PipelineResult collects the three stage results of one scheduled run.
type PipelineResult struct {
	Batch   BatchResult    `json:"batch"`
	Extract ExtractResult  `json:"extract"`
	Publish publish.Result `json:"publish"`
}

// Pipeline runs batch, extract and publish in order.
type Pipeline struct {
	Batch   *BatchRunner
	Extract *ExtractRunner
	Publish *PublishRunner
	Filter  publish.Filter
	Logger  *zap.Logger
}

// Run executes the stages. Extraction is scoped to the batch's run id; a
// stage error stops the pipeline and is returned with the partial result.
func (p *Pipeline) Run(ctx context.Context, batch BatchRequest) (PipelineResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var out PipelineResult

	b, err := p.Batch.Run(ctx, batch)
	if err != nil {
		return out, fmt.Errorf("batch stage: %w", err)
	}
	out.Batch = b

	e, err := p.Extract.Run(ctx, ExtractRequest{RunID: b.RunID})
	if err != nil {
		return out, fmt.Errorf("extract stage: %w", err)
	}
	out.Extract = e

	pub, err := p.Publish.Run(ctx, PublishRequest{Filter: p.Filter})
	if err != nil {
		return out, fmt.Errorf("publish stage: %w", err)
	}
	out.Publish = pub

	logger.Info("pipeline complete",
		zap.String("run_id", b.RunID),
		zap.Int("fetched", b.Fetched),
		zap.Int("approved", e.CandidatesApproved),
		zap.Int("published", pub.Published),
	)
	return out, nil
}

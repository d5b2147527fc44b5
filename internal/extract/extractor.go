// Package extract mines question/answer drafts out of fetched pages.
//
// Text is cleaned once, every Strategy runs over it, each raw pair is
// normalized and tagged, and the union is deduplicated by question. When an
// HTML page yields nothing, the readability main-content view of the page is
// tried as a second pass.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// Extractor runs the configured strategies.
type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithStrategies replaces the default strategy list.
func WithStrategies(s ...Strategy) Option {
	return func(e *Extractor) { e.strategies = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New builds an Extractor with the default strategies.
func New(opts ...Option) *Extractor {
	e := &Extractor{strategies: DefaultStrategies(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns deduplicated drafts found in content.
func (e *Extractor) Extract(ctx context.Context, content, sourceURL string) (drafts []pipeline.Draft, err error) {
	defer func() {
		if r := recover(); r != nil {
			drafts, err = nil, fmt.Errorf("extract %s: %v", sourceURL, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled: %w", err)
	}

	drafts = e.run(CleanText(content), sourceURL)
	if len(drafts) == 0 {
		if meta, ok := Readable(content, sourceURL); ok {
			drafts = e.run(CleanText(meta.ContentHTML), sourceURL)
			e.logger.Debug("readability pass",
				zap.String("source_url", sourceURL),
				zap.String("title", meta.Title),
				zap.Int("drafts", len(drafts)),
			)
		}
	}
	return Dedup(drafts), nil
}

func (e *Extractor) run(text, sourceURL string) []pipeline.Draft {
	if text == "" {
		return nil
	}
	var out []pipeline.Draft
	for _, s := range e.strategies {
		for _, pair := range s.Extract(text) {
			n := Normalize(pair.Question, pair.Answer)
			out = append(out, pipeline.Draft{
				Question:         n.Question,
				Answer:           n.Answer,
				Tags:             mergeTags(pair.ExtraTags, n.Tags),
				Confidence:       n.Confidence,
				ExtractionMethod: s.Name(),
				Entities:         ExtractEntities(n.Answer),
				SourceURL:        sourceURL,
			})
		}
	}
	return out
}

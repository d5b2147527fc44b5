// Package importer loads operator-curated question/answer pairs straight into
// the public entry table.
//
// This is a reduced-trust path: rows skip the quality gate and the review
// workflow. Each imported entry is logged at warn level with path=bulk_import
// so the bypass stays visible in the logs.
package importer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/clock/system"
	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/metrics"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const (
	// ActiveThreshold is the confidence at which imported entries go live.
	ActiveThreshold = 0.7
	previewRows     = 3
)

// ErrNoEntries is returned for an empty import.
var ErrNoEntries = errors.New("no entries provided")

// Result reports an import.
type Result struct {
	Status   string   `json:"status"`
	DryRun   bool     `json:"dryRun"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Total    int      `json:"total"`
	Message  string   `json:"message"`
	Preview  []Row    `json:"preview,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer writes rows as entries.
type Importer struct {
	store  pipeline.EntryStore
	clock  pipeline.Clock
	hasher pipeline.Hasher
	logger *zap.Logger
}

// New builds an Importer. Nil collaborators get defaults.
func New(store pipeline.EntryStore, clock pipeline.Clock, logger *zap.Logger) *Importer {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, clock: clock, hasher: sha256.New(), logger: logger}
}

// Import previews or inserts rows. Rows whose hash pair is already an entry
// are skipped; other per-row failures are collected and the import goes on.
func (im *Importer) Import(ctx context.Context, rows []Row, dryRun bool) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrNoEntries
	}
	im.logger.Info("bulk import requested", zap.Int("rows", len(rows)), zap.Bool("dry_run", dryRun))

	if dryRun {
		n := min(previewRows, len(rows))
		return Result{
			Status:  "dry_run",
			DryRun:  true,
			Total:   len(rows),
			Message: fmt.Sprintf("Would import %d entries", len(rows)),
			Preview: append([]Row(nil), rows[:n]...),
		}, nil
	}

	res := Result{Status: "success", Total: len(rows)}
	now := im.clock.Now()
	for i, row := range rows {
		if row.Question == "" || row.Answer == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: question and answer are required", i+1))
			continue
		}
		entry := pipeline.Entry{
			Question:     row.Question,
			Answer:       row.Answer,
			QuestionHash: im.hasher.HashString(row.Question),
			AnswerHash:   im.hasher.HashString(row.Answer),
			Tags:         append([]string(nil), row.Tags...),
			Confidence:   row.Confidence,
			SourceURL:    row.SourceURL,
			Active:       row.Confidence >= ActiveThreshold,
			PublishedAt:  now,
		}
		inserted, err := im.store.InsertEntry(ctx, entry)
		switch {
		case errors.Is(err, pipeline.ErrDuplicate):
			res.Skipped++
			continue
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		res.Imported++
		im.logger.Warn("entry imported without review",
			zap.String("path", "bulk_import"),
			zap.Int64("entry_id", inserted.ID),
			zap.String("source_url", row.SourceURL),
			zap.Bool("active", inserted.Active),
		)
	}
	metrics.ObserveEntriesPublished("bulk_import", res.Imported)
	res.Message = fmt.Sprintf("Successfully imported %d/%d entries", res.Imported, res.Total)
	return res, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// CreateRun stores a new run. A reused run id yields ErrDuplicate.
func (s *Store) CreateRun(ctx context.Context, run pipeline.ScrapeRun) error {
	const query = `
		INSERT INTO scrape_runs (run_id, status, batch_size, max_tier, started_at)
		VALUES ($1, $2, $3, $4, $5)`
	status := run.Status
	if status == "" {
		status = pipeline.RunRunning
	}
	if _, err := s.db.Exec(ctx, query, run.RunID, string(status), run.BatchSize, run.MaxTier, run.StartedAt); err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, mapErr(err))
	}
	return nil
}

// CompleteRun records final counters and status.
func (s *Store) CompleteRun(
	ctx context.Context,
	runID string,
	status pipeline.RunStatus,
	counts pipeline.RunCounts,
	at time.Time,
) error {
	const query = `
		UPDATE scrape_runs
		SET status = $2, pages_attempted = $3, pages_fetched = $4, pages_failed = $5,
		    pages_skipped = $6, completed_at = $7
		WHERE run_id = $1`
	tag, err := s.db.Exec(ctx, query,
		runID, string(status), counts.Attempted, counts.Fetched, counts.Failed, counts.Skipped, at)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	return mustAffect(tag, "run", runID)
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (pipeline.ScrapeRun, error) {
	const query = `
		SELECT run_id, status, batch_size, max_tier, pages_attempted, pages_fetched, pages_failed,
		       pages_skipped, started_at, completed_at
		FROM scrape_runs
		WHERE run_id = $1`
	var (
		run    pipeline.ScrapeRun
		status string
	)
	err := s.db.QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&status,
		&run.BatchSize,
		&run.MaxTier,
		&run.Counts.Attempted,
		&run.Counts.Fetched,
		&run.Counts.Failed,
		&run.Counts.Skipped,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return pipeline.ScrapeRun{}, mapErr(err)
	}
	run.Status = pipeline.RunStatus(status)
	return run, nil
}

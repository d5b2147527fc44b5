package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const sourceColumns = `id, url, domain, tier, source_type, allowed, crawl_frequency_days, last_crawled_at,
	last_attempted_at, notes`

// UpsertSources inserts sources whose URL is not yet present.
func (s *Store) UpsertSources(ctx context.Context, sources []pipeline.Source) (int, error) {
	const query = `
		INSERT INTO sources (url, domain, tier, source_type, allowed, crawl_frequency_days, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url) DO NOTHING`
	inserted := 0
	for _, src := range sources {
		tag, err := s.db.Exec(ctx, query,
			src.URL, src.Domain, src.Tier, src.SourceType, src.Allowed, src.CrawlFrequencyDays, src.Notes)
		if err != nil {
			return inserted, fmt.Errorf("insert source %s: %w", src.URL, mapErr(err))
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListSources returns every source ordered by tier then id.
func (s *Store) ListSources(ctx context.Context) ([]pipeline.Source, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY tier, id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return collectSources(rows)
}

// ListDueSources returns allowed sources at or below MaxTier that are due at q.Now.
func (s *Store) ListDueSources(ctx context.Context, q pipeline.DueQuery) ([]pipeline.Source, error) {
	const query = `SELECT ` + sourceColumns + ` FROM sources
		WHERE allowed AND tier <= $1
		  AND (last_crawled_at IS NULL
		       OR (crawl_frequency_days > 0
		           AND last_crawled_at + make_interval(days => crawl_frequency_days) <= $2))
		ORDER BY tier, last_attempted_at NULLS FIRST, id
		LIMIT NULLIF($3::int, 0)`
	rows, err := s.db.Query(ctx, query, q.MaxTier, q.Now, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list due sources: %w", err)
	}
	return collectSources(rows)
}

// MarkCrawled sets last_crawled_at.
func (s *Store) MarkCrawled(ctx context.Context, sourceID int64, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE sources SET last_crawled_at = $2 WHERE id = $1`, sourceID, at)
	if err != nil {
		return fmt.Errorf("mark source %d crawled: %w", sourceID, err)
	}
	return mustAffect(tag, "source", sourceID)
}

// MarkAttempted sets last_attempted_at.
func (s *Store) MarkAttempted(ctx context.Context, sourceID int64, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE sources SET last_attempted_at = $2 WHERE id = $1`, sourceID, at)
	if err != nil {
		return fmt.Errorf("mark source %d attempted: %w", sourceID, err)
	}
	return mustAffect(tag, "source", sourceID)
}

func collectSources(rows pgx.Rows) ([]pipeline.Source, error) {
	defer rows.Close()
	var out []pipeline.Source
	for rows.Next() {
		var src pipeline.Source
		if err := rows.Scan(
			&src.ID,
			&src.URL,
			&src.Domain,
			&src.Tier,
			&src.SourceType,
			&src.Allowed,
			&src.CrawlFrequencyDays,
			&src.LastCrawledAt,
			&src.LastAttemptedAt,
			&src.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

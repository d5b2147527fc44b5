package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const pageColumns = `id, run_id, COALESCE(source_id, 0), url, content_hash, full_content, excerpt, title,
	status_code, blob_uri, extraction_status, extraction_error, fetched_at`

// FindPageByHash looks up a snapshot by content hash.
func (s *Store) FindPageByHash(ctx context.Context, contentHash string) (pipeline.RawPage, error) {
	row := s.db.QueryRow(ctx, `SELECT `+pageColumns+` FROM raw_pages WHERE content_hash = $1`, contentHash)
	page, err := scanPage(row)
	if err != nil {
		return pipeline.RawPage{}, mapErr(err)
	}
	return page, nil
}

// InsertPage stores a snapshot. A repeated content hash yields ErrDuplicate.
func (s *Store) InsertPage(ctx context.Context, page pipeline.RawPage) (pipeline.RawPage, error) {
	const query = `
		INSERT INTO raw_pages (run_id, source_id, url, content_hash, full_content, excerpt, title,
		                       status_code, blob_uri, extraction_status, fetched_at)
		VALUES ($1, NULLIF($2::bigint, 0), $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
		RETURNING id, fetched_at`
	if page.ExtractionStatus == "" {
		page.ExtractionStatus = pipeline.ExtractionPending
	}
	var fetchedAt any
	if !page.FetchedAt.IsZero() {
		fetchedAt = page.FetchedAt
	}
	err := s.db.QueryRow(ctx, query,
		page.RunID,
		page.SourceID,
		page.URL,
		page.ContentHash,
		page.FullContent,
		page.Excerpt,
		page.Title,
		page.StatusCode,
		page.BlobURI,
		string(page.ExtractionStatus),
		fetchedAt,
	).Scan(&page.ID, &page.FetchedAt)
	if err != nil {
		return pipeline.RawPage{}, fmt.Errorf("insert page %s: %w", page.ContentHash, mapErr(err))
	}
	return page, nil
}

// ListPendingPages returns pending snapshots, optionally for one run, oldest first.
func (s *Store) ListPendingPages(ctx context.Context, runID string, limit int) ([]pipeline.RawPage, error) {
	const query = `SELECT ` + pageColumns + ` FROM raw_pages
		WHERE extraction_status = 'pending' AND ($1 = '' OR run_id = $1)
		ORDER BY id
		LIMIT NULLIF($2::int, 0)`
	rows, err := s.db.Query(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending pages: %w", err)
	}
	defer rows.Close()
	var out []pipeline.RawPage
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}

// UpdateExtraction sets the extraction status and error text of a snapshot.
func (s *Store) UpdateExtraction(
	ctx context.Context,
	pageID int64,
	status pipeline.ExtractionStatus,
	errText *string,
) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE raw_pages SET extraction_status = $2, extraction_error = $3 WHERE id = $1`,
		pageID, string(status), errText)
	if err != nil {
		return fmt.Errorf("update page %d: %w", pageID, err)
	}
	return mustAffect(tag, "page", pageID)
}

func scanPage(row pgx.Row) (pipeline.RawPage, error) {
	var (
		page   pipeline.RawPage
		status string
	)
	err := row.Scan(
		&page.ID,
		&page.RunID,
		&page.SourceID,
		&page.URL,
		&page.ContentHash,
		&page.FullContent,
		&page.Excerpt,
		&page.Title,
		&page.StatusCode,
		&page.BlobURI,
		&status,
		&page.ExtractionError,
		&page.FetchedAt,
	)
	if err != nil {
		return pipeline.RawPage{}, err
	}
	page.ExtractionStatus = pipeline.ExtractionStatus(status)
	return page, nil
}

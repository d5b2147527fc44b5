// Package snapshot stores fetched pages exactly once per content hash and
// tracks their extraction lifecycle.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const excerptLength = 500

// Store archives raw bodies in a BlobStore and records RawPage rows.
type Store struct {
	pages  pipeline.PageStore
	blobs  pipeline.BlobStore
	prefix string
	logger *zap.Logger
}

// New builds a snapshot Store. blobs may be nil to skip archiving.
func New(pages pipeline.PageStore, blobs pipeline.BlobStore, prefix string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "pages"
	}
	return &Store{pages: pages, blobs: blobs, prefix: prefix, logger: logger}
}

// Save stores page for source under runID. The boolean is false when a page
// with the same content hash already exists; nothing is written in that case.
func (s *Store) Save(
	ctx context.Context,
	runID string,
	source pipeline.Source,
	page pipeline.FetchedPage,
) (pipeline.RawPage, bool, error) {
	existing, err := s.pages.FindPageByHash(ctx, page.ContentHash)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, pipeline.ErrNotFound):
		return pipeline.RawPage{}, false, fmt.Errorf("lookup page hash: %w", err)
	}

	var blobURI string
	if s.blobs != nil {
		uri, err := s.blobs.PutObject(ctx, s.BlobPath(page.ContentHash), "text/html; charset=utf-8",
			strings.NewReader(page.Content))
		if err != nil {
			return pipeline.RawPage{}, false, fmt.Errorf("archive page body: %w", err)
		}
		blobURI = uri
	}

	raw, err := s.pages.InsertPage(ctx, pipeline.RawPage{
		RunID:            runID,
		SourceID:         source.ID,
		URL:              page.URL,
		ContentHash:      page.ContentHash,
		FullContent:      page.Content,
		Excerpt:          Excerpt(page.Content),
		Title:            page.Title,
		StatusCode:       page.StatusCode,
		BlobURI:          blobURI,
		ExtractionStatus: pipeline.ExtractionPending,
		FetchedAt:        page.FetchedAt,
	})
	if errors.Is(err, pipeline.ErrDuplicate) {
		// Lost a race with a concurrent writer of the same content.
		return pipeline.RawPage{}, false, nil
	}
	if err != nil {
		return pipeline.RawPage{}, false, fmt.Errorf("insert page: %w", err)
	}
	s.logger.Debug("stored snapshot",
		zap.Int64("page_id", raw.ID),
		zap.String("url", raw.URL),
		zap.String("content_hash", raw.ContentHash),
	)
	return raw, true, nil
}

// Pending returns snapshots awaiting extraction, optionally for one run.
func (s *Store) Pending(ctx context.Context, runID string, limit int) ([]pipeline.RawPage, error) {
	pages, err := s.pages.ListPendingPages(ctx, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending pages: %w", err)
	}
	return pages, nil
}

// MarkExtracted records that candidates were produced from the page.
func (s *Store) MarkExtracted(ctx context.Context, pageID int64) error {
	return s.mark(ctx, pageID, pipeline.ExtractionExtracted, nil)
}

// MarkSkipped records that the page yielded no pairs.
func (s *Store) MarkSkipped(ctx context.Context, pageID int64) error {
	return s.mark(ctx, pageID, pipeline.ExtractionSkipped, nil)
}

// MarkFailed records an extraction failure with its message.
func (s *Store) MarkFailed(ctx context.Context, pageID int64, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.mark(ctx, pageID, pipeline.ExtractionFailed, &msg)
}

func (s *Store) mark(ctx context.Context, pageID int64, status pipeline.ExtractionStatus, errText *string) error {
	if err := s.pages.UpdateExtraction(ctx, pageID, status, errText); err != nil {
		return fmt.Errorf("mark page %d %s: %w", pageID, status, err)
	}
	return nil
}

// BlobPath is the archive location for a content hash.
func (s *Store) BlobPath(contentHash string) string {
	shard := contentHash
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return path.Join(s.prefix, shard, contentHash+".html")
}

// Excerpt returns the first 500 characters of content.
func Excerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:excerptLength])
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned by single-record lookups when nothing matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness rule
	// (page content hash, entry hash pair, run id).
	ErrDuplicate = errors.New("duplicate")
	// ErrPolicyDenied is returned by fetchers when crawl policy (robots.txt)
	// refuses a URL. Callers count it as skipped, not failed.
	ErrPolicyDenied = errors.New("denied by crawl policy")
)

// DueQuery selects sources eligible for crawling. Results are ordered by
// tier, then least recently attempted with never-attempted first, then id.
type DueQuery struct {
	MaxTier int
	Limit   int
	Now     time.Time
}

// CandidateQuery filters candidate listings. Zero values mean "no filter".
type CandidateQuery struct {
	Statuses      []ReviewStatus
	MinConfidence float64
	Limit         int
}

// EntryQuery filters entry listings.
type EntryQuery struct {
	ActiveOnly bool
	Tag        string
	Limit      int
}

// SourceStore persists the crawl registry.
type SourceStore interface {
	UpsertSources(ctx context.Context, sources []Source) (int, error)
	ListSources(ctx context.Context) ([]Source, error)
	ListDueSources(ctx context.Context, q DueQuery) ([]Source, error)
	MarkCrawled(ctx context.Context, sourceID int64, at time.Time) error
	MarkAttempted(ctx context.Context, sourceID int64, at time.Time) error
}

// PageStore persists raw snapshots.
type PageStore interface {
	FindPageByHash(ctx context.Context, contentHash string) (RawPage, error)
	InsertPage(ctx context.Context, page RawPage) (RawPage, error)
	ListPendingPages(ctx context.Context, runID string, limit int) ([]RawPage, error)
	UpdateExtraction(ctx context.Context, pageID int64, status ExtractionStatus, errText *string) error
}

// CandidateStore persists gated candidates.
type CandidateStore interface {
	InsertCandidates(ctx context.Context, candidates []Candidate) (int, error)
	GetCandidate(ctx context.Context, id int64) (Candidate, error)
	ListCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)
	PendingQuestions(ctx context.Context) ([]string, error)
	UpdateCandidateStatus(ctx context.Context, id int64, status ReviewStatus) error
	UpdateCandidateContent(ctx context.Context, id int64, question, answer, questionHash, answerHash string) error
}

// EntryStore persists published entries.
type EntryStore interface {
	FindEntryByHashes(ctx context.Context, questionHash, answerHash string) (Entry, error)
	FindEntryByQuestionHash(ctx context.Context, questionHash string) (Entry, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]Entry, error)
}

// ReviewStore is the append-only audit log.
type ReviewStore interface {
	InsertReview(ctx context.Context, review Review) (Review, error)
	ListReviews(ctx context.Context, candidateID int64) ([]Review, error)
}

// RunStore persists scrape runs.
type RunStore interface {
	CreateRun(ctx context.Context, run ScrapeRun) error
	CompleteRun(ctx context.Context, runID string, status RunStatus, counts RunCounts, at time.Time) error
	GetRun(ctx context.Context, runID string) (ScrapeRun, error)
}

// Store bundles every persistence capability the pipeline uses.
type Store interface {
	SourceStore
	PageStore
	CandidateStore
	EntryStore
	ReviewStore
	RunStore
	Ping(ctx context.Context) error
	Close()
}

// Fetcher retrieves one URL. Robots denials return ErrPolicyDenied. A nil
// page with a nil error means the fetch failed softly (non-2xx, timeout).
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchedPage, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// EventPublisher pushes pipeline events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	HashString(s string) string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

package pipeline

import (
	"net/http"
	"time"
)

// ExtractionStatus tracks where a raw page sits in the extraction lifecycle.
type ExtractionStatus string

// Extraction status values persisted on raw pages.
const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionExtracted ExtractionStatus = "extracted"
	ExtractionSkipped   ExtractionStatus = "skipped"
	ExtractionFailed    ExtractionStatus = "failed"
)

// ReviewStatus is the state of a candidate in the review workflow.
type ReviewStatus string

// Review status values.
const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

// ReviewAction names one audited action taken against a candidate.
type ReviewAction string

// Review actions written to the audit log.
const (
	ActionApproved ReviewAction = "approved"
	ActionRejected ReviewAction = "rejected"
	ActionEdited   ReviewAction = "edited"
)

// ExtractionMethod records which strategy produced a candidate.
type ExtractionMethod string

// Extraction strategies.
const (
	MethodFAQPattern ExtractionMethod = "faq_pattern"
	MethodHeader     ExtractionMethod = "header_inference"
	MethodDefinition ExtractionMethod = "definition_extraction"
)

// RunStatus is the lifecycle state of a scrape run.
type RunStatus string

// Scrape run states.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Source is a crawl target in the registry.
type Source struct {
	ID                 int64      `json:"id"`
	URL                string     `json:"url"`
	Domain             string     `json:"domain"`
	Tier               int        `json:"tier"`
	SourceType         string     `json:"source_type"`
	Allowed            bool       `json:"allowed"`
	CrawlFrequencyDays int        `json:"crawl_frequency_days"`
	LastCrawledAt      *time.Time `json:"last_crawled_at,omitempty"`
	LastAttemptedAt    *time.Time `json:"last_attempted_at,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

// Due reports whether the source is eligible for crawling at now.
// Never-crawled sources are always due.
func (s Source) Due(now time.Time) bool {
	if s.LastCrawledAt == nil {
		return true
	}
	if s.CrawlFrequencyDays <= 0 {
		return false
	}
	next := s.LastCrawledAt.Add(time.Duration(s.CrawlFrequencyDays) * 24 * time.Hour)
	return !next.After(now)
}

// FetchedPage is the normalized result of a successful fetch.
type FetchedPage struct {
	URL         string      `json:"url"`
	Domain      string      `json:"domain"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	ContentHash string      `json:"content_hash"`
	StatusCode  int         `json:"status_code"`
	Headers     http.Header `json:"headers,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at"`
}

// RawPage is one stored snapshot of fetched content.
type RawPage struct {
	ID               int64            `json:"id"`
	RunID            string           `json:"run_id"`
	SourceID         int64            `json:"source_id"`
	URL              string           `json:"url"`
	ContentHash      string           `json:"content_hash"`
	FullContent      string           `json:"full_content"`
	Excerpt          string           `json:"excerpt"`
	Title            string           `json:"title"`
	StatusCode       int              `json:"status_code"`
	BlobURI          string           `json:"blob_uri,omitempty"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	ExtractionError  *string          `json:"extraction_error,omitempty"`
	FetchedAt        time.Time        `json:"fetched_at"`
}

// Entity is a structured mention recognized in answer text.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Draft is an extracted question/answer pair that has not been gated yet.
type Draft struct {
	Question         string           `json:"question"`
	Answer           string           `json:"answer"`
	Tags             []string         `json:"tags"`
	Confidence       float64          `json:"confidence"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	Entities         []Entity         `json:"entities"`
	SourceURL        string           `json:"source_url"`
}

// Candidate is a gated, not-yet-public Q&A pair awaiting review.
type Candidate struct {
	ID               int64            `json:"id"`
	RunID            string           `json:"run_id,omitempty"`
	RawPageID        int64            `json:"raw_page_id,omitempty"`
	SourceURL        string           `json:"source_url"`
	Question         string           `json:"question"`
	Answer           string           `json:"answer"`
	QuestionHash     string           `json:"question_hash"`
	AnswerHash       string           `json:"answer_hash"`
	Tags             []string         `json:"tags"`
	Confidence       float64          `json:"confidence"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	Entities         []Entity         `json:"entities"`
	QualityFlags     []string         `json:"quality_flags"`
	ReviewStatus     ReviewStatus     `json:"review_status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Entry is a published, publicly queryable Q&A fact.
type Entry struct {
	ID           int64     `json:"id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	QuestionHash string    `json:"question_hash"`
	AnswerHash   string    `json:"answer_hash"`
	Tags         []string  `json:"tags"`
	Confidence   float64   `json:"confidence"`
	SourceURL    string    `json:"source_url"`
	Entities     []Entity  `json:"entities,omitempty"`
	Active       bool      `json:"active"`
	PublishedAt  time.Time `json:"published_at"`
}

// EntryFromCandidate builds the Entry a candidate is promoted into.
func EntryFromCandidate(c Candidate, publishedAt time.Time) Entry {
	return Entry{
		Question:     c.Question,
		Answer:       c.Answer,
		QuestionHash: c.QuestionHash,
		AnswerHash:   c.AnswerHash,
		Tags:         append([]string(nil), c.Tags...),
		Confidence:   c.Confidence,
		SourceURL:    c.SourceURL,
		Entities:     append([]Entity(nil), c.Entities...),
		Active:       true,
		PublishedAt:  publishedAt,
	}
}

// Review is one append-only audit row.
type Review struct {
	ID               int64        `json:"id"`
	CandidateID      int64        `json:"qa_candidate_id"`
	EntryID          *int64       `json:"qa_entry_id,omitempty"`
	Action           ReviewAction `json:"action"`
	Reason           string       `json:"reason"`
	OriginalQuestion *string      `json:"original_question,omitempty"`
	OriginalAnswer   *string      `json:"original_answer,omitempty"`
	EditedQuestion   *string      `json:"edited_question,omitempty"`
	EditedAnswer     *string      `json:"edited_answer,omitempty"`
	Reviewer         string       `json:"reviewer"`
	CreatedAt        time.Time    `json:"created_at"`
}

// RunCounts are the per-run page counters.
type RunCounts struct {
	Attempted int `json:"attempted"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ScrapeRun records one batch fetch execution.
type ScrapeRun struct {
	RunID       string     `json:"run_id"`
	Status      RunStatus  `json:"status"`
	BatchSize   int        `json:"batch_size"`
	MaxTier     int        `json:"max_tier"`
	Counts      RunCounts  `json:"counts"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

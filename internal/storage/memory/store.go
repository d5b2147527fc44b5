package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// Store is an in-process pipeline.Store for development and tests.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	sources    []pipeline.Source
	pages      []pipeline.RawPage
	candidates []pipeline.Candidate
	entries    []pipeline.Entry
	reviews    []pipeline.Review
	runs       map[string]pipeline.ScrapeRun

	nextSource, nextPage, nextCandidate, nextEntry, nextReview int64
}

var _ pipeline.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		now:  func() time.Time { return time.Now().UTC() },
		runs: make(map[string]pipeline.ScrapeRun),
	}
}

// SetClock overrides the time source used for default timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// UpsertSources inserts sources whose URL is not yet present.
func (s *Store) UpsertSources(_ context.Context, sources []pipeline.Source) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, src := range sources {
		if s.sourceIndexByURL(src.URL) >= 0 {
			continue
		}
		s.nextSource++
		src.ID = s.nextSource
		s.sources = append(s.sources, src)
		inserted++
	}
	return inserted, nil
}

// ListSources returns every source ordered by tier then id.
func (s *Store) ListSources(context.Context) ([]pipeline.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.sources)
	sortSources(out)
	return out, nil
}

// ListDueSources returns allowed sources at or below MaxTier that are due at q.Now.
func (s *Store) ListDueSources(_ context.Context, q pipeline.DueQuery) ([]pipeline.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Source
	for _, src := range s.sources {
		if !src.Allowed || src.Tier > q.MaxTier || !src.Due(q.Now) {
			continue
		}
		out = append(out, src)
	}
	sortDue(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// MarkCrawled sets LastCrawledAt.
func (s *Store) MarkCrawled(_ context.Context, sourceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sources {
		if s.sources[i].ID == sourceID {
			ts := at
			s.sources[i].LastCrawledAt = &ts
			return nil
		}
	}
	return fmt.Errorf("source %d: %w", sourceID, pipeline.ErrNotFound)
}

// MarkAttempted sets LastAttemptedAt.
func (s *Store) MarkAttempted(_ context.Context, sourceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sources {
		if s.sources[i].ID == sourceID {
			ts := at
			s.sources[i].LastAttemptedAt = &ts
			return nil
		}
	}
	return fmt.Errorf("source %d: %w", sourceID, pipeline.ErrNotFound)
}

// FindPageByHash looks up a snapshot by content hash.
func (s *Store) FindPageByHash(_ context.Context, contentHash string) (pipeline.RawPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pages {
		if p.ContentHash == contentHash {
			return p, nil
		}
	}
	return pipeline.RawPage{}, pipeline.ErrNotFound
}

// InsertPage stores a snapshot. A repeated content hash yields ErrDuplicate.
func (s *Store) InsertPage(_ context.Context, page pipeline.RawPage) (pipeline.RawPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if p.ContentHash == page.ContentHash {
			return pipeline.RawPage{}, fmt.Errorf("page %s: %w", page.ContentHash, pipeline.ErrDuplicate)
		}
	}
	s.nextPage++
	page.ID = s.nextPage
	if page.ExtractionStatus == "" {
		page.ExtractionStatus = pipeline.ExtractionPending
	}
	if page.FetchedAt.IsZero() {
		page.FetchedAt = s.now()
	}
	s.pages = append(s.pages, page)
	return page, nil
}

// ListPendingPages returns pending snapshots, optionally for one run, oldest first.
func (s *Store) ListPendingPages(_ context.Context, runID string, limit int) ([]pipeline.RawPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.RawPage
	for _, p := range s.pages {
		if p.ExtractionStatus != pipeline.ExtractionPending {
			continue
		}
		if runID != "" && p.RunID != runID {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// UpdateExtraction sets the extraction status and error text of a snapshot.
func (s *Store) UpdateExtraction(
	_ context.Context,
	pageID int64,
	status pipeline.ExtractionStatus,
	errText *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pages {
		if s.pages[i].ID == pageID {
			s.pages[i].ExtractionStatus = status
			s.pages[i].ExtractionError = errText
			return nil
		}
	}
	return fmt.Errorf("page %d: %w", pageID, pipeline.ErrNotFound)
}

// InsertCandidates appends candidates, defaulting status to pending.
func (s *Store) InsertCandidates(_ context.Context, candidates []pipeline.Candidate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range candidates {
		s.nextCandidate++
		c.ID = s.nextCandidate
		if c.ReviewStatus == "" {
			c.ReviewStatus = pipeline.StatusPending
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
		s.candidates = append(s.candidates, cloneCandidate(c))
	}
	return len(candidates), nil
}

// GetCandidate returns one candidate.
func (s *Store) GetCandidate(_ context.Context, id int64) (pipeline.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.candidateIndex(id); i >= 0 {
		return cloneCandidate(s.candidates[i]), nil
	}
	return pipeline.Candidate{}, pipeline.ErrNotFound
}

// ListCandidates filters candidates in insertion order.
func (s *Store) ListCandidates(_ context.Context, q pipeline.CandidateQuery) ([]pipeline.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Candidate
	for _, c := range s.candidates {
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, c.ReviewStatus) {
			continue
		}
		if c.Confidence < q.MinConfidence {
			continue
		}
		out = append(out, cloneCandidate(c))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// PendingQuestions returns the question text of all pending candidates.
func (s *Store) PendingQuestions(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, c := range s.candidates {
		if c.ReviewStatus == pipeline.StatusPending {
			out = append(out, c.Question)
		}
	}
	return out, nil
}

// UpdateCandidateStatus sets the review status.
func (s *Store) UpdateCandidateStatus(_ context.Context, id int64, status pipeline.ReviewStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.candidateIndex(id)
	if i < 0 {
		return fmt.Errorf("candidate %d: %w", id, pipeline.ErrNotFound)
	}
	s.candidates[i].ReviewStatus = status
	return nil
}

// UpdateCandidateContent replaces question, answer and their hashes.
func (s *Store) UpdateCandidateContent(
	_ context.Context,
	id int64,
	question, answer, questionHash, answerHash string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.candidateIndex(id)
	if i < 0 {
		return fmt.Errorf("candidate %d: %w", id, pipeline.ErrNotFound)
	}
	c := &s.candidates[i]
	c.Question, c.Answer = question, answer
	c.QuestionHash, c.AnswerHash = questionHash, answerHash
	return nil
}

// FindEntryByHashes looks up an entry by its hash pair.
func (s *Store) FindEntryByHashes(_ context.Context, questionHash, answerHash string) (pipeline.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.QuestionHash == questionHash && e.AnswerHash == answerHash {
			return cloneEntry(e), nil
		}
	}
	return pipeline.Entry{}, pipeline.ErrNotFound
}

// FindEntryByQuestionHash returns the first entry with the question hash.
func (s *Store) FindEntryByQuestionHash(_ context.Context, questionHash string) (pipeline.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.QuestionHash == questionHash {
			return cloneEntry(e), nil
		}
	}
	return pipeline.Entry{}, pipeline.ErrNotFound
}

// InsertEntry stores an entry. A repeated hash pair yields ErrDuplicate.
func (s *Store) InsertEntry(_ context.Context, entry pipeline.Entry) (pipeline.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.QuestionHash == entry.QuestionHash && e.AnswerHash == entry.AnswerHash {
			return pipeline.Entry{}, fmt.Errorf("entry: %w", pipeline.ErrDuplicate)
		}
	}
	s.nextEntry++
	entry.ID = s.nextEntry
	if entry.PublishedAt.IsZero() {
		entry.PublishedAt = s.now()
	}
	entry = cloneEntry(entry)
	s.entries = append(s.entries, entry)
	return cloneEntry(entry), nil
}

// ListEntries returns entries newest first.
func (s *Store) ListEntries(_ context.Context, q pipeline.EntryQuery) ([]pipeline.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if q.ActiveOnly && !e.Active {
			continue
		}
		if q.Tag != "" && !slices.Contains(e.Tags, q.Tag) {
			continue
		}
		out = append(out, cloneEntry(e))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// InsertReview appends an audit row.
func (s *Store) InsertReview(_ context.Context, review pipeline.Review) (pipeline.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextReview++
	review.ID = s.nextReview
	if review.CreatedAt.IsZero() {
		review.CreatedAt = s.now()
	}
	s.reviews = append(s.reviews, review)
	return review, nil
}

// ListReviews returns a candidate's audit rows oldest first.
func (s *Store) ListReviews(_ context.Context, candidateID int64) ([]pipeline.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.Review
	for _, r := range s.reviews {
		if r.CandidateID == candidateID {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateRun stores a new run.
func (s *Store) CreateRun(_ context.Context, run pipeline.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.RunID]; exists {
		return fmt.Errorf("run %s: %w", run.RunID, pipeline.ErrDuplicate)
	}
	if run.Status == "" {
		run.Status = pipeline.RunRunning
	}
	s.runs[run.RunID] = run
	return nil
}

// CompleteRun records final counters and status.
func (s *Store) CompleteRun(
	_ context.Context,
	runID string,
	status pipeline.RunStatus,
	counts pipeline.RunCounts,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, pipeline.ErrNotFound)
	}
	run.Status = status
	run.Counts = counts
	ts := at
	run.CompletedAt = &ts
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by id.
func (s *Store) GetRun(_ context.Context, runID string) (pipeline.ScrapeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return pipeline.ScrapeRun{}, pipeline.ErrNotFound
	}
	return run, nil
}

func (s *Store) sourceIndexByURL(url string) int {
	for i, src := range s.sources {
		if src.URL == url {
			return i
		}
	}
	return -1
}

func (s *Store) candidateIndex(id int64) int {
	for i, c := range s.candidates {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func sortSources(sources []pipeline.Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].Tier != sources[j].Tier {
			return sources[i].Tier < sources[j].Tier
		}
		return sources[i].ID < sources[j].ID
	})
}

// sortDue orders by tier, then least recently attempted (never first), then id.
func sortDue(sources []pipeline.Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		switch {
		case a.LastAttemptedAt == nil && b.LastAttemptedAt != nil:
			return true
		case a.LastAttemptedAt != nil && b.LastAttemptedAt == nil:
			return false
		case a.LastAttemptedAt != nil && !a.LastAttemptedAt.Equal(*b.LastAttemptedAt):
			return a.LastAttemptedAt.Before(*b.LastAttemptedAt)
		}
		return a.ID < b.ID
	})
}

func cloneCandidate(c pipeline.Candidate) pipeline.Candidate {
	c.Tags = slices.Clone(c.Tags)
	c.Entities = slices.Clone(c.Entities)
	c.QualityFlags = slices.Clone(c.QualityFlags)
	return c
}

func cloneEntry(e pipeline.Entry) pipeline.Entry {
	e.Tags = slices.Clone(e.Tags)
	e.Entities = slices.Clone(e.Entities)
	return e
}

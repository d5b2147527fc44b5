package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const candidateColumns = `id, run_id, COALESCE(raw_page_id, 0), source_url, question, answer,
	question_hash, answer_hash, tags, confidence, extraction_method, entities, quality_flags,
	review_status, created_at`

// InsertCandidates writes candidates in one transaction, defaulting status to pending.
func (s *Store) InsertCandidates(ctx context.Context, candidates []pipeline.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	const query = `
		INSERT INTO qa_candidates (run_id, raw_page_id, source_url, question, answer, question_hash,
		                           answer_hash, tags, confidence, extraction_method, entities,
		                           quality_flags, review_status)
		VALUES ($1, NULLIF($2::bigint, 0), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin candidate insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range candidates {
		entities, err := marshalEntities(c.Entities)
		if err != nil {
			return 0, err
		}
		status := c.ReviewStatus
		if status == "" {
			status = pipeline.StatusPending
		}
		if _, err := tx.Exec(ctx, query,
			c.RunID,
			c.RawPageID,
			c.SourceURL,
			c.Question,
			c.Answer,
			c.QuestionHash,
			c.AnswerHash,
			nonNil(c.Tags),
			c.Confidence,
			string(c.ExtractionMethod),
			entities,
			nonNil(c.QualityFlags),
			string(status),
		); err != nil {
			return 0, fmt.Errorf("insert candidate %q: %w", c.Question, mapErr(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit candidates: %w", err)
	}
	return len(candidates), nil
}

// GetCandidate returns one candidate.
func (s *Store) GetCandidate(ctx context.Context, id int64) (pipeline.Candidate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM qa_candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if err != nil {
		return pipeline.Candidate{}, mapErr(err)
	}
	return c, nil
}

// ListCandidates filters candidates in insertion order.
func (s *Store) ListCandidates(ctx context.Context, q pipeline.CandidateQuery) ([]pipeline.Candidate, error) {
	const query = `SELECT ` + candidateColumns + ` FROM qa_candidates
		WHERE (cardinality($1::text[]) = 0 OR review_status = ANY($1))
		  AND confidence >= $2
		ORDER BY id
		LIMIT NULLIF($3::int, 0)`
	statuses := make([]string, 0, len(q.Statuses))
	for _, st := range q.Statuses {
		statuses = append(statuses, string(st))
	}
	rows, err := s.db.Query(ctx, query, statuses, q.MinConfidence, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()
	var out []pipeline.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// PendingQuestions returns the question text of all pending candidates.
func (s *Store) PendingQuestions(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT question FROM qa_candidates WHERE review_status = 'pending' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pending questions: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect pending questions: %w", err)
	}
	return out, nil
}

// UpdateCandidateStatus sets the review status.
func (s *Store) UpdateCandidateStatus(ctx context.Context, id int64, status pipeline.ReviewStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE qa_candidates SET review_status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update candidate %d status: %w", id, err)
	}
	return mustAffect(tag, "candidate", id)
}

// UpdateCandidateContent replaces question, answer and their hashes.
func (s *Store) UpdateCandidateContent(
	ctx context.Context,
	id int64,
	question, answer, questionHash, answerHash string,
) error {
	const query = `
		UPDATE qa_candidates
		SET question = $2, answer = $3, question_hash = $4, answer_hash = $5
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id, question, answer, questionHash, answerHash)
	if err != nil {
		return fmt.Errorf("update candidate %d content: %w", id, err)
	}
	return mustAffect(tag, "candidate", id)
}

func scanCandidate(row pgx.Row) (pipeline.Candidate, error) {
	var (
		c              pipeline.Candidate
		method, status string
		entities       []byte
	)
	err := row.Scan(
		&c.ID,
		&c.RunID,
		&c.RawPageID,
		&c.SourceURL,
		&c.Question,
		&c.Answer,
		&c.QuestionHash,
		&c.AnswerHash,
		&c.Tags,
		&c.Confidence,
		&method,
		&entities,
		&c.QualityFlags,
		&status,
		&c.CreatedAt,
	)
	if err != nil {
		return pipeline.Candidate{}, err
	}
	c.ExtractionMethod = pipeline.ExtractionMethod(method)
	c.ReviewStatus = pipeline.ReviewStatus(status)
	if c.Entities, err = unmarshalEntities(entities); err != nil {
		return pipeline.Candidate{}, err
	}
	return c, nil
}

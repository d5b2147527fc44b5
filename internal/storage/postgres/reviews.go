package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// InsertReview appends an audit row.
func (s *Store) InsertReview(ctx context.Context, review pipeline.Review) (pipeline.Review, error) {
	const query = `
		INSERT INTO qa_reviews (qa_candidate_id, qa_entry_id, action, reason, original_question,
		                        original_answer, edited_question, edited_answer, reviewer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
		RETURNING id, created_at`
	var createdAt any
	if !review.CreatedAt.IsZero() {
		createdAt = review.CreatedAt
	}
	err := s.db.QueryRow(ctx, query,
		review.CandidateID,
		review.EntryID,
		string(review.Action),
		review.Reason,
		review.OriginalQuestion,
		review.OriginalAnswer,
		review.EditedQuestion,
		review.EditedAnswer,
		review.Reviewer,
		createdAt,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return pipeline.Review{}, fmt.Errorf("insert review for candidate %d: %w", review.CandidateID, mapErr(err))
	}
	return review, nil
}

// ListReviews returns a candidate's audit rows oldest first.
func (s *Store) ListReviews(ctx context.Context, candidateID int64) ([]pipeline.Review, error) {
	const query = `
		SELECT id, qa_candidate_id, qa_entry_id, action, reason, original_question, original_answer,
		       edited_question, edited_answer, reviewer, created_at
		FROM qa_reviews
		WHERE qa_candidate_id = $1
		ORDER BY id`
	rows, err := s.db.Query(ctx, query, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()
	var out []pipeline.Review
	for rows.Next() {
		var (
			r      pipeline.Review
			action string
		)
		if err := rows.Scan(
			&r.ID,
			&r.CandidateID,
			&r.EntryID,
			&action,
			&r.Reason,
			&r.OriginalQuestion,
			&r.OriginalAnswer,
			&r.EditedQuestion,
			&r.EditedAnswer,
			&r.Reviewer,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Action = pipeline.ReviewAction(action)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return out, nil
}

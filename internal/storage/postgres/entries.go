package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

const entryColumns = `id, question, answer, question_hash, answer_hash, tags, confidence, source_url,
	entities, active, published_at`

// FindEntryByHashes looks up an entry by its hash pair.
func (s *Store) FindEntryByHashes(ctx context.Context, questionHash, answerHash string) (pipeline.Entry, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM qa_entries WHERE question_hash = $1 AND answer_hash = $2`,
		questionHash, answerHash)
	e, err := scanEntry(row)
	if err != nil {
		return pipeline.Entry{}, mapErr(err)
	}
	return e, nil
}

// FindEntryByQuestionHash returns the oldest entry with the question hash.
func (s *Store) FindEntryByQuestionHash(ctx context.Context, questionHash string) (pipeline.Entry, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM qa_entries WHERE question_hash = $1 ORDER BY id LIMIT 1`,
		questionHash)
	e, err := scanEntry(row)
	if err != nil {
		return pipeline.Entry{}, mapErr(err)
	}
	return e, nil
}

// InsertEntry stores an entry. A repeated hash pair yields ErrDuplicate.
func (s *Store) InsertEntry(ctx context.Context, entry pipeline.Entry) (pipeline.Entry, error) {
	const query = `
		INSERT INTO qa_entries (question, answer, question_hash, answer_hash, tags, confidence,
		                        source_url, entities, active, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
		RETURNING id, published_at`
	entities, err := marshalEntities(entry.Entities)
	if err != nil {
		return pipeline.Entry{}, err
	}
	var publishedAt any
	if !entry.PublishedAt.IsZero() {
		publishedAt = entry.PublishedAt
	}
	err = s.db.QueryRow(ctx, query,
		entry.Question,
		entry.Answer,
		entry.QuestionHash,
		entry.AnswerHash,
		nonNil(entry.Tags),
		entry.Confidence,
		entry.SourceURL,
		entities,
		entry.Active,
		publishedAt,
	).Scan(&entry.ID, &entry.PublishedAt)
	if err != nil {
		return pipeline.Entry{}, fmt.Errorf("insert entry: %w", mapErr(err))
	}
	return entry, nil
}

// ListEntries returns entries newest first.
func (s *Store) ListEntries(ctx context.Context, q pipeline.EntryQuery) ([]pipeline.Entry, error) {
	const query = `SELECT ` + entryColumns + ` FROM qa_entries
		WHERE (NOT $1 OR active)
		  AND ($2 = '' OR $2 = ANY(tags))
		ORDER BY id DESC
		LIMIT NULLIF($3::int, 0)`
	rows, err := s.db.Query(ctx, query, q.ActiveOnly, q.Tag, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	var out []pipeline.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func scanEntry(row pgx.Row) (pipeline.Entry, error) {
	var (
		e        pipeline.Entry
		entities []byte
	)
	err := row.Scan(
		&e.ID,
		&e.Question,
		&e.Answer,
		&e.QuestionHash,
		&e.AnswerHash,
		&e.Tags,
		&e.Confidence,
		&e.SourceURL,
		&entities,
		&e.Active,
		&e.PublishedAt,
	)
	if err != nil {
		return pipeline.Entry{}, err
	}
	if e.Entities, err = unmarshalEntities(entities); err != nil {
		return pipeline.Entry{}, err
	}
	return e, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"examforge/internal/pipeline"
	"examforge/internal/question"
)

// SavedQuestion is one persisted generation result.
type SavedQuestion struct {
	ID          int64
	Topic       string
	Difficulty  float64
	Variant     string
	Accepted    bool
	RubricTotal int
	Iterations  int
	Draft       question.Draft
	CreatedAt   string
}

// SaveQuestion persists a finished pipeline result. Implements
// pipeline.Archiver.
func (s *Store) SaveQuestion(ctx context.Context, req pipeline.Request, res *pipeline.Result) error {
	draftJSON, err := json.Marshal(res.FinalDraft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	// The final draft is the best-scoring iteration, not necessarily the
	// last one recorded.
	rubricTotal := 0
	for _, it := range res.Iterations {
		if it.Rubric.Total > rubricTotal {
			rubricTotal = it.Rubric.Total
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO questions
			(topic, difficulty, variant, accepted, rubric_total, iterations, draft_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Topic, req.Difficulty, string(req.Variant), res.Accepted,
		rubricTotal, len(res.Iterations), string(draftJSON), now(),
	)
	if err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

// ListQuestions returns the newest saved questions, up to limit.
func (s *Store) ListQuestions(ctx context.Context, limit int) ([]SavedQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, difficulty, variant, accepted, rubric_total, iterations, draft_json, created_at
		FROM questions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []SavedQuestion
	for rows.Next() {
		var q SavedQuestion
		var draftJSON string
		if err := rows.Scan(&q.ID, &q.Topic, &q.Difficulty, &q.Variant, &q.Accepted,
			&q.RubricTotal, &q.Iterations, &draftJSON, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(draftJSON), &q.Draft); err != nil {
			return nil, fmt.Errorf("decode draft %d: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

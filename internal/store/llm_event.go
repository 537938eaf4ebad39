package store

import (
	"context"
	"fmt"

	"examforge/internal/llm"
)

// AppendLLMRequest records one model attempt. Implements llm.EventSink.
func (s *Store) AppendLLMRequest(ctx context.Context, ev llm.RequestEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_requests
			(created_at, model, purpose, latency_ms, input_tokens, output_tokens,
			 success, error_message, request_body, response_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		now(), ev.Model, ev.Purpose, ev.LatencyMs, ev.InputTokens, ev.OutputTokens,
		ev.Success, ev.ErrorMessage, ev.RequestBody, ev.ResponseBody,
	)
	if err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

// LLMRequestStats summarizes the request log.
type LLMRequestStats struct {
	Requests     int
	Failures     int
	InputTokens  int
	OutputTokens int
}

// LLMStats aggregates the request log for the stats command.
func (s *Store) LLMStats(ctx context.Context) (LLMRequestStats, error) {
	var st LLMRequestStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0)
		FROM llm_requests`).
		Scan(&st.Requests, &st.Failures, &st.InputTokens, &st.OutputTokens)
	if err != nil {
		return LLMRequestStats{}, fmt.Errorf("aggregate LLM requests: %w", err)
	}
	return st, nil
}

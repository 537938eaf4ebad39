package store

import (
	"context"
	"fmt"
)

// KBEntry is one knowledge-base snippet.
type KBEntry struct {
	ID      int64
	Topic   string
	Source  string
	Snippet string
}

// AddKBEntry inserts a knowledge-base snippet for a topic.
func (s *Store) AddKBEntry(ctx context.Context, topic, source, snippet string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_entries (topic, source, snippet, created_at) VALUES (?, ?, ?, ?)`,
		topic, source, snippet, now(),
	)
	if err != nil {
		return fmt.Errorf("add KB entry: %w", err)
	}
	return nil
}

// SearchSnippets returns snippets whose topic or body matches the given
// topic, newest first. Implements the research snippet lookup.
func (s *Store) SearchSnippets(ctx context.Context, topic string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snippet FROM kb_entries
		WHERE topic LIKE '%' || ? || '%' COLLATE NOCASE
		   OR snippet LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY id DESC
		LIMIT ?`,
		topic, topic, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search KB entries: %w", err)
	}
	defer rows.Close()

	var snippets []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan KB entry: %w", err)
		}
		snippets = append(snippets, s)
	}
	return snippets, rows.Err()
}

// ListKBEntries returns the newest entries, up to limit.
func (s *Store) ListKBEntries(ctx context.Context, limit int) ([]KBEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, source, snippet FROM kb_entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list KB entries: %w", err)
	}
	defer rows.Close()

	var entries []KBEntry
	for rows.Next() {
		var e KBEntry
		if err := rows.Scan(&e.ID, &e.Topic, &e.Source, &e.Snippet); err != nil {
			return nil, fmt.Errorf("scan KB entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

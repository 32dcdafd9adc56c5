package store

import (
	"context"
	"fmt"
)

// Summary counts journal rows for a quick health check of a run.
type Summary struct {
	Commands   int
	Responses  int
	Events     int
	Unanswered int            // commands without any response row
	Outcomes   map[string]int // responses per outcome
	LastSeq    int64
}

// Summarize reads the journal totals.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	sum := Summary{Outcomes: map[string]int{}}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM commands", &sum.Commands},
		{"SELECT COUNT(*) FROM responses", &sum.Responses},
		{"SELECT COUNT(*) FROM events", &sum.Events},
		{`SELECT COUNT(*) FROM commands c
		  WHERE NOT EXISTS (SELECT 1 FROM responses r WHERE r.key = c.key)`, &sum.Unanswered},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return sum, fmt.Errorf("summarize: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM responses
		GROUP BY outcome
		ORDER BY outcome COLLATE BINARY
	`)
	if err != nil {
		return sum, fmt.Errorf("summarize outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return sum, fmt.Errorf("scan outcome: %w", err)
		}
		sum.Outcomes[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("iterate outcomes: %w", err)
	}

	sum.LastSeq, err = s.MaxSeq(ctx)
	if err != nil {
		return sum, err
	}
	return sum, nil
}

// Unanswered returns commands that never settled, ordered by seq. After a
// crash these are the commands whose effect on the server is unknown.
func (s *Store) Unanswered(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.seq, 'command', c.key, c.method, c.path, c.query,
		       0, '', '', '', '', '', '', '', 0
		FROM commands c
		WHERE NOT EXISTS (SELECT 1 FROM responses r WHERE r.key = c.key)
		ORDER BY c.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query unanswered: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("read unanswered: %w", err)
	}
	return entries, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/arictl/internal/engine"
)

var _ engine.Journal = (*Store)(nil)

// RecordCommand journals a dispatched command.
// Uses ON CONFLICT(seq) DO NOTHING, so rewriting the same command is a no-op.
func (s *Store) RecordCommand(ctx context.Context, cmd engine.Command) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (seq, key, method, path, query)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		cmd.Seq,
		cmd.Key,
		cmd.Method,
		cmd.Path,
		cmd.Query(),
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// RecordResponse journals how a command settled. seq is the clock value
// the engine stamped when it processed the response; outcome is one of
// the observability outcome labels or engine.OutcomeUnmatched.
func (s *Store) RecordResponse(ctx context.Context, resp engine.Response, seq int64, outcome string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (seq, key, status, outcome, body, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		seq,
		resp.Key,
		resp.Status,
		outcome,
		canonicalText(resp.Body),
		errorText(resp.Err),
	)
	if err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

// RecordEvent journals an inbound event and the number of handlers that
// received it.
func (s *Store) RecordEvent(ctx context.Context, ev engine.Event, handlers int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (seq, type, resource_type, resource_id, payload, handlers)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		ev.Seq,
		ev.Type,
		ev.ResourceType,
		ev.ResourceID,
		canonicalText(ev.Payload),
		handlers,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Entry kinds.
const (
	KindCommand  = "command"
	KindResponse = "response"
	KindEvent    = "event"
)

// Entry is one journal row of any kind. Fields that do not apply to the
// kind are zero.
type Entry struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`

	// command and response
	Key string `json:"key,omitempty"`

	// command
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Query  string `json:"query,omitempty"`

	// response
	Status  int    `json:"status,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Body    string `json:"body,omitempty"`
	Error   string `json:"error,omitempty"`

	// event
	Type         string `json:"type,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Payload      string `json:"payload,omitempty"`
	Handlers     int    `json:"handlers,omitempty"`
}

// Filter narrows Entries. The zero Filter returns the whole journal.
type Filter struct {
	Since int64  // only entries with seq > Since
	Key   string // only the command and responses with this correlation key
	Limit int    // at most Limit entries; 0 means no limit
}

// Entries returns journal rows merged across tables, ordered by seq.
//
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "seq > ?")
	args = append(args, f.Since)
	if f.Key != "" {
		where = append(where, "key = ?")
		args = append(args, f.Key)
	}

	query := `
		SELECT seq, kind, key, method, path, query, status, outcome, body, error,
		       type, resource_type, resource_id, payload, handlers
		FROM (
			SELECT seq, 'command' AS kind, key, method, path, query,
			       0 AS status, '' AS outcome, '' AS body, '' AS error,
			       '' AS type, '' AS resource_type, '' AS resource_id, '' AS payload, 0 AS handlers
			FROM commands
			UNION ALL
			SELECT seq, 'response', key, '', '', '',
			       status, outcome, body, error,
			       '', '', '', '', 0
			FROM responses
			UNION ALL
			SELECT seq, 'event', '', '', '', '',
			       0, '', '', '',
			       type, resource_type, resource_id, payload, handlers
			FROM events
		)
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC, kind COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return entries, nil
}

// EventsFor returns the events journaled for one resource, ordered by seq.
func (s *Store) EventsFor(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, 'event', '', '', '', '', 0, '', '', '',
		       type, resource_type, resource_id, payload, handlers
		FROM events
		WHERE resource_type = ? AND resource_id = ?
		ORDER BY seq ASC
	`, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return entries, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.Seq, &e.Kind, &e.Key, &e.Method, &e.Path, &e.Query,
			&e.Status, &e.Outcome, &e.Body, &e.Error,
			&e.Type, &e.ResourceType, &e.ResourceID, &e.Payload, &e.Handlers,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

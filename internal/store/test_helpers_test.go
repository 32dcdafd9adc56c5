package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/roach88/arictl/internal/engine"
)

// createTestStore creates a new journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCommand creates a command with minimal required fields.
func createTestCommand(key string, seq int64, method, path string) engine.Command {
	return engine.Command{Key: key, Seq: seq, Method: method, Path: path}
}

// seedJournal writes a create round trip, one routed event and a timeout.
func seedJournal(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	create := createTestCommand("k1", 1, "POST", "/bridges")
	create.Params = engine.NewParams().Set("type", "mixing")
	mustRecordCommand(t, s, create)
	mustRecordResponse(t, s, engine.Response{Key: "k1", Status: 200, Body: []byte(`{"name":"","id":"b-1"}`)}, 2, "ok")

	if err := s.RecordEvent(ctx, engine.Event{
		Type:         "BridgeDestroyed",
		ResourceType: engine.ResourceBridge,
		ResourceID:   "b-1",
		Payload:      []byte(`{"type":"BridgeDestroyed","bridge":{"id":"b-1"}}`),
		Seq:          3,
	}, 1); err != nil {
		t.Fatalf("RecordEvent() failed: %v", err)
	}

	mustRecordCommand(t, s, createTestCommand("k2", 4, "DELETE", "/bridges/b-1"))
	mustRecordResponse(t, s, engine.Response{Key: "k2", Err: errors.New("command timed out")}, 5, "timeout")
}

func mustRecordCommand(t *testing.T, s *Store, cmd engine.Command) {
	t.Helper()
	if err := s.RecordCommand(context.Background(), cmd); err != nil {
		t.Fatalf("RecordCommand() failed: %v", err)
	}
}

func mustRecordResponse(t *testing.T, s *Store, resp engine.Response, seq int64, outcome string) {
	t.Helper()
	if err := s.RecordResponse(context.Background(), resp, seq, outcome); err != nil {
		t.Fatalf("RecordResponse() failed: %v", err)
	}
}

package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arictl/internal/store"
)

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestTraceDatabaseNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.db")
	out, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
	assert.NoFileExists(t, missing)
}

func TestTraceText(t *testing.T) {
	db := seedJournal(t)

	out, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "[1] CMD  POST /bridges?type=mixing  key=cmd-1")
	assert.Contains(t, out, "[2] RESP 200 ok  key=cmd-1")
	assert.Contains(t, out, "[3] EVT  BridgeDestroyed bridge/b-1  handlers=1")
	assert.Contains(t, out, "[4] CMD  DELETE /bridges/b-1  key=cmd-2")
	assert.NotContains(t, out, "Body:", "bodies only in verbose mode")

	assert.Contains(t, out, "Commands:   2")
	assert.Contains(t, out, "Unanswered: 1")
	assert.Contains(t, out, "Outcomes:   ok=1")
}

func TestTraceTextVerbose(t *testing.T) {
	db := seedJournal(t)

	out, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text", Verbose: true}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `Body: {"id":"b-1"}`)
	assert.Contains(t, out, `Payload: {"bridge":{"id":"b-1"},"type":"BridgeDestroyed"}`)
}

func TestTraceJSON(t *testing.T) {
	db := seedJournal(t)

	out, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Timeline, 4)
	assert.Equal(t, store.KindEvent, resp.Data.Timeline[2].Kind)
	assert.Equal(t, "b-1", resp.Data.Timeline[2].ResourceID)
	assert.Equal(t, 2, resp.Data.Stats.Commands)
	assert.Equal(t, 1, resp.Data.Stats.Responses)
	assert.Equal(t, 1, resp.Data.Stats.Events)
	assert.Equal(t, int64(4), resp.Data.Stats.LastSeq)
}

func TestTraceFilters(t *testing.T) {
	db := seedJournal(t)

	tests := []struct {
		name     string
		args     []string
		wantSeqs []int64
	}{
		{"key", []string{"--key", "cmd-1"}, []int64{1, 2}},
		{"since", []string{"--since", "2"}, []int64{3, 4}},
		{"limit", []string{"--limit", "3"}, []int64{1, 2, 3}},
		{"unanswered", []string{"--unanswered"}, []int64{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db}, tt.args...)
			out, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "json"}), args...)
			require.NoError(t, err)

			var resp struct {
				Data TraceResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))

			seqs := make([]int64, 0, len(resp.Data.Timeline))
			for _, e := range resp.Data.Timeline {
				seqs = append(seqs, e.Seq)
			}
			assert.Equal(t, tt.wantSeqs, seqs)
		})
	}
}

func TestTraceEmptyJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "(no entries)")

	out, err = executeCommand(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"timeline": []`)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "cmd-1", truncateID("cmd-1"))
	assert.Equal(t, "0190a7c2...c3d4e5f6", truncateID("0190a7c2-1b2c-7d3e-8f90-a1b2c3d4e5f6"))
}

func TestFormatOutcomes(t *testing.T) {
	assert.Equal(t, "ok=3 remote=1 timeout=2", formatOutcomes(map[string]int{"timeout": 2, "ok": 3, "remote": 1}))
}

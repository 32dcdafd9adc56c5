package cli

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arictl/internal/store"
)

func TestBridgeCreate(t *testing.T) {
	fs := newFakeServer(t)
	fs.reply("POST", "/bridges", http.StatusOK, `{"id":"b-42","bridge_type":"mixing"}`)
	path := writeConfig(t, fs.URL, "")

	out, err := executeRoot(t, "bridge", "create", "--config", path, "--name", "lobby")
	require.NoError(t, err)
	assert.Equal(t, "✓ created bridge b-42\n", out)

	// Created bridges are kept: nothing but the create is sent.
	assert.Equal(t, []string{"POST /bridges?type=mixing&name=lobby"}, fs.Requests())
}

func TestBridgeCreate_MalformedResponse(t *testing.T) {
	fs := newFakeServer(t)
	fs.reply("POST", "/bridges", http.StatusOK, `{"bridge_type":"mixing"}`)
	path := writeConfig(t, fs.URL, "")

	out, err := executeRoot(t, "--format", "json", "bridge", "create", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMalformed, resp.Error.Code)
}

func TestBridgeOps_WireFormat(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "destroy",
			args: []string{"destroy", "b-1"},
			want: "DELETE /bridges/b-1",
		},
		{
			name: "add_single_with_role",
			args: []string{"add", "b-1", "c-1", "--role", "announce"},
			want: "POST /bridges/b-1/addChannel?channel=c-1&role=announce",
		},
		{
			name: "add_default_role",
			args: []string{"add", "b-1", "c-1"},
			want: "POST /bridges/b-1/addChannel?channel=c-1&role=participant",
		},
		{
			name: "add_many",
			args: []string{"add", "b-1", "c-2", "c-3"},
			want: "POST /bridges/b-1/addChannel?channel=c-2%2Cc-3",
		},
		{
			name: "remove",
			args: []string{"remove", "b-1", "c-1"},
			want: "POST /bridges/b-1/removeChannel?channel=c-1",
		},
		{
			name: "play",
			args: []string{"play", "b-1", "sound:hello", "--lang", "en", "--offset", "0"},
			want: "POST /bridges/b-1/play?media=sound%3Ahello&lang=en&offsetms=0",
		},
		{
			name: "record",
			args: []string{"record", "b-1", "rec1", "--terminate-on", "#", "--beep", "--max-duration", "30"},
			want: "POST /bridges/b-1/record?name=rec1&format=wav&terminateOn=%23&beep=true&maxDurationSeconds=30",
		},
		{
			name: "moh_start_with_class",
			args: []string{"moh-start", "b-1", "--class", "jazz"},
			want: "POST /bridges/b-1/moh?mohClass=jazz",
		},
		{
			name: "moh_start_default_class",
			args: []string{"moh-start", "b-1"},
			want: "POST /bridges/b-1/moh",
		},
		{
			name: "moh_stop",
			args: []string{"moh-stop", "b-1"},
			want: "DELETE /bridges/b-1/moh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t)
			path := writeConfig(t, fs.URL, "")

			args := append([]string{"bridge"}, tt.args...)
			args = append(args, "--config", path)
			_, err := executeRoot(t, args...)
			require.NoError(t, err)

			// Borrowed bridges are detached, never deleted on exit.
			assert.Equal(t, []string{tt.want}, fs.Requests())
		})
	}
}

func TestBridgeOp_JSONResult(t *testing.T) {
	fs := newFakeServer(t)
	fs.reply("POST", "/bridges/b-1/play", http.StatusCreated, `{"id":"pb-1","state":"queued"}`)
	path := writeConfig(t, fs.URL, "")

	out, err := executeRoot(t, "--format", "json", "bridge", "play", "b-1", "sound:beep", "--config", path)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CommandResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "b-1", resp.Data.Bridge)
	assert.Equal(t, "play", resp.Data.Op)
	assert.Equal(t, http.StatusCreated, resp.Data.Status)
	assert.JSONEq(t, `{"id":"pb-1","state":"queued"}`, string(resp.Data.Body))
}

func TestBridgeOp_RemoteError(t *testing.T) {
	fs := newFakeServer(t)
	fs.reply("DELETE", "/bridges/b-404", http.StatusNotFound, `{"message":"Bridge not found"}`)
	path := writeConfig(t, fs.URL, "")

	out, err := executeRoot(t, "bridge", "destroy", "b-404", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E102]")
	assert.Contains(t, out, "status=404")
}

func TestBridgeOp_InvalidArguments(t *testing.T) {
	fs := newFakeServer(t)
	path := writeConfig(t, fs.URL, "")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown_role", []string{"add", "b-1", "c-1", "--role", "listener"}},
		{"role_with_many_channels", []string{"add", "b-1", "c-1", "c-2", "--role", "announce"}},
		{"unknown_terminate_on", []string{"record", "b-1", "rec", "--terminate-on", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"bridge"}, tt.args...)
			args = append(args, "--config", path)
			_, err := executeRoot(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
	assert.Empty(t, fs.Requests())
}

func TestBridgeOp_MissingArgs(t *testing.T) {
	_, err := executeRoot(t, "bridge", "remove", "b-1")
	require.Error(t, err)
}

func TestBridgeOp_JournalsTraffic(t *testing.T) {
	fs := newFakeServer(t)
	journal := filepath.Join(t.TempDir(), "journal.db")
	path := writeConfig(t, fs.URL, "journal: "+journal+"\n")

	_, err := executeRoot(t, "bridge", "moh-stop", "b-1", "--config", path)
	require.NoError(t, err)
	_, err = executeRoot(t, "bridge", "destroy", "b-1", "--config", path)
	require.NoError(t, err)

	st, err := store.Open(journal)
	require.NoError(t, err)
	defer st.Close()

	entries, err := st.Entries(t.Context(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// The second run resumes the clock after the first.
	assert.Equal(t, []int64{1, 2, 3, 4}, []int64{entries[0].Seq, entries[1].Seq, entries[2].Seq, entries[3].Seq})
	assert.Equal(t, store.KindCommand, entries[0].Kind)
	assert.Equal(t, "/bridges/b-1/moh", entries[0].Path)
	assert.Equal(t, store.KindResponse, entries[1].Kind)
	assert.Equal(t, "ok", entries[1].Outcome)
	assert.Equal(t, "DELETE", entries[2].Method)
	assert.Equal(t, "/bridges/b-1", entries[2].Path)
	assert.Equal(t, http.StatusNoContent, entries[3].Status)
}

func TestBridgeOp_UnreachableServer(t *testing.T) {
	fs := newFakeServer(t)
	url := fs.URL
	fs.Close()
	path := writeConfig(t, url, "")

	out, err := executeRoot(t, "bridge", "moh-stop", "b-1", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E101]")
}

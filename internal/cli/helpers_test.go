package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arictl/internal/config"
	"github.com/roach88/arictl/internal/engine"
	"github.com/roach88/arictl/internal/store"
)

// fakeServer is a REST endpoint that records requests and answers from a
// route table keyed by "METHOD path".
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string // "METHOD path?query"
	routes   map[string]fakeReply
}

type fakeReply struct {
	status int
	body   string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{routes: map[string]fakeReply{}}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		fs.mu.Lock()
		fs.requests = append(fs.requests, r.Method+" "+target)
		reply, ok := fs.routes[r.Method+" "+r.URL.Path]
		fs.mu.Unlock()

		if !ok {
			reply = fakeReply{status: http.StatusNoContent}
		}
		if reply.body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(reply.status)
		_, _ = fmt.Fprint(w, reply.body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) reply(method, path string, status int, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.routes[method+" "+path] = fakeReply{status: status, body: body}
}

func (fs *fakeServer) Requests() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.requests...)
}

// clearEnv neutralizes config environment overrides for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvURL, config.EnvUsername, config.EnvPassword, config.EnvApplication} {
		t.Setenv(key, "")
	}
}

// writeConfig writes a config file pointing at url and returns its path.
// extra is appended verbatim.
func writeConfig(t *testing.T, url, extra string) string {
	t.Helper()
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "arictl.yaml")
	content := fmt.Sprintf("url: %s\napplication: test-app\ncommand_timeout: 5s\n%s", url, extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// executeRoot runs the full command tree with args and returns stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

// seedJournal writes a small journal: a create answered ok, an event, and
// a destroy that never got an answer.
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	create := engine.Command{
		Key:    "cmd-1",
		Seq:    1,
		Method: "POST",
		Path:   "/bridges",
		Params: engine.NewParams().Set("type", "mixing"),
	}
	require.NoError(t, st.RecordCommand(ctx, create))
	require.NoError(t, st.RecordResponse(ctx, engine.Response{
		Key:    "cmd-1",
		Status: 200,
		Body:   []byte(`{"id":"b-1"}`),
	}, 2, "ok"))
	require.NoError(t, st.RecordEvent(ctx, engine.Event{
		Seq:          3,
		Type:         engine.EventBridgeDestroyed,
		ResourceType: engine.ResourceBridge,
		ResourceID:   "b-1",
		Payload:      json.RawMessage(`{"type":"BridgeDestroyed","bridge":{"id":"b-1"}}`),
	}, 1))
	require.NoError(t, st.RecordCommand(ctx, engine.Command{
		Key:    "cmd-2",
		Seq:    4,
		Method: "DELETE",
		Path:   "/bridges/b-1",
	}))
	return path
}

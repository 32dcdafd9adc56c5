package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMissingConfig(t *testing.T) {
	clearEnv(t)
	out, err := executeRoot(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestRunInvalidConfig(t *testing.T) {
	path := writeConfig(t, "ftp://example.com", "")

	out, err := executeRoot(t, "--format", "json", "run", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestRunRejectsArgs(t *testing.T) {
	_, err := executeRoot(t, "run", "extra")
	require.Error(t, err)
}

// eventServer accepts event feed connections, sends one event and then
// holds the connection until the client goes away.
func eventServer(t *testing.T, event string) (*httptest.Server, <-chan string) {
	t.Helper()
	connected := make(chan string, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		connected <- r.URL.Query().Get("app")

		_ = ws.WriteMessage(websocket.TextMessage, []byte(event))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, connected
}

func TestRunEngine_FeedJournalAndMetrics(t *testing.T) {
	srv, connected := eventServer(t, `{"type":"BridgeDestroyed","bridge":{"id":"b-run"}}`)
	journal := filepath.Join(t.TempDir(), "journal.db")
	path := writeConfig(t, srv.URL, "journal: "+journal+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsAddr := make(chan string, 1)
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		ConfigPath:  path,
		MetricsAddr: "127.0.0.1:0",
		ready:       func(addr string) { metricsAddr <- addr },
	}

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- runEngine(opts, cmd) }()

	var addr string
	select {
	case addr = <-metricsAddr:
	case err := <-done:
		t.Fatalf("run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not start")
	}

	select {
	case app := <-connected:
		assert.Equal(t, "test-app", app)
	case <-time.After(5 * time.Second):
		t.Fatal("event feed did not connect")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `arictl_engine_events_total{routed="false",type="BridgeDestroyed"}`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}

	assert.Contains(t, out.String(), "Engine started")
	_, err := os.Stat(journal)
	assert.NoError(t, err, "journal database should exist")
}

func TestServeMetrics(t *testing.T) {
	srv, addr, err := serveMetrics("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "arictl_engine_pending_commands")
}

func TestServeMetrics_ListenError(t *testing.T) {
	_, _, err := serveMetrics("not-an-address")
	require.Error(t, err)
}

package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arictl/internal/engine"
)

func waitReply(t *testing.T, ch <-chan engine.Response) engine.Response {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return engine.Response{}
	}
}

func TestHTTP_SendsCommand(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"id":"b-1"}`)
	}))
	defer srv.Close()

	h, err := NewHTTP(HTTPConfig{BaseURL: srv.URL + "/ari/", Username: "asterisk", Password: "secret"})
	require.NoError(t, err)
	defer h.Close()

	replies := make(chan engine.Response, 1)
	cmd := engine.Command{
		Key:    "k1",
		Method: "POST",
		Path:   "/bridges/b-1/play",
		Params: engine.NewParams().String("media", "sound:hello").Int("offsetms", 50),
	}
	require.NoError(t, h.Send(cmd, func(r engine.Response) { replies <- r }))

	resp := waitReply(t, replies)
	require.NoError(t, resp.Err)
	assert.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"id":"b-1"}`, string(resp.Body))

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "/ari/bridges/b-1/play", gotPath)
	assert.Equal(t, "media=sound%3Ahello&offsetms=50", gotQuery)
	assert.Equal(t, "asterisk", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestHTTP_NonSuccessStatusIsAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Bridge not found"}`)
	}))
	defer srv.Close()

	h, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	defer h.Close()

	replies := make(chan engine.Response, 1)
	require.NoError(t, h.Send(engine.Command{Method: "DELETE", Path: "/bridges/nope"}, func(r engine.Response) { replies <- r }))

	resp := waitReply(t, replies)
	require.NoError(t, resp.Err)
	assert.Equal(t, 404, resp.Status)
}

func TestHTTP_ConnectionErrorReachesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	h, err := NewHTTP(HTTPConfig{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)
	defer h.Close()

	replies := make(chan engine.Response, 1)
	require.NoError(t, h.Send(engine.Command{Method: "POST", Path: "/bridges"}, func(r engine.Response) { replies <- r }))

	resp := waitReply(t, replies)
	assert.Error(t, resp.Err)
}

func TestHTTP_SendAfterClose(t *testing.T) {
	h, err := NewHTTP(HTTPConfig{BaseURL: "http://localhost:8088/ari"})
	require.NoError(t, err)
	h.Close()

	err = h.Send(engine.Command{Method: "POST", Path: "/bridges"}, func(engine.Response) {
		t.Fatal("reply must not run")
	})
	assert.ErrorIs(t, err, ErrClosed)
	h.Close()
}

func TestHTTP_CloseWaitsForAcceptedSends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	for i := 0; i < 20; i++ {
		h, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		var accepted, replied atomic.Int32
		var wg sync.WaitGroup
		for j := 0; j < 16; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := h.Send(engine.Command{Method: "DELETE", Path: "/bridges/b-1"}, func(engine.Response) {
					replied.Add(1)
				})
				if err == nil {
					accepted.Add(1)
				} else {
					assert.ErrorIs(t, err, ErrClosed)
				}
			}()
		}
		h.Close()
		closedAt := replied.Load()
		wg.Wait()

		// Sends racing Close are either refused or answered before Close returns.
		assert.Equal(t, accepted.Load(), replied.Load())
		assert.Equal(t, closedAt, replied.Load(), "no reply after Close returned")
	}
}

func TestNewHTTP_RejectsBadURL(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestHTTP_URL(t *testing.T) {
	h, err := NewHTTP(HTTPConfig{BaseURL: "https://pbx.example.com/ari"})
	require.NoError(t, err)
	defer h.Close()

	cmd := engine.Command{Method: "POST", Path: "/bridges/b-1/moh", Params: engine.NewParams().String("mohClass", "jazz")}
	assert.Equal(t, "https://pbx.example.com/ari/bridges/b-1/moh?mohClass=jazz", h.URL(cmd))
}

func TestHTTP_WithEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	defer h.Close()

	e := engine.New(h)
	r := e.Send("DELETE", "/bridges/b-1", nil)
	require.Eventually(t, func() bool {
		e.Drain()
		_, _, done := r.Outcome()
		return done
	}, 2*time.Second, 5*time.Millisecond)

	resp, err, _ := r.Outcome()
	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)
}

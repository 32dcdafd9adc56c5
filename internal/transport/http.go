package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/roach88/arictl/internal/engine"
)

// maxBodyBytes caps how much of a response body is kept.
const maxBodyBytes = 1 << 20

// HTTPConfig configures the REST command transport.
type HTTPConfig struct {
	BaseURL  string // e.g. "http://localhost:8088/ari"
	Username string
	Password string
	Timeout  time.Duration // per request; zero means none
	Client   *http.Client  // optional, replaces the default client
}

// HTTP is an engine.Transport that performs each command as one REST call
// on its own goroutine.
//
// Thread-safety: Send and Close are safe for concurrent use.
type HTTP struct {
	base     *url.URL
	username string
	password string
	client   *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards closed and wg.Add against Close
	closed bool
	wg     sync.WaitGroup
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("http transport closed")

// NewHTTP validates cfg and returns a transport.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTP{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// URL returns the absolute URL a command is sent to.
func (h *HTTP) URL(cmd engine.Command) string {
	u := *h.base
	u.Path = strings.TrimRight(h.base.Path, "/") + cmd.Path
	u.RawPath = ""
	u.RawQuery = cmd.Query()
	return u.String()
}

// Send implements engine.Transport. It fails only if the request cannot be
// built or the transport is closed; network errors reach reply.
func (h *HTTP) Send(cmd engine.Command, reply func(engine.Response)) error {
	req, err := http.NewRequestWithContext(h.ctx, cmd.Method, h.URL(cmd), nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", cmd, err)
	}
	if h.username != "" {
		req.SetBasicAuth(h.username, h.password)
	}
	req.Header.Set("Accept", "application/json")

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		reply(h.do(req))
	}()
	return nil
}

func (h *HTTP) do(req *http.Request) engine.Response {
	resp, err := h.client.Do(req)
	if err != nil {
		return engine.Response{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return engine.Response{Err: fmt.Errorf("read response body: %w", err)}
	}
	slog.Debug("http command answered",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(body),
	)
	return engine.Response{Status: resp.StatusCode, Body: body}
}

// Close cancels in-flight requests and waits for their replies. Sends
// after Close fail with ErrClosed.
func (h *HTTP) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

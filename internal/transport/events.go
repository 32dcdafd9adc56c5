package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/roach88/arictl/internal/engine"
	"github.com/roach88/arictl/internal/observability"
)

// Publisher receives decoded events. *engine.Engine implements it.
type Publisher interface {
	Publish(ev engine.Event) bool
}

// Backoff is the reconnect schedule of the event feed. Delays grow from
// Initial by Multiplier up to Max; Jitter is the randomization factor
// applied to each delay.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultBackoff starts at half a second and caps at thirty.
var DefaultBackoff = Backoff{Initial: 500 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2, Jitter: 0.5}

// exponential builds the retry policy. It never gives up on its own; the
// feed stops retrying only when its context ends.
func (b Backoff) exponential() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.Initial
	bo.MaxInterval = b.Max
	bo.Multiplier = b.Multiplier
	bo.RandomizationFactor = b.Jitter
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// FeedConfig configures the websocket event feed.
type FeedConfig struct {
	URL         string // e.g. "ws://localhost:8088/ari/events"
	Application string
	Username    string
	Password    string
	ReadTimeout time.Duration // zero disables the read deadline
	Backoff     Backoff
	Dialer      *websocket.Dialer
}

// EventFeed reads server events from a websocket and publishes them.
type EventFeed struct {
	cfg    FeedConfig
	target string
	pub    Publisher
}

// NewEventFeed validates cfg and builds the subscription URL.
func NewEventFeed(cfg FeedConfig, pub Publisher) (*EventFeed, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse event url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("event url %q: scheme must be ws or wss", cfg.URL)
	}
	if cfg.Application == "" {
		return nil, errors.New("event feed: application name is required")
	}
	q := u.Query()
	q.Set("app", cfg.Application)
	u.RawQuery = q.Encode()

	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4 * 1024,
			WriteBufferSize:  4 * 1024,
		}
	}
	return &EventFeed{cfg: cfg, target: u.String(), pub: pub}, nil
}

// Target returns the URL the feed dials.
func (f *EventFeed) Target() string {
	return f.target
}

// Run connects and publishes events until ctx is done, reconnecting with
// backoff whenever the connection fails or drops. It always returns
// ctx.Err().
func (f *EventFeed) Run(ctx context.Context) error {
	bo := f.cfg.Backoff.exponential()
	retry := backoff.WithContext(bo, ctx)
	for {
		connected, err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			retry.Reset()
		}
		delay := retry.NextBackOff()
		if delay == backoff.Stop {
			return ctx.Err()
		}
		slog.Warn("event feed disconnected",
			"url", f.target,
			"error", err,
			"retry_in", delay,
		)
		observability.RecordFeedReconnect()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection. connected reports whether the handshake
// succeeded, which resets the backoff.
func (f *EventFeed) session(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if f.cfg.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(f.cfg.Username + ":" + f.cfg.Password))
		header.Set("Authorization", "Basic "+creds)
	}

	ws, resp, err := f.cfg.Dialer.DialContext(ctx, f.target, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: %w (status %d)", f.target, err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial %s: %w", f.target, err)
	}
	defer ws.Close()

	slog.Info("event feed connected", "url", f.target)
	observability.SetFeedConnected(true)
	defer observability.SetFeedConnected(false)

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = ws.SetReadDeadline(time.Now())
	})
	defer stop()

	ws.SetPingHandler(func(data string) error {
		f.extendDeadline(ws)
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		f.extendDeadline(ws)
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		ev, err := DecodeEvent(message)
		if err != nil {
			slog.Warn("undecodable event dropped", "error", err, "bytes", len(message))
			continue
		}
		if !f.pub.Publish(ev) {
			return true, engine.ErrClosed
		}
	}
}

func (f *EventFeed) extendDeadline(ws *websocket.Conn) {
	if f.cfg.ReadTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
	}
}

// wireEvent is the subset of a server event needed for routing.
type wireEvent struct {
	Type      string     `json:"type"`
	Bridge    *wireIdent `json:"bridge"`
	Channel   *wireIdent `json:"channel"`
	Playback  *wireIdent `json:"playback"`
	Recording *wireIdent `json:"recording"`
}

type wireIdent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DecodeEvent parses one event message and derives the resource it is
// about from its type. Events about no known resource keep empty
// ResourceType and ResourceID and are dropped by the router.
func DecodeEvent(data []byte) (engine.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return engine.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if w.Type == "" {
		return engine.Event{}, errors.New("decode event: missing type")
	}

	ev := engine.Event{Type: w.Type, Payload: json.RawMessage(data)}
	switch {
	case strings.HasPrefix(w.Type, "Bridge"):
		ev.ResourceType, ev.ResourceID = engine.ResourceBridge, w.Bridge.id()
	case strings.HasPrefix(w.Type, "Channel"), strings.HasPrefix(w.Type, "Stasis"):
		ev.ResourceType, ev.ResourceID = engine.ResourceChannel, w.Channel.id()
	case strings.HasPrefix(w.Type, "Playback"):
		ev.ResourceType, ev.ResourceID = engine.ResourcePlayback, w.Playback.id()
	case strings.HasPrefix(w.Type, "Recording"):
		// Recordings are addressed by name.
		ev.ResourceType = engine.ResourceRecording
		if w.Recording != nil {
			ev.ResourceID = w.Recording.Name
		}
	}
	if ev.ResourceType != "" && ev.ResourceID == "" {
		return engine.Event{}, fmt.Errorf("decode event %s: missing %s identifier", w.Type, ev.ResourceType)
	}
	return ev, nil
}

func (w *wireIdent) id() string {
	if w == nil {
		return ""
	}
	return w.ID
}

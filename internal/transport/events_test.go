package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arictl/internal/engine"
)

type collectingPublisher struct {
	mu     sync.Mutex
	events []engine.Event
}

func (p *collectingPublisher) Publish(ev engine.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *collectingPublisher) snapshot() []engine.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]engine.Event, len(p.events))
	copy(out, p.events)
	return out
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		resourceType string
		resourceID   string
	}{
		{"bridge destroyed", `{"type":"BridgeDestroyed","bridge":{"id":"b-1"}}`, engine.ResourceBridge, "b-1"},
		{"channel destroyed", `{"type":"ChannelDestroyed","channel":{"id":"c-1"},"cause":16}`, engine.ResourceChannel, "c-1"},
		{"stasis end", `{"type":"StasisEnd","channel":{"id":"c-2"}}`, engine.ResourceChannel, "c-2"},
		{"playback", `{"type":"PlaybackFinished","playback":{"id":"p-1"}}`, engine.ResourcePlayback, "p-1"},
		{"recording by name", `{"type":"RecordingFinished","recording":{"name":"rec-1"}}`, engine.ResourceRecording, "rec-1"},
		{"unmodelled", `{"type":"DeviceStateChanged","device_state":{"name":"x"}}`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.resourceType, ev.ResourceType)
			assert.Equal(t, tt.resourceID, ev.ResourceID)
			assert.JSONEq(t, tt.raw, string(ev.Payload))
		})
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"bridge":{"id":"b-1"}}`,
		`{"type":"BridgeDestroyed"}`,
	} {
		_, err := DecodeEvent([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestBackoff_Schedule(t *testing.T) {
	bo := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 3}.exponential()
	assert.Equal(t, 100*time.Millisecond, bo.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, bo.NextBackOff())
	assert.Equal(t, 900*time.Millisecond, bo.NextBackOff())
	assert.Equal(t, time.Second, bo.NextBackOff())
	assert.Equal(t, time.Second, bo.NextBackOff(), "never gives up")

	bo.Reset()
	assert.Equal(t, 100*time.Millisecond, bo.NextBackOff())
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	bo := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2, Jitter: 0.5}.exponential()
	d := bo.NextBackOff()
	assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	assert.LessOrEqual(t, d, 150*time.Millisecond)
}

func TestBackoff_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	retry := backoff.WithContext(DefaultBackoff.exponential(), ctx)
	assert.NotEqual(t, backoff.Stop, retry.NextBackOff())
	cancel()
	assert.Equal(t, backoff.Stop, retry.NextBackOff())
}

func TestNewEventFeed_Validation(t *testing.T) {
	_, err := NewEventFeed(FeedConfig{URL: "http://x/events", Application: "app"}, &collectingPublisher{})
	assert.Error(t, err)
	_, err = NewEventFeed(FeedConfig{URL: "ws://x/events"}, &collectingPublisher{})
	assert.Error(t, err)

	f, err := NewEventFeed(FeedConfig{URL: "ws://x/ari/events", Application: "conf"}, &collectingPublisher{})
	require.NoError(t, err)
	assert.Equal(t, "ws://x/ari/events?app=conf", f.Target())
}

func TestEventFeed_PublishesAndReconnects(t *testing.T) {
	var mu sync.Mutex
	connections := 0
	var gotApp, gotUser string

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		connections++
		n := connections
		gotApp = r.URL.Query().Get("app")
		gotUser, _, _ = r.BasicAuth()
		mu.Unlock()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if n == 1 {
			_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"BridgeDestroyed","bridge":{"id":"b-1"}}`))
			_ = ws.WriteMessage(websocket.TextMessage, []byte(`garbage`))
			return // drop the connection to force a reconnect
		}
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ChannelDestroyed","channel":{"id":"c-1"}}`))
		// Hold the connection until the client goes away.
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	pub := &collectingPublisher{}
	feed, err := NewEventFeed(FeedConfig{
		URL:         wsURL(srv.URL) + "/ari/events",
		Application: "conf",
		Username:    "asterisk",
		Password:    "secret",
		Backoff:     Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2},
	}, pub)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, 3*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}

	events := pub.snapshot()
	assert.Equal(t, engine.EventBridgeDestroyed, events[0].Type)
	assert.Equal(t, "b-1", events[0].ResourceID)
	assert.Equal(t, engine.EventChannelDestroyed, events[1].Type)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, connections, 2)
	assert.Equal(t, "conf", gotApp)
	assert.Equal(t, "asterisk", gotUser)
}

package resource

import (
	"sync/atomic"

	"github.com/roach88/arictl/internal/deferred"
	"github.com/roach88/arictl/internal/engine"
)

const channelCollection = "channels"

// Channel is a handle to a call leg.
//
// Unlike a Bridge, a Channel handle does not own the call: Close and
// garbage collection only detach the handle. Hangup is the explicit
// destroy trigger and the ChannelDestroyed event the remote one.
type Channel struct {
	life atomic.Pointer[lifecycle]
}

// WrapChannel returns a handle for an existing channel. Wrapping a channel
// that another live handle holds returns a Dead handle.
func WrapChannel(d engine.Dispatcher, id string) *Channel {
	c := &Channel{}
	l, _ := newLifecycle(d, engine.ResourceChannel, channelCollection, id, engine.EventChannelDestroyed)
	c.life.Store(l)
	return c
}

// ID returns the channel identifier, or "" for a moved-from handle.
func (c *Channel) ID() string {
	if l := c.life.Load(); l != nil {
		return l.id
	}
	return ""
}

// State returns the handle's lifecycle state.
func (c *Channel) State() State {
	if l := c.life.Load(); l != nil {
		return l.State()
	}
	return Dead
}

func (c *Channel) send(method, suffix string, params *engine.Params) *deferred.Result[engine.Response] {
	l := c.life.Load()
	if l == nil {
		return engine.NoOp()
	}
	return l.send(method, suffix, params)
}

// Answer answers the channel.
func (c *Channel) Answer() *deferred.Result[engine.Response] {
	return c.send("POST", "/answer", nil)
}

// Ring indicates ringing to the caller.
func (c *Channel) Ring() *deferred.Result[engine.Response] {
	return c.send("POST", "/ring", nil)
}

// Play starts playing media to the channel.
func (c *Channel) Play(media string, opts ...PlayOption) *deferred.Result[engine.Response] {
	return c.send("POST", "/play", playParams(media, opts))
}

// Hangup deletes the channel. reason is omitted when empty (e.g. "normal",
// "busy", "congestion").
func (c *Channel) Hangup(reason string) *deferred.Result[engine.Response] {
	l := c.life.Load()
	if l == nil {
		return engine.NoOp()
	}
	return l.destroy(engine.NewParams().String("reason", reason), "hangup")
}

// Close detaches the handle from the channel without hanging up.
func (c *Channel) Close() {
	if l := c.life.Load(); l != nil {
		l.release()
	}
}

// Move transfers the handle to a new Channel and leaves c Dead.
func (c *Channel) Move() *Channel {
	next := &Channel{}
	if l := c.life.Swap(nil); l != nil {
		next.life.Store(l)
	}
	return next
}

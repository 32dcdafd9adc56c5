package resource

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/roach88/arictl/internal/deferred"
	"github.com/roach88/arictl/internal/engine"
)

const bridgeCollection = "bridges"

// ErrDuplicateHandle reports a resource that already has a live handle.
var ErrDuplicateHandle = errors.New("resource already has a live handle")

// Bridge is a handle to a server-side bridge.
//
// A Bridge owns its bridge: Destroy, Close and the handle becoming
// unreachable all delete it on the server, unless the server reported it
// destroyed first. Move transfers ownership to a new handle.
//
// Thread-safety: all methods are safe for concurrent use.
type Bridge struct {
	life atomic.Pointer[lifecycle]

	mu      sync.Mutex // guards cleanup
	cleanup runtime.Cleanup
}

func newBridge(l *lifecycle) *Bridge {
	b := &Bridge{}
	if l == nil {
		return b
	}
	b.life.Store(l)
	b.cleanup = teardownOnCollect(b, l)
	return b
}

// WrapBridge returns a handle owning an existing bridge. A bridge has at
// most one live handle per dispatcher: wrapping an id that another live
// handle holds returns a Dead handle.
func WrapBridge(d engine.Dispatcher, id string) *Bridge {
	l, _ := newBridgeLifecycle(d, id)
	return newBridge(l)
}

func newBridgeLifecycle(d engine.Dispatcher, id string) (*lifecycle, bool) {
	return newLifecycle(d, engine.ResourceBridge, bridgeCollection, id, engine.EventBridgeDestroyed)
}

// CreateBridge creates a bridge on the server. The result carries the new
// handle once the server answers; a success response without an "id"
// field fails with a MALFORMED_RESPONSE error, and an id that already has
// a live handle fails with ErrDuplicateHandle.
func CreateBridge(d engine.Dispatcher, opts ...CreateOption) *deferred.Result[*Bridge] {
	s := createSettings{bridgeType: "mixing"}
	for _, opt := range opts {
		opt(&s)
	}
	params := s.params()
	cmd := engine.Command{Method: "POST", Path: "/" + bridgeCollection, Params: params}

	return deferred.Then(d.Send(cmd.Method, cmd.Path, params), func(resp engine.Response) (*Bridge, error) {
		id, ok := resp.Field("id")
		if !ok || id == "" {
			return nil, engine.NewMalformedResponse(cmd, "create response has no bridge id")
		}
		l, ok := newBridgeLifecycle(d, id)
		if !ok {
			return nil, fmt.Errorf("bridge %s: %w", id, ErrDuplicateHandle)
		}
		return newBridge(l), nil
	})
}

func (b *Bridge) current() *lifecycle {
	return b.life.Load()
}

// ID returns the bridge identifier, or "" for a moved-from handle.
func (b *Bridge) ID() string {
	if l := b.current(); l != nil {
		return l.id
	}
	return ""
}

// State returns the handle's lifecycle state. A moved-from handle is Dead.
func (b *Bridge) State() State {
	if l := b.current(); l != nil {
		return l.State()
	}
	return Dead
}

func (b *Bridge) send(method, suffix string, params *engine.Params) *deferred.Result[engine.Response] {
	l := b.current()
	if l == nil {
		return engine.NoOp()
	}
	return l.send(method, suffix, params)
}

// Add puts a channel into the bridge with the given role.
func (b *Bridge) Add(channelID string, role Role) *deferred.Result[engine.Response] {
	return b.send("POST", "/addChannel", engine.NewParams().
		Set("channel", channelID).
		Set("role", role.String()))
}

// AddChannels puts several channels into the bridge in one command.
// Empty identifiers are skipped; with none left nothing is sent.
func (b *Bridge) AddChannels(channelIDs ...string) *deferred.Result[engine.Response] {
	ids := lo.Compact(channelIDs)
	if len(ids) == 0 {
		return engine.NoOp()
	}
	return b.send("POST", "/addChannel", engine.NewParams().Set("channel", strings.Join(ids, ",")))
}

// Remove takes a channel out of the bridge.
func (b *Bridge) Remove(channelID string) *deferred.Result[engine.Response] {
	return b.send("POST", "/removeChannel", engine.NewParams().Set("channel", channelID))
}

// StartMusicOnHold plays music on hold to the bridge. An empty class uses
// the server default.
func (b *Bridge) StartMusicOnHold(mohClass string) *deferred.Result[engine.Response] {
	return b.send("POST", "/moh", engine.NewParams().String("mohClass", mohClass))
}

// StopMusicOnHold stops music on hold.
func (b *Bridge) StopMusicOnHold() *deferred.Result[engine.Response] {
	return b.send("DELETE", "/moh", nil)
}

// Play starts playing media to every channel in the bridge.
func (b *Bridge) Play(media string, opts ...PlayOption) *deferred.Result[engine.Response] {
	return b.send("POST", "/play", playParams(media, opts))
}

// Record starts recording the bridge's mixed audio.
func (b *Bridge) Record(name, format string, opts ...RecordOption) *deferred.Result[engine.Response] {
	return b.send("POST", "/record", recordParams(name, format, opts))
}

// Destroy deletes the bridge. Only the first destroy trigger sends DELETE;
// later calls, and calls after the server destroyed the bridge, return an
// already-succeeded empty result.
func (b *Bridge) Destroy() *deferred.Result[engine.Response] {
	l := b.current()
	if l == nil {
		return engine.NoOp()
	}
	return l.destroy(nil, "destroy")
}

// Close is handle teardown: it deletes the bridge if it is still Alive and
// detaches the handle from garbage-collection teardown.
func (b *Bridge) Close() *deferred.Result[engine.Response] {
	l := b.current()
	if l == nil {
		return engine.NoOp()
	}
	b.stopCleanup()
	return l.destroy(nil, "close")
}

// Detach gives up ownership without deleting the bridge: the handle goes
// Dead locally and nothing is sent. Used by callers that only borrow a
// bridge, such as one-shot commands on an existing id.
func (b *Bridge) Detach() {
	l := b.current()
	if l == nil {
		return
	}
	b.stopCleanup()
	l.release()
}

// Move transfers ownership to a new handle and leaves b Dead with an empty
// ID. Moving a moved-from handle returns another dead handle.
func (b *Bridge) Move() *Bridge {
	l := b.life.Swap(nil)
	if l == nil {
		return &Bridge{}
	}
	b.stopCleanup()
	return newBridge(l)
}

func (b *Bridge) stopCleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup.Stop()
	b.cleanup = runtime.Cleanup{}
}

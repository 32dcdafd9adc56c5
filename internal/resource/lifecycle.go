package resource

import (
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/roach88/arictl/internal/deferred"
	"github.com/roach88/arictl/internal/engine"
)

// lifecycle is the identity and destroy state machine shared by a handle
// and, after Move, by its successor. It never references the handle, so an
// unreachable handle can be collected while the event subscription keeps
// the lifecycle alive.
//
// INVARIANTS:
//   - state leaves Alive exactly once, through a compare-and-swap
//   - only the winner of Alive->Destroying sends DELETE
//   - the subscription is cancelled once state is Dead
//   - a live lifecycle holds the dispatcher's claim on (kind, id); the
//     claim is released once state is Dead
type lifecycle struct {
	d         engine.Dispatcher
	kind      string   // resource type used for routing
	id        string   // server-assigned identifier
	path      string   // e.g. "/bridges/b-1"
	destroyed []string // event types meaning the server already removed it

	state   atomic.Int32
	sub     atomic.Pointer[engine.Subscription]
	claimed atomic.Bool
}

// newLifecycle claims the resource and subscribes to its events. If another
// live handle already holds the resource, the returned lifecycle is Dead
// and ok is false.
func newLifecycle(d engine.Dispatcher, kind, collection, id string, destroyed ...string) (l *lifecycle, ok bool) {
	l = &lifecycle{
		d:         d,
		kind:      kind,
		id:        id,
		path:      "/" + collection + "/" + id,
		destroyed: destroyed,
	}
	if !d.Claim(kind, id) {
		slog.Warn("resource already has a live handle",
			"resource_type", kind,
			"resource_id", id,
		)
		l.state.Store(int32(Dead))
		return l, false
	}
	l.claimed.Store(true)
	l.sub.Store(d.Subscribe(kind, id, l.handleEvent))
	if l.State() == Dead {
		// Destroyed event routed before the subscription was stored.
		l.retire()
	}
	return l, true
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

// send dispatches an operation on the resource, or returns the canonical
// empty result if the handle is no longer Alive.
func (l *lifecycle) send(method, suffix string, params *engine.Params) *deferred.Result[engine.Response] {
	if l.State() != Alive {
		slog.Debug("operation on dead handle ignored",
			"resource_type", l.kind,
			"resource_id", l.id,
			"method", method,
			"path", l.path+suffix,
		)
		return engine.NoOp()
	}
	return l.d.Send(method, l.path+suffix, params)
}

// destroy is the local trigger: the Alive->Destroying winner sends DELETE
// and the handle becomes Dead when it settles, whatever the outcome.
func (l *lifecycle) destroy(params *engine.Params, trigger string) *deferred.Result[engine.Response] {
	if !l.state.CompareAndSwap(int32(Alive), int32(Destroying)) {
		slog.Debug("destroy ignored",
			"resource_type", l.kind,
			"resource_id", l.id,
			"trigger", trigger,
			"state", l.State().String(),
		)
		return engine.NoOp()
	}
	slog.Info("destroying resource",
		"resource_type", l.kind,
		"resource_id", l.id,
		"trigger", trigger,
	)
	return deferred.Finally(l.d.Send("DELETE", l.path, params), l.markDead)
}

// release is the local trigger for resources the handle does not own:
// the handle goes Dead without any command.
func (l *lifecycle) release() bool {
	if !l.state.CompareAndSwap(int32(Alive), int32(Dead)) {
		return false
	}
	l.retire()
	return true
}

func (l *lifecycle) handleEvent(ev engine.Event) {
	if !slices.Contains(l.destroyed, ev.Type) {
		return
	}
	if !l.state.CompareAndSwap(int32(Alive), int32(Dead)) {
		// A local destroy is in flight or finished; its DELETE settles the state.
		return
	}
	slog.Info("resource destroyed remotely",
		"resource_type", l.kind,
		"resource_id", l.id,
		"event", ev.Type,
	)
	l.retire()
}

func (l *lifecycle) markDead() {
	l.state.Store(int32(Dead))
	l.retire()
}

// retire drops the event subscription and the claim of a Dead lifecycle.
func (l *lifecycle) retire() {
	if sub := l.sub.Swap(nil); sub != nil {
		sub.Cancel()
	}
	if l.claimed.Swap(false) {
		l.d.Release(l.kind, l.id)
	}
}

// teardownOnCollect destroys the resource once owner becomes unreachable.
func teardownOnCollect[T any](owner *T, l *lifecycle) runtime.Cleanup {
	return runtime.AddCleanup(owner, func(l *lifecycle) {
		deferred.Discard(l.destroy(nil, "collected"))
	}, l)
}

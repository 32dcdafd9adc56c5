package engine

import (
	"sync"

	"github.com/samber/lo"
)

// Handler receives events routed to one resource. Handlers run on the
// delivery loop and must not block.
type Handler func(Event)

type routeKey struct {
	resourceType string
	resourceID   string
}

type route struct {
	id      uint64
	handler Handler
}

// Router demultiplexes events to the handlers subscribed for
// (resource type, resource id).
//
// Route is called only from the delivery loop, so events for one resource
// reach its handlers in the order they entered the engine. Subscribe and
// Cancel may be called from any goroutine, including from inside a handler.
type Router struct {
	mu     sync.RWMutex
	nextID uint64
	routes map[routeKey][]route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[routeKey][]route)}
}

// Subscription is a registered handler. Cancel removes it.
type Subscription struct {
	router *Router
	key    routeKey
	id     uint64
	once   sync.Once
}

// Subscribe registers h for events about (resourceType, resourceID).
// Handlers for the same resource run in subscription order.
func (r *Router) Subscribe(resourceType, resourceID string, h Handler) *Subscription {
	key := routeKey{resourceType: resourceType, resourceID: resourceID}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.routes[key] = append(r.routes[key], route{id: r.nextID, handler: h})
	return &Subscription{router: r, key: key, id: r.nextID}
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.router.remove(s.key, s.id)
	})
}

func (r *Router) remove(key routeKey, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := lo.Reject(r.routes[key], func(rt route, _ int) bool {
		return rt.id == id
	})
	if len(remaining) == 0 {
		delete(r.routes, key)
		return
	}
	r.routes[key] = remaining
}

// Route invokes every handler subscribed for the event's resource and
// returns how many ran. Zero means the event was dropped.
func (r *Router) Route(ev Event) int {
	key := routeKey{resourceType: ev.ResourceType, resourceID: ev.ResourceID}

	r.mu.RLock()
	handlers := lo.Map(r.routes[key], func(rt route, _ int) Handler {
		return rt.handler
	})
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return len(handlers)
}

// Len returns the number of resources with at least one subscription.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Subscribed reports whether any handler is registered for the resource.
func (r *Router) Subscribed(resourceType, resourceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[routeKey{resourceType: resourceType, resourceID: resourceID}]
	return ok
}

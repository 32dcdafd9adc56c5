package engine

import "sync"

// Handles tracks which resources currently have a live handle, so that a
// resource id is held by at most one handle per resource type.
//
// Thread-safety: all methods are safe for concurrent use.
type Handles struct {
	mu   sync.Mutex
	live map[routeKey]struct{}
}

// NewHandles creates an empty registry.
func NewHandles() *Handles {
	return &Handles{live: make(map[routeKey]struct{})}
}

// Claim reserves (resourceType, resourceID) and reports whether it was free.
func (h *Handles) Claim(resourceType, resourceID string) bool {
	key := routeKey{resourceType: resourceType, resourceID: resourceID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, held := h.live[key]; held {
		return false
	}
	h.live[key] = struct{}{}
	return true
}

// Release frees a claim. Releasing an unclaimed resource does nothing.
func (h *Handles) Release(resourceType, resourceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.live, routeKey{resourceType: resourceType, resourceID: resourceID})
}

// Held reports whether a live handle holds the resource.
func (h *Handles) Held(resourceType, resourceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, held := h.live[routeKey{resourceType: resourceType, resourceID: resourceID}]
	return held
}

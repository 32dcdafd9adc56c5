package testutil

import (
	"fmt"
	"sync"
)

// SequentialKeys produces correlation keys "<prefix>-1", "<prefix>-2", ...
//
// Unlike engine.FixedGenerator it never runs out, and Reset lets the same
// scenario run again with identical keys, which keeps golden traces stable.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeys creates a generator. An empty prefix means "cmd".
func NewSequentialKeys(prefix string) *SequentialKeys {
	if prefix == "" {
		prefix = "cmd"
	}
	return &SequentialKeys{prefix: prefix}
}

// Generate implements engine.KeyGenerator.
func (g *SequentialKeys) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Issued returns how many keys were generated since the last Reset.
func (g *SequentialKeys) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts numbering at 1.
func (g *SequentialKeys) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

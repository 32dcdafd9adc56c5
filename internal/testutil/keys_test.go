package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialKeys_NumbersFromOne(t *testing.T) {
	g := NewSequentialKeys("k")
	assert.Equal(t, "k-1", g.Generate())
	assert.Equal(t, "k-2", g.Generate())
	assert.Equal(t, 2, g.Issued())

	g.Reset()
	assert.Equal(t, "k-1", g.Generate())
}

func TestSequentialKeys_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "cmd-1", NewSequentialKeys("").Generate())
}

func TestSequentialKeys_ConcurrentUnique(t *testing.T) {
	g := NewSequentialKeys("")
	const goroutines = 20
	const perGoroutine = 50

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				k := g.Generate()
				mu.Lock()
				seen[k] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, goroutines*perGoroutine)
}

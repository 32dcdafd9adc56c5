package testutil

import (
	"testing"

	"github.com/roach88/arictl/internal/engine"
)

// NewEngine returns an engine wired to a fresh RecordingTransport with
// sequential keys. Tests drive delivery with Engine.Drain.
func NewEngine(t testing.TB, opts ...engine.EngineOption) (*engine.Engine, *RecordingTransport) {
	t.Helper()
	tr := NewRecordingTransport()
	opts = append([]engine.EngineOption{engine.WithKeyGenerator(NewSequentialKeys("cmd"))}, opts...)
	e := engine.New(tr, opts...)
	t.Cleanup(e.Stop)
	return e, tr
}

// Package harness runs interleaving scenarios against the engine.
//
// A scenario is a YAML list of steps: create or wrap handles, invoke
// operations, answer commands, inject events, destroy, close and move
// handles. Steps run one at a time on a single goroutine against an engine
// wired to a testutil.RecordingTransport; after each step the engine's
// inbound queue is drained, so a scenario fixes exactly when each response
// and event is delivered relative to the operations around it.
//
// Every run journals into a fresh in-memory store. The journal, the final
// handle states and the outcome of every operation form the trace, which
// assertions check and golden files pin down:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden.
package harness

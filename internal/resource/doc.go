// Package resource provides handles for server-managed resources (bridges
// and channels) built on an engine.Dispatcher.
//
// Every handle owns a lifecycle with three states:
//
//	Alive --(destroy trigger)--> Destroying --(DELETE settles)--> Dead
//	Alive --(remote destroyed event)--> Dead
//
// Triggers are an explicit Destroy, handle teardown (Close, or the garbage
// collector reclaiming an unreachable bridge handle) and the server's
// destroyed event. A single compare-and-swap picks the winner; only a local
// winner sends DELETE. Every operation on a handle that is not Alive
// returns an already-succeeded empty result and sends nothing.
package resource

// Package deferred provides Result, a one-shot chainable completion object
// for operations whose outcome arrives asynchronously.
//
// A Result moves from Pending to exactly one of Succeeded or Failed and never
// changes afterwards. Each Result has two continuation slots, one for success
// and one for failure, each attachable once:
//
//	res := bridge.Play(resource.PlayOptions{Media: "sound:hello"})
//	_ = res.OnSuccess(func(r engine.Response) { ... })
//	_ = res.OnError(func(err error) { ... })
//
// Continuations attached after resolution fire immediately with the stored
// outcome, so there is no window in which an update can be missed.
//
// Then composes results; Resolved and Rejected build results that are
// already complete, which is how operations on dead resource handles
// report their no-op success.
package deferred

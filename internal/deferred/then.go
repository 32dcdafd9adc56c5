package deferred

// Then chains fn onto r and returns a Result for fn's outcome.
//
// Then consumes both continuation slots of r. If either slot is already
// taken, r is left untouched and the returned Result is rejected with
// ErrProgramming. A failure of r propagates unchanged; fn only runs when r
// succeeds.
func Then[T, U any](r *Result[T], fn func(T) (U, error)) *Result[U] {
	next := New[U]()

	err := r.attach(func(v T) {
		u, err := fn(v)
		if err != nil {
			_ = next.Reject(err)
			return
		}
		_ = next.Resolve(u)
	}, func(err error) {
		_ = next.Reject(err)
	})
	if err != nil {
		return Rejected[U](err)
	}
	return next
}

// Discard consumes both continuation slots of r without acting on the
// outcome. Used by fire-and-forget callers that still want r to be
// considered handled.
func Discard[T any](r *Result[T]) {
	_ = r.OnSuccess(func(T) {})
	_ = r.OnError(func(error) {})
}

// Finally consumes both continuation slots of r, runs fn once r settles
// either way, then forwards r's outcome to the returned Result. Like Then,
// it attaches nothing if either slot is already taken.
func Finally[T any](r *Result[T], fn func()) *Result[T] {
	next := New[T]()

	err := r.attach(func(v T) {
		fn()
		_ = next.Resolve(v)
	}, func(err error) {
		fn()
		_ = next.Reject(err)
	})
	if err != nil {
		return Rejected[T](err)
	}
	return next
}

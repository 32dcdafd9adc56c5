package deferred

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyResolved is returned by Resolve/Reject once an outcome is stored.
	ErrAlreadyResolved = errors.New("deferred: already resolved")

	// ErrProgramming is returned when a Result is misused, e.g. a second
	// continuation is attached to the same slot.
	ErrProgramming = errors.New("deferred: programming error")
)

// State is the resolution state of a Result.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is a one-shot placeholder for the outcome of an operation that has
// already been dispatched.
//
// Thread-safety: all methods are safe for concurrent use. Continuations run
// outside the internal lock, either on the goroutine that resolves the Result
// or, when attached after resolution, synchronously on the attaching goroutine.
type Result[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}

	onSuccess    func(T)
	onError      func(error)
	successTaken bool
	errorTaken   bool
}

// New returns a pending Result.
func New[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Resolved returns a Result that has already succeeded with v.
func Resolved[T any](v T) *Result[T] {
	r := New[T]()
	r.state = Succeeded
	r.value = v
	close(r.done)
	return r
}

// Rejected returns a Result that has already failed with err.
func Rejected[T any](err error) *Result[T] {
	r := New[T]()
	r.state = Failed
	r.err = err
	close(r.done)
	return r
}

// OnSuccess attaches the success continuation. At most one success
// continuation may be attached; a second call returns ErrProgramming.
// If the Result already succeeded, fn runs before OnSuccess returns.
func (r *Result[T]) OnSuccess(fn func(T)) error {
	if fn == nil {
		return fmt.Errorf("%w: nil success continuation", ErrProgramming)
	}
	r.mu.Lock()
	if r.successTaken {
		r.mu.Unlock()
		return fmt.Errorf("%w: success continuation already attached", ErrProgramming)
	}
	r.successTaken = true
	if r.state == Pending {
		r.onSuccess = fn
		r.mu.Unlock()
		return nil
	}
	state, value := r.state, r.value
	r.mu.Unlock()

	if state == Succeeded {
		fn(value)
	}
	return nil
}

// OnError attaches the error continuation. At most one error continuation
// may be attached; a second call returns ErrProgramming.
// If the Result already failed, fn runs before OnError returns.
func (r *Result[T]) OnError(fn func(error)) error {
	if fn == nil {
		return fmt.Errorf("%w: nil error continuation", ErrProgramming)
	}
	r.mu.Lock()
	if r.errorTaken {
		r.mu.Unlock()
		return fmt.Errorf("%w: error continuation already attached", ErrProgramming)
	}
	r.errorTaken = true
	if r.state == Pending {
		r.onError = fn
		r.mu.Unlock()
		return nil
	}
	state, err := r.state, r.err
	r.mu.Unlock()

	if state == Failed {
		fn(err)
	}
	return nil
}

// attach claims both continuation slots at once: if either is taken,
// neither is attached.
func (r *Result[T]) attach(onSuccess func(T), onError func(error)) error {
	r.mu.Lock()
	if r.successTaken || r.errorTaken {
		r.mu.Unlock()
		return fmt.Errorf("%w: continuation already attached", ErrProgramming)
	}
	r.successTaken, r.errorTaken = true, true
	if r.state == Pending {
		r.onSuccess, r.onError = onSuccess, onError
		r.mu.Unlock()
		return nil
	}
	state, value, err := r.state, r.value, r.err
	r.mu.Unlock()

	switch state {
	case Succeeded:
		onSuccess(value)
	case Failed:
		onError(err)
	}
	return nil
}

// Resolve stores a successful outcome and runs the success continuation,
// if any. Returns ErrAlreadyResolved if an outcome is already stored.
func (r *Result[T]) Resolve(v T) error {
	r.mu.Lock()
	if r.state != Pending {
		r.mu.Unlock()
		return ErrAlreadyResolved
	}
	r.state = Succeeded
	r.value = v
	fn := r.onSuccess
	r.onSuccess = nil
	r.onError = nil
	close(r.done)
	r.mu.Unlock()

	if fn != nil {
		fn(v)
	}
	return nil
}

// Reject stores a failed outcome and runs the error continuation, if any.
// Returns ErrAlreadyResolved if an outcome is already stored.
func (r *Result[T]) Reject(err error) error {
	if err == nil {
		return fmt.Errorf("%w: reject with nil error", ErrProgramming)
	}
	r.mu.Lock()
	if r.state != Pending {
		r.mu.Unlock()
		return ErrAlreadyResolved
	}
	r.state = Failed
	r.err = err
	fn := r.onError
	r.onSuccess = nil
	r.onError = nil
	close(r.done)
	r.mu.Unlock()

	if fn != nil {
		fn(err)
	}
	return nil
}

// State returns the current resolution state.
func (r *Result[T]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done returns a channel closed once the Result is resolved or rejected.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the stored value and error. ok is false while pending.
func (r *Result[T]) Outcome() (value T, err error, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Pending {
		return value, nil, false
	}
	return r.value, r.err, true
}

// Wait blocks until the Result is resolved or ctx is done. It does not
// consume a continuation slot.
//
// Never call Wait from a continuation or from the engine's delivery
// goroutine: the outcome is produced there, so the call would deadlock
// until ctx expires.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		value, err, _ := r.Outcome()
		return value, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/arictl/internal/deferred"
	"github.com/roach88/arictl/internal/observability"
)

// Journal records engine traffic. Implemented by store.Store.
//
// Methods are called from the dispatching goroutine (RecordCommand) and
// from the delivery loop (the others); implementations must be safe for
// concurrent use. Journal failures are logged and never affect delivery.
type Journal interface {
	RecordCommand(ctx context.Context, cmd Command) error
	RecordResponse(ctx context.Context, resp Response, seq int64, outcome string) error
	RecordEvent(ctx context.Context, ev Event, handlers int) error
}

// OutcomeUnmatched is the journal outcome for a response with no pending
// command.
const OutcomeUnmatched = "unmatched"

// Engine is the single delivery context for one server connection.
//
// Commands go out through the Transport; responses, events and timeout
// expiries come back through one FIFO and are processed one at a time by
// Run (or Drain). Continuations attached to command results and event
// handlers therefore run on the delivery goroutine and must not block.
//
// Thread-safety model:
//   - Send, Subscribe, Deliver, Publish, Stop: safe from any goroutine
//   - Run / Drain: from exactly one goroutine at a time
type Engine struct {
	transport  Transport
	clock      *Clock
	keys       KeyGenerator
	correlator *Correlator
	router     *Router
	handles    *Handles
	queue      *inboundQueue
	journal    Journal
	timeout    time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCommandTimeout rejects commands with a TIMEOUT error when no response
// arrives within d. Zero (the default) disables timeouts.
func WithCommandTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithJournal records commands, responses and events to j.
func WithJournal(j Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithKeyGenerator replaces the UUIDv7 correlation key generator.
func WithKeyGenerator(g KeyGenerator) EngineOption {
	return func(e *Engine) {
		e.keys = g
	}
}

// WithClock sets the logical clock, e.g. to resume after an existing journal.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine sending commands through t.
func New(t Transport, opts ...EngineOption) *Engine {
	e := &Engine{
		transport: t,
		clock:     NewClock(),
		keys:      UUIDv7Generator{},
		router:    NewRouter(),
		handles:   NewHandles(),
		queue:     newInboundQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.correlator = NewCorrelator(e.timeout)
	return e
}

// Send dispatches a command and returns its pending result.
//
// Hand-off failures and sends after Stop are reported through the result
// as TRANSPORT errors; Send itself never fails or blocks.
func (e *Engine) Send(method, path string, params *Params) *deferred.Result[Response] {
	cmd := Command{Method: method, Path: path, Params: params.clone()}
	if e.queue.Closed() {
		return deferred.Rejected[Response](NewTransportError(cmd, ErrClosed))
	}

	cmd.Key = e.keys.Generate()
	cmd.Seq = e.clock.Next()

	result := deferred.New[Response]()
	if err := e.correlator.Register(cmd, result); err != nil {
		return deferred.Rejected[Response](NewTransportError(cmd, err))
	}
	observability.SetPendingCommands(e.correlator.Len())

	if e.journal != nil {
		if err := e.journal.RecordCommand(context.Background(), cmd); err != nil {
			slog.Warn("journal command failed", "key", cmd.Key, "error", err)
		}
	}

	if e.timeout > 0 {
		key := cmd.Key
		timer := time.AfterFunc(e.timeout, func() {
			e.queue.Enqueue(message{kind: messageExpiry, key: key})
		})
		e.correlator.arm(key, timer)
	}

	slog.Debug("command sent",
		"key", cmd.Key,
		"method", cmd.Method,
		"target", cmd.Target(),
		"seq", cmd.Seq,
	)

	if err := e.transport.Send(cmd, e.replyFor(cmd)); err != nil {
		slog.Warn("command hand-off failed", "key", cmd.Key, "method", cmd.Method, "path", cmd.Path, "error", err)
		e.replyFor(cmd)(Response{Err: err})
	}
	return result
}

// replyFor returns the callback a transport uses to report cmd's outcome.
// Once the engine has stopped, the command is failed directly since no
// loop is left to deliver it.
func (e *Engine) replyFor(cmd Command) func(Response) {
	return func(resp Response) {
		resp.Key = cmd.Key
		if e.queue.Enqueue(message{kind: messageResponse, response: &resp}) {
			return
		}
		err := NewTransportError(cmd, ErrClosed)
		if settled, ok := e.correlator.Fail(cmd.Key, err); ok {
			e.settle(settled, observability.OutcomeClosed)
			e.journalResponse(context.Background(), Response{Key: cmd.Key, Err: err}, e.clock.Next(), observability.OutcomeClosed)
		}
	}
}

// Subscribe registers h for events about one resource.
func (e *Engine) Subscribe(resourceType, resourceID string, h Handler) *Subscription {
	return e.router.Subscribe(resourceType, resourceID, h)
}

// Claim reserves a resource for one live handle. It reports false when
// another live handle already holds the resource.
func (e *Engine) Claim(resourceType, resourceID string) bool {
	return e.handles.Claim(resourceType, resourceID)
}

// Release frees a resource claimed with Claim.
func (e *Engine) Release(resourceType, resourceID string) {
	e.handles.Release(resourceType, resourceID)
}

// Deliver enqueues a response for correlation. Returns false after Stop.
func (e *Engine) Deliver(resp Response) bool {
	return e.queue.Enqueue(message{kind: messageResponse, response: &resp})
}

// Publish enqueues a server event for routing. Returns false after Stop.
func (e *Engine) Publish(ev Event) bool {
	return e.queue.Enqueue(message{kind: messageEvent, event: &ev})
}

// Pending returns the commands awaiting a response, in dispatch order.
func (e *Engine) Pending() []Command {
	return e.correlator.Pending()
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Run processes inbound messages until ctx is cancelled or Stop is called
// and the queue has drained. Commands still pending when Run returns are
// rejected with a TRANSPORT error wrapping ErrClosed.
//
// ERROR HANDLING: nothing in the loop is fatal. Unmatched responses,
// dropped events and journal failures are logged and processing continues.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "command_timeout", e.timeout)
	defer e.failPending()

	for {
		m, ok := e.queue.TryDequeue()
		if ok {
			e.process(ctx, m)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed with the queue, so a closed
			// queue keeps waking the loop until it is empty.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes every message currently queued, including ones enqueued
// by continuations while draining, and returns how many were processed.
// It is the synchronous alternative to Run for tests and the scenario
// harness; never call it while Run is active.
func (e *Engine) Drain() int {
	n := 0
	for {
		m, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.process(context.Background(), m)
		n++
	}
}

// Stop closes the inbound queue. Run returns once it has drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) failPending() {
	for _, cmd := range e.correlator.Pending() {
		err := NewTransportError(cmd, ErrClosed)
		if settled, ok := e.correlator.Fail(cmd.Key, err); ok {
			e.settle(settled, observability.OutcomeClosed)
			e.journalResponse(context.Background(), Response{Key: cmd.Key, Err: err}, e.clock.Next(), observability.OutcomeClosed)
		}
	}
}

// process handles one inbound message.
// CRITICAL: called only from the delivery goroutine.
func (e *Engine) process(ctx context.Context, m message) {
	switch m.kind {
	case messageResponse:
		e.processResponse(ctx, *m.response)
	case messageEvent:
		e.processEvent(ctx, *m.event)
	case messageExpiry:
		e.processExpiry(ctx, m.key)
	default:
		slog.Error("unknown inbound message", "kind", int(m.kind))
	}
}

func (e *Engine) processResponse(ctx context.Context, resp Response) {
	// Stamped before resolution so commands sent by continuations sort after
	// the response that triggered them.
	seq := e.clock.Next()

	settled, ok := e.correlator.Deliver(resp)
	if !ok {
		slog.Warn("unmatched response dropped",
			"key", resp.Key,
			"status", resp.Status,
			"seq", seq,
		)
		observability.RecordUnmatchedResponse()
		e.journalResponse(ctx, resp, seq, OutcomeUnmatched)
		return
	}

	outcome := responseOutcome(resp)
	slog.Debug("command resolved",
		"key", resp.Key,
		"method", settled.Command.Method,
		"path", settled.Command.Path,
		"status", resp.Status,
		"outcome", outcome,
		"elapsed", settled.Elapsed,
	)
	e.settle(settled, outcome)
	e.journalResponse(ctx, resp, seq, outcome)
}

func (e *Engine) processEvent(ctx context.Context, ev Event) {
	ev.Seq = e.clock.Next()

	handlers := e.router.Route(ev)
	if handlers == 0 {
		slog.Debug("event dropped: no handler",
			"type", ev.Type,
			"resource_type", ev.ResourceType,
			"resource_id", ev.ResourceID,
			"seq", ev.Seq,
		)
	} else {
		slog.Debug("event routed",
			"type", ev.Type,
			"resource_type", ev.ResourceType,
			"resource_id", ev.ResourceID,
			"handlers", handlers,
			"seq", ev.Seq,
		)
	}
	observability.RecordEvent(ev.Type, handlers > 0)

	if e.journal != nil {
		if err := e.journal.RecordEvent(ctx, ev, handlers); err != nil {
			slog.Warn("journal event failed", "type", ev.Type, "resource_id", ev.ResourceID, "error", err)
		}
	}
}

func (e *Engine) processExpiry(ctx context.Context, key string) {
	seq := e.clock.Next()

	settled, ok := e.correlator.Expire(key)
	if !ok {
		// Resolved before the timer fired.
		return
	}
	slog.Warn("command timed out",
		"key", key,
		"method", settled.Command.Method,
		"path", settled.Command.Path,
		"timeout", e.timeout,
	)
	e.settle(settled, observability.OutcomeTimeout)
	e.journalResponse(ctx, Response{Key: key, Err: NewTimeoutError(settled.Command, e.timeout)}, seq, observability.OutcomeTimeout)
}

func (e *Engine) settle(s Settled, outcome string) {
	observability.RecordCommand(s.Command.Method, outcome, s.Elapsed)
	observability.SetPendingCommands(e.correlator.Len())
}

func (e *Engine) journalResponse(ctx context.Context, resp Response, seq int64, outcome string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordResponse(ctx, resp, seq, outcome); err != nil {
		slog.Warn("journal response failed", "key", resp.Key, "error", err)
	}
}

func responseOutcome(resp Response) string {
	switch {
	case resp.Err != nil:
		return observability.OutcomeTransport
	case resp.OK():
		return observability.OutcomeOK
	default:
		return observability.OutcomeRemote
	}
}

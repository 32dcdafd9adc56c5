package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/arictl/internal/deferred"
)

// pendingCommand is a dispatched command awaiting its response.
type pendingCommand struct {
	cmd    Command
	result *deferred.Result[Response]
	timer  *time.Timer
	sentAt time.Time
}

// Settled describes a command removed from the pending set.
type Settled struct {
	Command Command
	Elapsed time.Duration
}

func (p *pendingCommand) settled() Settled {
	return Settled{Command: p.cmd, Elapsed: time.Since(p.sentAt)}
}

// Correlator matches responses to the commands that produced them.
//
// Registration happens on the dispatching goroutine; Deliver, Expire and
// Fail run on the delivery loop. The pending map is guarded by a mutex
// because those two sides are different goroutines; resolution itself
// happens outside the lock so continuations may dispatch new commands.
//
// INVARIANTS:
//   - a key is present in pending from Register until exactly one of
//     Deliver, Expire or Fail removes it
//   - each pending result is resolved or rejected exactly once
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingCommand
	timeout time.Duration
}

// NewCorrelator creates an empty correlator. Timeout is only recorded for
// error messages; timers are armed by the engine.
func NewCorrelator(timeout time.Duration) *Correlator {
	return &Correlator{
		pending: make(map[string]*pendingCommand),
		timeout: timeout,
	}
}

// Register records cmd as pending. Fails if the key is already pending.
func (c *Correlator) Register(cmd Command, result *deferred.Result[Response]) error {
	if cmd.Key == "" {
		return fmt.Errorf("register command: empty correlation key")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[cmd.Key]; exists {
		return fmt.Errorf("register command: correlation key %q already pending", cmd.Key)
	}
	c.pending[cmd.Key] = &pendingCommand{
		cmd:    cmd,
		result: result,
		sentAt: time.Now(),
	}
	return nil
}

// arm attaches a timeout timer to a pending command.
func (c *Correlator) arm(key string, timer *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[key]; ok {
		p.timer = timer
		return
	}
	// Already resolved before the timer could be attached.
	timer.Stop()
}

func (c *Correlator) take(key string) (*pendingCommand, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[key]
	if !ok {
		return nil, false
	}
	delete(c.pending, key)
	if p.timer != nil {
		p.timer.Stop()
	}
	return p, true
}

// Deliver resolves the command matching resp.Key. A transport error
// rejects with TRANSPORT, a non-2xx status with REMOTE, anything else
// resolves with the response. Returns the matched command and whether a
// pending entry existed; unmatched responses are left to the caller to log.
func (c *Correlator) Deliver(resp Response) (Settled, bool) {
	p, ok := c.take(resp.Key)
	if !ok {
		return Settled{}, false
	}

	switch {
	case resp.Err != nil:
		_ = p.result.Reject(NewTransportError(p.cmd, resp.Err))
	case resp.OK():
		_ = p.result.Resolve(resp)
	default:
		_ = p.result.Reject(NewRemoteError(p.cmd, resp.Status, resp.Body))
	}
	return p.settled(), true
}

// Expire rejects the command with TIMEOUT if it is still pending.
func (c *Correlator) Expire(key string) (Settled, bool) {
	p, ok := c.take(key)
	if !ok {
		return Settled{}, false
	}
	_ = p.result.Reject(NewTimeoutError(p.cmd, c.timeout))
	return p.settled(), true
}

// Fail rejects the command with err if it is still pending.
func (c *Correlator) Fail(key string, err error) (Settled, bool) {
	p, ok := c.take(key)
	if !ok {
		return Settled{}, false
	}
	_ = p.result.Reject(err)
	return p.settled(), true
}

// Len returns the number of pending commands.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Pending returns the pending commands ordered by dispatch sequence.
func (c *Correlator) Pending() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Command, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p.cmd)
	}
	sortCommands(out)
	return out
}

package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/arictl/internal/engine"
)

// RecordingTransport is an engine.Transport that records every command and
// holds its reply callback until the test answers it.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingTransport struct {
	mu      sync.Mutex
	sent    []engine.Command
	replies map[string]func(engine.Response)
	auto    func(engine.Command) (engine.Response, bool)
	fail    error
}

// NewRecordingTransport creates a transport that answers nothing on its own.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{replies: make(map[string]func(engine.Response))}
}

// AutoReply makes the transport answer immediately whenever fn returns true.
func (r *RecordingTransport) AutoReply(fn func(engine.Command) (engine.Response, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auto = fn
}

// FailWith makes every following Send fail to hand off with err.
// A nil err restores normal behaviour.
func (r *RecordingTransport) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

// Send implements engine.Transport.
func (r *RecordingTransport) Send(cmd engine.Command, reply func(engine.Response)) error {
	r.mu.Lock()
	if r.fail != nil {
		err := r.fail
		r.mu.Unlock()
		return err
	}
	r.sent = append(r.sent, cmd)
	auto := r.auto
	if auto == nil {
		r.replies[cmd.Key] = reply
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if resp, ok := auto(cmd); ok {
		reply(resp)
		return nil
	}
	r.mu.Lock()
	r.replies[cmd.Key] = reply
	r.mu.Unlock()
	return nil
}

// Commands returns a copy of every command sent so far.
func (r *RecordingTransport) Commands() []engine.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Command, len(r.sent))
	copy(out, r.sent)
	return out
}

// Count returns how many commands matched method and path.
func (r *RecordingTransport) Count(method, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, cmd := range r.sent {
		if cmd.Method == method && cmd.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent command.
func (r *RecordingTransport) Last() (engine.Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return engine.Command{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Reply answers the command with the given key. Each command can be
// answered once.
func (r *RecordingTransport) Reply(key string, resp engine.Response) error {
	r.mu.Lock()
	reply, ok := r.replies[key]
	delete(r.replies, key)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no unanswered command with key %q", key)
	}
	reply(resp)
	return nil
}

// ReplyLast answers the most recent command.
func (r *RecordingTransport) ReplyLast(resp engine.Response) error {
	cmd, ok := r.Last()
	if !ok {
		return fmt.Errorf("no command sent")
	}
	return r.Reply(cmd.Key, resp)
}

// NextUnanswered returns the oldest command that still awaits a reply.
func (r *RecordingTransport) NextUnanswered() (engine.Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range r.sent {
		if _, ok := r.replies[cmd.Key]; ok {
			return cmd, true
		}
	}
	return engine.Command{}, false
}

// Unanswered returns how many commands still await a reply.
func (r *RecordingTransport) Unanswered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies)
}

// Reset forgets all commands and pending replies.
func (r *RecordingTransport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.replies = make(map[string]func(engine.Response))
}

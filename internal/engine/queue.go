package engine

import "sync"

// messageKind distinguishes inbound message kinds.
type messageKind int

const (
	// messageResponse carries a command response from the transport.
	messageResponse messageKind = iota + 1
	// messageEvent carries a server-pushed event.
	messageEvent
	// messageExpiry reports that a command's timeout elapsed.
	messageExpiry
)

// message is one unit of work for the delivery loop.
type message struct {
	kind     messageKind
	response *Response
	event    *Event
	key      string // expiry only
}

// inboundQueue is a thread-safe FIFO feeding the delivery loop.
//
// Transport goroutines, the event feed and timeout timers enqueue from any
// goroutine; only the delivery loop dequeues. The queue is unbounded so a
// slow continuation never blocks the transport.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type inboundQueue struct {
	mu       sync.Mutex
	messages []message
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newInboundQueue() *inboundQueue {
	return &inboundQueue{
		messages: make([]message, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a message to the back of the queue.
// Returns false if the queue is closed.
func (q *inboundQueue) Enqueue(m message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.messages = append(q.messages, m)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front message without blocking.
func (q *inboundQueue) TryDequeue() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return message{}, false
	}

	m := q.messages[0]
	// Clear the slot so the backing array does not pin payloads.
	q.messages[0] = message{}

	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}

	return m, true
}

// Wait returns a channel that signals when messages may be available.
// It is closed when the queue is closed.
func (q *inboundQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *inboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Closed reports whether Close has been called.
func (q *inboundQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting messages and wakes any waiter.
func (q *inboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

package engine

import (
	"encoding/json"
	"fmt"
)

// Command is one request on the command channel.
type Command struct {
	Key    string  // Correlation key, unique while the command is pending
	Seq    int64   // Logical clock value at dispatch
	Method string  // HTTP method
	Path   string  // Resource path, e.g. "/bridges/b-1/play"
	Params *Params // Query parameters after the omission rule
}

// Query returns the encoded query string (without the leading '?').
func (c Command) Query() string {
	return c.Params.Encode()
}

// Target returns path plus query, as sent on the wire.
func (c Command) Target() string {
	if q := c.Query(); q != "" {
		return c.Path + "?" + q
	}
	return c.Path
}

// String renders the command as "METHOD target".
func (c Command) String() string {
	return fmt.Sprintf("%s %s", c.Method, c.Target())
}

// Response is the outcome of a command as observed by the transport.
// Err is set when the command never produced an HTTP response.
type Response struct {
	Key    string
	Status int
	Body   []byte
	Err    error
}

// OK reports whether the response carries a 2xx status and no transport error.
func (r Response) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

// Field extracts a top-level string field from a JSON body.
func (r Response) Field(name string) (string, bool) {
	if len(r.Body) == 0 {
		return "", false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &obj); err != nil {
		return "", false
	}
	raw, ok := obj[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Resource types used for event routing.
const (
	ResourceBridge    = "bridge"
	ResourceChannel   = "channel"
	ResourcePlayback  = "playback"
	ResourceRecording = "recording"
)

// Event types that end a resource's life on the server.
const (
	EventBridgeDestroyed  = "BridgeDestroyed"
	EventChannelDestroyed = "ChannelDestroyed"
)

// Event is a server-pushed notification. Events are routed, never mutated.
type Event struct {
	Type         string
	ResourceType string
	ResourceID   string
	Payload      json.RawMessage
	Seq          int64 // Logical clock value when the event entered the engine
}

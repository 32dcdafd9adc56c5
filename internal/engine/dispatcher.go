package engine

import (
	"sort"

	"github.com/roach88/arictl/internal/deferred"
)

// Dispatcher sends commands and registers event handlers on behalf of
// resource handles. *Engine implements it.
type Dispatcher interface {
	// Send hands a command to the transport and returns its eventual
	// outcome. It never blocks and never fails synchronously.
	Send(method, path string, params *Params) *deferred.Result[Response]

	// Subscribe registers h for events about one resource.
	Subscribe(resourceType, resourceID string, h Handler) *Subscription

	// Claim reserves a resource for one live handle and reports false if
	// another live handle holds it. Release frees the claim.
	Claim(resourceType, resourceID string) bool
	Release(resourceType, resourceID string)
}

// Transport carries commands to the server.
//
// Send must not block on the network. It returns an error only when the
// command could not be handed off at all; otherwise reply is called exactly
// once, from any goroutine, with the outcome.
type Transport interface {
	Send(cmd Command, reply func(Response)) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(cmd Command, reply func(Response)) error

// Send implements Transport.
func (f TransportFunc) Send(cmd Command, reply func(Response)) error {
	return f(cmd, reply)
}

// NoOp returns the canonical result for an operation that needs no command:
// already succeeded with an empty response.
func NoOp() *deferred.Result[Response] {
	return deferred.Resolved(Response{})
}

func sortCommands(cmds []Command) {
	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Seq < cmds[j].Seq
	})
}

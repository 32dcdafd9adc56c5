// Package engine implements command/response correlation and event routing
// for one connection to a telephony control server.
//
// ARCHITECTURE:
//
// Two channels connect the process to the server. Commands go out on the
// command channel and each eventually yields a response. Events arrive on an
// independent feed, unrequested. Both kinds of inbound traffic, plus
// command timeout expiries, are serialized through one FIFO queue and
// processed by a single delivery goroutine:
//
//  1. Send builds a Command (correlation key, logical seq, omitted-default
//     parameters), registers a pending deferred.Result with the Correlator
//     and hands the command to the Transport without blocking.
//  2. The transport reports the outcome via a reply callback, which
//     enqueues a Response.
//  3. Engine.Run dequeues one message at a time. Responses go to the
//     Correlator, which resolves or rejects the pending result exactly once.
//     Events go to the Router, which invokes every handler subscribed for
//     the event's (resource type, resource id) in subscription order.
//
// Continuations and handlers run on the delivery goroutine. They may call
// Send and Subscribe but must not block.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Commands, responses and events are stamped with a monotonic seq from
// Clock.Next() for the journal. Wall time is only used for metrics.
//
// Non-fatal drops
// A response with no pending command and an event with no subscriber are
// logged and counted, never surfaced to callers.
package engine

// Package policy decides what the agent says next.
//
// A Policy consumes one caller transcript at a time and streams back the
// agent's reply as token deltas, plus call-control decisions (hang up,
// forward to a human) when the conversation reaches a terminal state. The
// production implementation ([Agent]) drives an LLM with a state-dependent
// system prompt and a fixed set of tools; tests use the mock subpackage.
package policy

import "context"

// Event is one increment of a streamed policy response.
type Event struct {
	// Delta is a fragment of the agent's spoken reply. May be empty on the
	// final event carrying only call-control flags.
	Delta string

	// EndCall requests that the call be terminated after the current reply
	// finishes playing. Reason carries the disposition code.
	EndCall bool

	// Forward requests a transfer to a human agent after the current reply.
	Forward bool

	// Reason is the disposition code attached to EndCall or Forward.
	Reason string

	// Err is set when the response failed mid-stream. The channel closes
	// after an Err event.
	Err error
}

// Policy produces the agent's next utterance.
//
// Implementations must be safe for sequential use by one call; the turn
// pipeline never runs two Respond calls concurrently for the same session.
type Policy interface {
	// Respond streams the reply to transcript. An empty transcript requests
	// the scripted cold-call greeting. The returned channel is closed when
	// the response is complete or ctx is cancelled; callers must drain it.
	Respond(ctx context.Context, transcript string) (<-chan Event, error)
}

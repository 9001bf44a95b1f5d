package live

import "fmt"

// Event is a unit of information delivered from a session's concurrent
// context to the single consuming context. Events from one producer keep
// their program order; the queue is unbounded and lossless while open.
type Event interface {
	String() string
	event()
}

// ConnectedEvent reports the session reached the Open state: the
// transport is up and the auth frame was written.
type ConnectedEvent struct{}

func (ConnectedEvent) event()         {}
func (ConnectedEvent) String() string { return "connected" }

// DisconnectedEvent reports an orderly close, either the peer ending
// the connection or a local stop. It is the authoritative confirmation
// that a session finished.
type DisconnectedEvent struct{}

func (DisconnectedEvent) event()         {}
func (DisconnectedEvent) String() string { return "disconnected" }

// MessageEvent carries one inbound platform message. Payload is the
// message body as text; Cmd is the command tag extracted from it. The
// body's business semantics are opaque to this package.
type MessageEvent struct {
	Cmd     string
	Payload string
}

func (MessageEvent) event()           {}
func (e MessageEvent) String() string { return fmt.Sprintf("message %s", e.Cmd) }

// ErrorEvent reports a terminal failure: connect, read, write, or a
// corrupt frame stream. The session is Closed once it is queued; the
// caller must start a new session to reconnect.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) event()           {}
func (e ErrorEvent) String() string { return fmt.Sprintf("error: %v", e.Err) }

// TraceEvent carries diagnostic detail: protocol acknowledgments,
// dropped messages, unknown operation codes.
type TraceEvent struct {
	Message string
}

func (TraceEvent) event()           {}
func (e TraceEvent) String() string { return fmt.Sprintf("trace: %s", e.Message) }

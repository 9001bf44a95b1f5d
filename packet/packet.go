// Package packet implements encoding and decoding of the live broadcast
// wire protocol: length-prefixed binary frames with a fixed 16-byte
// big-endian header, optionally zlib-compressed and nested.
package packet

import "fmt"

// HeaderSize is the wire size of a frame header. The protocol carries it
// in every header but this generation never varies it.
const HeaderSize = 16

// Version tells how a frame body is encoded.
type Version uint16

const (
	// VersionPlain means the body is the raw payload.
	VersionPlain Version = 0

	// VersionCompressed means the body is a zlib stream containing one
	// or more concatenated frames.
	VersionCompressed Version = 2
)

func (v Version) String() string {
	switch v {
	case VersionPlain:
		return "plain"
	case VersionCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("version(%d)", uint16(v))
	}
}

// Op identifies a frame's purpose. Codes not listed here are passed
// through to the caller rather than rejected, for forward compatibility.
type Op uint32

const (
	OpHeartbeat      Op = 2
	OpHeartbeatReply Op = 3
	OpMessage        Op = 5
	OpAuth           Op = 7
	OpAuthReply      Op = 8
)

func (op Op) String() string {
	switch op {
	case OpHeartbeat:
		return "heartbeat"
	case OpHeartbeatReply:
		return "heartbeat-reply"
	case OpMessage:
		return "message"
	case OpAuth:
		return "auth"
	case OpAuthReply:
		return "auth-reply"
	default:
		return fmt.Sprintf("op(%d)", uint32(op))
	}
}

// Frame is a single protocol message as transmitted. Immutable once built.
type Frame struct {
	Version  Version
	Op       Op
	Sequence uint32
	Body     []byte
}

// Message is one decoded logical message: an operation code and its raw
// body. Compressed frames flatten into multiple Messages.
type Message struct {
	Op   Op
	Body []byte
}

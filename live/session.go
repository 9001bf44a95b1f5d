// Package live runs the persistent connection to the interaction
// platform: one session per connection attempt, a periodic in-band
// heartbeat, and an event queue polled by a single consumer.
package live

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/blivekit/blive/packet"
	"github.com/blivekit/blive/transport"
)

// State is a session's position in its lifecycle. A session only moves
// forward; Closed is terminal and a new start creates a new session.
type State uint32

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingAuthAck
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingAuthAck:
		return "awaiting-auth-ack"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

type sessionConfig struct {
	dial              transport.Dialer
	log               zerolog.Logger
	heartbeatInterval time.Duration
	heartbeatTick     <-chan time.Time
	metrics           *Metrics
}

// Session is one logical connection attempt and its lifetime. It owns
// the transport and the heartbeat task; its read loop and heartbeat
// share the write half under a mutex and push events onto the queue the
// supervisor polls.
type Session struct {
	id       string
	endpoint string
	authBody []byte
	cfg      sessionConfig
	events   *eventQueue
	log      zerolog.Logger

	// connMu guards conn and connClosed: the session goroutine
	// publishes the transport after dialing while Stop may close it
	// from the caller's goroutine.
	connMu     sync.Mutex
	conn       transport.Conn
	connClosed bool

	writeMu       sync.Mutex
	running       atomic.Bool
	stopRequested atomic.Bool
	state         atomic.Uint32
}

func newSession(endpoint string, authBody []byte, events *eventQueue, cfg sessionConfig) *Session {
	s := &Session{
		id:       xid.New().String(),
		endpoint: endpoint,
		authBody: authBody,
		cfg:      cfg,
		events:   events,
	}
	s.log = cfg.log.With().Str("session", s.id).Logger()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(uint32(st))
	s.log.Debug().Stringer("state", st).Msg("session state")
}

// Stop clears the running flag and closes the transport so a blocked
// read returns promptly. It does not wait for the session to finish;
// the DisconnectedEvent on the queue is the stop confirmation.
func (s *Session) Stop() {
	s.stopRequested.Store(true)
	s.running.Store(false)
	s.closeConn()
}

func (s *Session) setConn(c transport.Conn) {
	s.connMu.Lock()
	s.conn = c
	s.connMu.Unlock()
}

func (s *Session) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil && !s.connClosed {
		s.conn.Close()
		s.connClosed = true
	}
}

// run drives the whole lifecycle on the session's own goroutine.
func (s *Session) run() {
	s.setState(StateConnecting)
	conn, err := s.cfg.dial(s.endpoint)
	if err != nil {
		s.events.push(ErrorEvent{Err: fmt.Errorf("connect %s: %w", s.endpoint, err)})
		s.setState(StateClosed)
		return
	}
	s.setConn(conn)

	// A Stop that raced the dial saw a nil transport and closed
	// nothing; honor it here now that the connection exists.
	if s.stopRequested.Load() {
		s.closeConn()
		s.events.push(DisconnectedEvent{})
		s.setState(StateClosed)
		return
	}

	s.setState(StateAwaitingAuthAck)
	if err := s.send(packet.OpAuth, s.authBody); err != nil {
		s.events.push(ErrorEvent{Err: fmt.Errorf("send auth: %w", err)})
		s.closeConn()
		s.setState(StateClosed)
		return
	}

	// The session is usable once the auth frame is on the wire; the
	// AuthReply is logged when it arrives rather than gated on.
	s.running.Store(true)
	s.setState(StateOpen)
	s.events.push(ConnectedEvent{})
	s.log.Info().Str("endpoint", s.endpoint).Msg("session open")

	go s.heartbeatLoop()
	s.readLoop()
}

// send encodes and writes one frame. The heartbeat task and the
// handshake share the write half through this mutex.
func (s *Session) send(op packet.Op, body []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(packet.Encode(op, body))
	return err
}

func (s *Session) readLoop() {
	for {
		frame, err := packet.ReadFrame(s.conn)
		if err != nil {
			if !s.running.Load() || err == io.EOF {
				// Orderly end: peer closed or Stop was called.
				s.setState(StateClosing)
				s.events.push(DisconnectedEvent{})
				s.running.Store(false)
				s.closeConn()
				s.setState(StateClosed)
				s.log.Info().Msg("session closed")
			} else {
				// Transport or frame-stream corruption: Closing is
				// skipped, the failure is terminal.
				s.fail(fmt.Errorf("read frame: %w", err))
			}
			return
		}
		s.cfg.metrics.countFrame()

		msgs, err := frame.Messages()
		if err != nil {
			s.fail(fmt.Errorf("decode frame: %w", err))
			return
		}
		for _, m := range msgs {
			s.dispatch(m)
		}
	}
}

func (s *Session) fail(err error) {
	s.log.Error().Err(err).Msg("session failed")
	s.events.push(ErrorEvent{Err: err})
	s.running.Store(false)
	s.closeConn()
	s.setState(StateClosed)
}

func (s *Session) dispatch(m packet.Message) {
	switch m.Op {
	case packet.OpAuthReply:
		s.trace("auth acknowledged")
	case packet.OpHeartbeatReply:
		s.trace("heartbeat acknowledged")
	case packet.OpMessage:
		s.handleMessage(m.Body)
	default:
		s.trace(fmt.Sprintf("dropped frame with unhandled %s", m.Op))
	}
}

// handleMessage extracts the command tag from one message body. Parse
// failures drop that single message; one malformed message must not
// terminate the stream.
func (s *Session) handleMessage(body []byte) {
	if !utf8.Valid(body) {
		s.dropMessage("body is not valid UTF-8")
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		s.dropMessage(fmt.Sprintf("body is not a JSON record: %v", err))
		return
	}
	var rec struct {
		Cmd string `mapstructure:"cmd"`
	}
	if err := mapstructure.Decode(raw, &rec); err != nil || rec.Cmd == "" {
		s.dropMessage("record has no cmd field")
		return
	}
	s.cfg.metrics.countMessage()
	s.events.push(MessageEvent{Cmd: rec.Cmd, Payload: string(body)})
}

func (s *Session) dropMessage(reason string) {
	s.cfg.metrics.countDrop()
	s.trace("dropped message: " + reason)
}

func (s *Session) trace(msg string) {
	s.log.Debug().Msg(msg)
	s.events.push(TraceEvent{Message: msg})
}

package live

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blivekit/blive/transport"
)

// ErrAlreadyRunning is returned by Start while a previous session has
// not reached Closed.
var ErrAlreadyRunning = errors.New("live: a session is already running")

// Option configures a Supervisor.
type Option func(*sessionConfig)

// WithLogger sets the logger sessions log through. The default is a
// no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *sessionConfig) { c.log = log }
}

// WithDialer replaces the transport dialer. The default dials by
// endpoint URL scheme.
func WithDialer(d transport.Dialer) Option {
	return func(c *sessionConfig) { c.dial = d }
}

// WithHeartbeatInterval overrides the keep-alive period.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *sessionConfig) { c.heartbeatInterval = d }
}

// WithMetrics attaches Prometheus counters to sessions.
func WithMetrics(m *Metrics) Option {
	return func(c *sessionConfig) { c.metrics = m }
}

// Supervisor enforces at-most-one active session and owns the event
// queue the consumer polls. All session goroutines communicate with the
// consumer only through that queue.
type Supervisor struct {
	cfg    sessionConfig
	events *eventQueue

	mu      sync.Mutex
	session *Session
}

// NewSupervisor returns a Supervisor with no active session.
func NewSupervisor(opts ...Option) *Supervisor {
	cfg := sessionConfig{
		dial:              transport.Dial,
		log:               zerolog.Nop(),
		heartbeatInterval: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Supervisor{
		cfg:    cfg,
		events: newEventQueue(),
	}
}

// Start spawns a new session connecting to endpoint with the opaque
// auth payload from the platform's session-start call. It returns
// immediately; progress is reported through the event queue. Start
// fails with ErrAlreadyRunning while a previous session is not Closed.
func (sv *Supervisor) Start(endpoint string, authBody []byte) error {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.session != nil && sv.session.State() != StateClosed {
		return ErrAlreadyRunning
	}
	s := newSession(endpoint, authBody, sv.events, sv.cfg)
	sv.session = s
	go s.run()
	return nil
}

// Stop asks the active session to shut down, without blocking for it.
// The DisconnectedEvent on the queue confirms the stop.
func (sv *Supervisor) Stop() {
	sv.mu.Lock()
	s := sv.session
	sv.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// Poll returns the next queued event without blocking. It is meant to
// be called once per external tick by a single consumer.
func (sv *Supervisor) Poll() (Event, bool) {
	return sv.events.poll()
}

// State reports the current session's state, or StateIdle when no
// session was ever started.
func (sv *Supervisor) State() State {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.session == nil {
		return StateIdle
	}
	return sv.session.State()
}

// Package blive connects the two halves of the interaction platform:
// the signed REST control plane (package openapi) that opens an app
// session, and the duplex event stream (package live) that delivers
// chat, gifts and interactions in real time. A Client runs both: it
// starts the app session, dials the wss link the platform returns,
// keeps the app-level heartbeat going, and exposes the event stream
// through a single non-blocking Poll.
package blive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blivekit/blive/live"
	"github.com/blivekit/blive/openapi"
)

// DefaultAppHeartbeatInterval is the cadence the platform expects for
// the REST-level app heartbeat. It is distinct from the in-band frame
// heartbeat the live session sends on its own.
const DefaultAppHeartbeatInterval = 20 * time.Second

// ErrNoWssLink is returned when the platform's start response carries
// no websocket endpoint.
var ErrNoWssLink = errors.New("blive: start response has no wss link")

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for the client and its live sessions.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithLiveOptions forwards options to the live supervisor.
func WithLiveOptions(opts ...live.Option) Option {
	return func(c *Client) { c.liveOpts = append(c.liveOpts, opts...) }
}

// WithAppHeartbeatInterval overrides the REST heartbeat cadence.
func WithAppHeartbeatInterval(d time.Duration) Option {
	return func(c *Client) { c.hbInterval = d }
}

// Client is one application's connection to the platform.
type Client struct {
	api        *openapi.Client
	sup        *live.Supervisor
	log        zerolog.Logger
	liveOpts   []live.Option
	hbInterval time.Duration

	mu     sync.Mutex
	gameID string
	stop   chan struct{}
}

// New returns a Client driving the given control-plane client.
func New(api *openapi.Client, opts ...Option) *Client {
	c := &Client{
		api:        api,
		log:        zerolog.Nop(),
		hbInterval: DefaultAppHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sup = live.NewSupervisor(append([]live.Option{live.WithLogger(c.log)}, c.liveOpts...)...)
	return c
}

// Start opens an app session for an anchor's identity code and joins
// its event stream. The REST call runs to completion before the live
// session spawns; after that all progress arrives through Poll.
func (c *Client) Start(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gameID != "" {
		return live.ErrAlreadyRunning
	}

	resp, err := c.api.Start(ctx, code)
	if err != nil {
		return err
	}
	if len(resp.WebsocketInfo.WssLink) == 0 {
		c.api.End(ctx, resp.GameInfo.GameID)
		return ErrNoWssLink
	}
	endpoint := resp.WebsocketInfo.WssLink[0]
	if err := c.sup.Start(endpoint, []byte(resp.WebsocketInfo.AuthBody)); err != nil {
		c.api.End(ctx, resp.GameInfo.GameID)
		return err
	}

	c.gameID = resp.GameInfo.GameID
	c.stop = make(chan struct{})
	go c.keepAlive(c.gameID, c.stop)
	c.log.Info().Str("game_id", c.gameID).Str("endpoint", endpoint).Msg("app session started")
	return nil
}

// keepAlive drives the REST app heartbeat until Stop. A failed
// heartbeat is logged and retried on the next tick; the platform
// closes sessions it stops hearing from, which surfaces on the event
// stream as a disconnect.
func (c *Client) keepAlive(gameID string, stop <-chan struct{}) {
	ticker := time.NewTicker(c.hbInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.hbInterval)
			err := c.api.Heartbeat(ctx, gameID)
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Str("game_id", gameID).Msg("app heartbeat failed")
			}
		}
	}
}

// Stop ends both layers: the live session and the app session. The
// live session's DisconnectedEvent still arrives through Poll.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gameID == "" {
		return nil
	}
	close(c.stop)
	c.sup.Stop()
	err := c.api.End(ctx, c.gameID)
	c.log.Info().Str("game_id", c.gameID).Msg("app session ended")
	c.gameID = ""
	return err
}

// Poll returns the next queued live event without blocking.
func (c *Client) Poll() (live.Event, bool) {
	return c.sup.Poll()
}

// State reports the live session's lifecycle state.
func (c *Client) State() live.State {
	return c.sup.State()
}

// GameID returns the running app session's id, or "" when stopped.
func (c *Client) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

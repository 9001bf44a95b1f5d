// Package openapi is the REST control plane of the interaction
// platform: signed requests that start an app session, keep it alive,
// and end it. The duplex event stream itself lives in package live;
// this package only produces the endpoint and auth payload it needs.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production control-plane endpoint.
const DefaultBaseURL = "https://live-open.biliapi.com"

// BatchHeartbeatLimit is the platform's cap on game ids per batch call.
const BatchHeartbeatLimit = 200

// ErrBatchTooLarge is returned when a batch heartbeat exceeds
// BatchHeartbeatLimit ids.
var ErrBatchTooLarge = errors.New("openapi: too many game ids in one batch")

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different control plane, usually
// a test server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithClientLogger sets the request logger. The default is a no-op
// logger.
func WithClientLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// Client signs and sends control-plane requests for one application.
type Client struct {
	appID     int64
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
	log       zerolog.Logger

	// overridable for deterministic signature tests
	nonce func() string
	now   func() time.Time
}

// NewClient returns a Client for the given access key pair and app id.
func NewClient(keyID, keySecret string, appID int64, opts ...ClientOption) *Client {
	c := &Client{
		appID:     appID,
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   DefaultBaseURL,
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       zerolog.Nop(),
		nonce:     func() string { return xid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens an app session for an anchor's identity code. The
// response carries the session's game id and the websocket endpoint
// plus auth payload for the event stream.
func (c *Client) Start(ctx context.Context, code string) (*StartResponse, error) {
	var out StartResponse
	err := c.do(ctx, "/v2/app/start", map[string]any{
		"code":   code,
		"app_id": c.appID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// End closes an app session.
func (c *Client) End(ctx context.Context, gameID string) error {
	return c.do(ctx, "/v2/app/end", map[string]any{
		"app_id":  c.appID,
		"game_id": gameID,
	}, nil)
}

// Heartbeat keeps one app session alive. The platform expects a call
// every 20 seconds.
func (c *Client) Heartbeat(ctx context.Context, gameID string) error {
	return c.do(ctx, "/v2/app/heartbeat", map[string]any{
		"game_id": gameID,
	}, nil)
}

// BatchHeartbeat keeps up to BatchHeartbeatLimit app sessions alive in
// one call and reports the ids the platform rejected.
func (c *Client) BatchHeartbeat(ctx context.Context, gameIDs []string) (*BatchHeartbeatResponse, error) {
	if len(gameIDs) > BatchHeartbeatLimit {
		return nil, ErrBatchTooLarge
	}
	var out BatchHeartbeatResponse
	err := c.do(ctx, "/v2/app/batchHeartbeat", map[string]any{
		"game_ids": gameIDs,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// do signs and posts one JSON body, unwraps the response envelope, and
// decodes its data into out when asked for.
func (c *Client) do(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("openapi: marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("openapi: build request: %w", err)
	}
	for k, v := range c.signedHeaders(payload) {
		req.Header.Set(k, v)
	}

	c.log.Debug().Str("path", path).Msg("control plane request")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openapi: %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openapi: %s: read response: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("openapi: %s: decode envelope: %w", path, err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	return decodeData(env.Data, out)
}

// decodeData maps the loosely-typed envelope data onto a typed
// response. JSON numbers arrive as float64, so decoding is weakly
// typed.
func decodeData(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("openapi: build decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("openapi: decode data: %w", err)
	}
	return nil
}

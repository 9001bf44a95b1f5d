// Package transport dials the duplex connection a live session runs on.
// Endpoints are URLs; the scheme selects the transport. The interaction
// platform hands out wss:// links, the rest exist for tooling and tests.
package transport

import (
	"fmt"
	"io"
	"net/url"
)

// Conn is the duplex byte stream a session owns for its lifetime.
type Conn = io.ReadWriteCloser

// A Dialer connects to an endpoint URL and returns a Conn.
type Dialer func(endpoint string) (Conn, error)

// Dialers maps URL schemes to Dialers and includes all builtin
// transports.
var Dialers map[string]Dialer

func init() {
	Dialers = map[string]Dialer{
		"ws":   DialWS,
		"wss":  DialWS,
		"tcp":  DialTCP,
		"quic": DialQUIC,
	}
}

// Dial connects to an endpoint using the transport registered for its
// URL scheme.
func Dial(endpoint string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: parse endpoint: %w", err)
	}
	d, ok := Dialers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("transport: scheme %q not in available Dialers", u.Scheme)
	}
	return d(endpoint)
}

package transport

import (
	"fmt"
	"net/url"

	"golang.org/x/net/websocket"
)

// DialWS connects over WebSocket. The endpoint may be any ws:// or
// wss:// URL, including the path and port the platform's session-start
// call hands out.
func DialWS(endpoint string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: parse endpoint: %w", err)
	}
	origin := "https://" + u.Host
	if u.Scheme == "ws" {
		origin = "http://" + u.Host
	}
	config, err := websocket.NewConfig(endpoint, origin)
	if err != nil {
		return nil, err
	}
	ws, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return ws, nil
}

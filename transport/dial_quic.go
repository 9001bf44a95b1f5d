package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"

	"github.com/quic-go/quic-go"
)

var defaultTLSConfig = tls.Config{
	NextProtos: []string{"blive-quic"},
}

// DialQUIC connects over QUIC, carrying frames on a single
// bidirectional stream. The endpoint is quic://host:port.
func DialQUIC(endpoint string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: parse endpoint: %w", err)
	}
	ctx := context.Background()
	conn, err := quic.DialAddr(ctx, u.Host, defaultTLSConfig.Clone(), nil)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "open stream")
		return nil, err
	}
	return &quicConn{conn: conn, stream: stream}, nil
}

type quicConn struct {
	conn   quic.Connection
	stream quic.Stream
}

func (c *quicConn) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *quicConn) Write(p []byte) (int, error) { return c.stream.Write(p) }

func (c *quicConn) Close() error {
	c.stream.Close()
	return c.conn.CloseWithError(0, "session closed")
}

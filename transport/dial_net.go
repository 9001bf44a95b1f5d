package transport

import (
	"fmt"
	"net"
	"net/url"
)

// DialTCP connects over plain TCP. The endpoint is tcp://host:port.
// Useful against local frame servers in tests and tooling.
func DialTCP(endpoint string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: parse endpoint: %w", err)
	}
	return net.Dial("tcp", u.Host)
}

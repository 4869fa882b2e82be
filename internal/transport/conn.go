package transport

import (
	"net"
	"sync/atomic"
	"time"
)

// connTransport adapts a net.Conn, emulating a serial read timeout with a
// per-read deadline.
type connTransport struct {
	net.Conn
	timeout atomic.Int64
}

// FromConn wraps conn as a Transport.
func FromConn(conn net.Conn) Transport {
	return &connTransport{Conn: conn}
}

func (c *connTransport) SetReadTimeout(d time.Duration) error {
	c.timeout.Store(int64(d))
	return nil
}

// Read applies the read timeout, if any, and reads. A failure to set the
// deadline is not returned: a conn whose peer has gone away refuses new
// deadlines, and the read itself reports the real cause (io.EOF).
func (c *connTransport) Read(p []byte) (int, error) {
	if d := time.Duration(c.timeout.Load()); d > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(d))
	}
	return c.Conn.Read(p)
}

// Pipe returns a connected in-memory pair: the host side as a Transport and
// the device side as a plain net.Conn.
func Pipe() (Transport, net.Conn) {
	host, device := net.Pipe()
	return FromConn(host), device
}

package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrReceiveTimeout indicates no datagram arrived within the deadline.
var ErrReceiveTimeout = errors.New("transport: receive timeout")

// Conn is a connected UDP socket toward one CoAP server. It is used by
// the client side; the server side uses Server.
type Conn struct {
	conn    *net.UDPConn
	maxSize int
}

// Dial connects to a CoAP server at address ("host:port"; a bare host
// gets the default CoAP port).
func Dial(address string) (*Conn, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = fmt.Sprintf("%s:%d", address, DefaultPort)
	}
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", address, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	return &Conn{conn: conn, maxSize: DefaultMaxDatagramSize}, nil
}

// Send transmits one datagram.
func (c *Conn) Send(data []byte) error {
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Receive waits up to timeout for the next datagram. A zero timeout
// blocks indefinitely.
func (c *Conn) Receive(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("transport: set deadline: %w", err)
	}

	buf := make([]byte, c.maxSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, ErrReceiveTimeout
		}
		return nil, fmt.Errorf("transport: receive: %w", err)
	}
	return buf[:n], nil
}

// RemoteAddr returns the server address this connection points at.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Package fakenet provides in-memory net.PacketConn, net.Conn and
// net.Listener implementations for exercising the portal services without
// sockets.
package fakenet

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"time"
)

// timeoutError satisfies net.Error with Timeout() == true, which is what a
// real socket returns when a read deadline passes with nothing queued.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ErrTimeout is returned by reads and accepts with nothing queued.
var ErrTimeout net.Error = timeoutError{}

// ErrWriteFailed is returned by PacketConn writes configured to fail.
var ErrWriteFailed = errors.New("fakenet: write failed")

// Datagram is a packet with its peer address.
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// PacketConn is a queue-backed net.PacketConn.
type PacketConn struct {
	mu         sync.Mutex
	local      net.Addr
	inbox      []Datagram
	sent       []Datagram
	failWrites int
	closed     bool
}

// NewPacketConn creates a PacketConn bound to local.
func NewPacketConn(local net.Addr) *PacketConn {
	return &PacketConn{local: local}
}

// Deliver queues a datagram for the next ReadFrom.
func (c *PacketConn) Deliver(data []byte, from net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbox = append(c.inbox, Datagram{Data: append([]byte(nil), data...), Addr: from})
}

// Sent returns every datagram written so far.
func (c *PacketConn) Sent() []Datagram {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Datagram(nil), c.sent...)
}

// FailWrites makes the next n writes return ErrWriteFailed.
func (c *PacketConn) FailWrites(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = n
}

func (c *PacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, net.ErrClosed
	}
	if len(c.inbox) == 0 {
		return 0, nil, ErrTimeout
	}
	d := c.inbox[0]
	c.inbox = c.inbox[1:]
	return copy(p, d.Data), d.Addr, nil
}

func (c *PacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.failWrites > 0 {
		c.failWrites--
		return 0, ErrWriteFailed
	}
	c.sent = append(c.sent, Datagram{Data: append([]byte(nil), p...), Addr: addr})
	return len(p), nil
}

func (c *PacketConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *PacketConn) LocalAddr() net.Addr              { return c.local }
func (c *PacketConn) SetDeadline(time.Time) error      { return nil }
func (c *PacketConn) SetReadDeadline(time.Time) error  { return nil }
func (c *PacketConn) SetWriteDeadline(time.Time) error { return nil }

// Conn is a net.Conn whose reads come from a fixed request and whose writes
// are captured.
type Conn struct {
	in     *bytes.Reader
	out    bytes.Buffer
	remote net.Addr
	local  net.Addr
	closed bool
}

// NewConn creates a connection that will read request.
func NewConn(request string, remote net.Addr) *Conn {
	return &Conn{
		in:     bytes.NewReader([]byte(request)),
		remote: remote,
		local:  &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 80},
	}
}

// Written returns everything written to the connection.
func (c *Conn) Written() string { return c.out.String() }

// Closed reports whether Close was called.
func (c *Conn) Closed() bool { return c.closed }

func (c *Conn) Read(p []byte) (int, error) {
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.in.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.out.Write(p)
}

func (c *Conn) Close() error {
	c.closed = true
	return nil
}

func (c *Conn) LocalAddr() net.Addr              { return c.local }
func (c *Conn) RemoteAddr() net.Addr             { return c.remote }
func (c *Conn) SetDeadline(time.Time) error      { return nil }
func (c *Conn) SetReadDeadline(time.Time) error  { return nil }
func (c *Conn) SetWriteDeadline(time.Time) error { return nil }

// Listener hands out queued connections.
type Listener struct {
	mu     sync.Mutex
	addr   net.Addr
	queue  []net.Conn
	closed bool
}

// NewListener creates a listener reporting addr.
func NewListener(addr net.Addr) *Listener {
	return &Listener{addr: addr}
}

// Enqueue makes conn available to the next Accept.
func (l *Listener) Enqueue(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, conn)
}

// Pending returns the number of queued connections.
func (l *Listener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Listener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, net.ErrClosed
	}
	if len(l.queue) == 0 {
		return nil, ErrTimeout
	}
	c := l.queue[0]
	l.queue = l.queue[1:]
	return c, nil
}

// SetDeadline matches *net.TCPListener so pollers can use it unchanged.
func (l *Listener) SetDeadline(time.Time) error { return nil }

func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Listener) Addr() net.Addr { return l.addr }

// Package socket provides a deadline-bounded stream endpoint: create,
// optional TLS handshake, write-with-deadline, read-with-deadline, close.
package socket

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// ErrorKind classifies a socket-layer failure.
type ErrorKind int

const (
	ConnectTimeout ErrorKind = iota
	ConnectRefused
	WriteTimeout
	ReadTimeout
	PeerClosed
	TLSHandshake
)

// Error is the socket package's error type.
type Error struct {
	Kind ErrorKind
	Addr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("socket: %s: %v", e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Socket wraps a net.Conn with last-used tracking for the idle policy
// and deadline-bounded I/O.
type Socket struct {
	net.Conn
	Addr     string
	lastUsed time.Time
}

// Dialer establishes outbound connections, optionally wrapped in TLS.
type Dialer struct {
	Timeout     time.Duration
	KeepAlive   time.Duration
	TLSConfig   *tls.Config
	TLSLoginOnly bool // TLS authenticates the connection, then reverts to cleartext
}

// NewDialer creates a dialer with the given timeout and keepalive.
func NewDialer(timeout, keepAlive time.Duration) *Dialer {
	return &Dialer{Timeout: timeout, KeepAlive: keepAlive}
}

// Dial connects to addr (already resolved host:port), performing a TLS
// handshake first if a TLS config is set.
func (d *Dialer) Dial(ctx context.Context, addr string) (*Socket, error) {
	nd := &net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}

	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		kind := ConnectRefused
		if ctx.Err() == context.DeadlineExceeded {
			kind = ConnectTimeout
		}
		return nil, &Error{Kind: kind, Addr: addr, Err: err}
	}

	if d.TLSConfig != nil {
		tlsConn := tls.Client(conn, d.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, &Error{Kind: TLSHandshake, Addr: addr, Err: err}
		}
		if d.TLSLoginOnly {
			// TLS was used only to authenticate; subsequent commands use the
			// underlying cleartext conn. The handshake still happened above.
			return &Socket{Conn: conn, Addr: addr, lastUsed: time.Now()}, nil
		}
		return &Socket{Conn: tlsConn, Addr: addr, lastUsed: time.Now()}, nil
	}

	return &Socket{Conn: conn, Addr: addr, lastUsed: time.Now()}, nil
}

// WriteDeadline writes b, bounded by deadline.
func (s *Socket) WriteDeadline(b []byte, deadline time.Time) (int, error) {
	if err := s.Conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := s.Conn.Write(b)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, &Error{Kind: WriteTimeout, Addr: s.Addr, Err: err}
		}
		return n, &Error{Kind: PeerClosed, Addr: s.Addr, Err: err}
	}
	s.lastUsed = time.Now()
	return n, nil
}

// ReadDeadline reads into b, bounded by deadline.
func (s *Socket) ReadDeadline(b []byte, deadline time.Time) (int, error) {
	if err := s.Conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := s.Conn.Read(b)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, &Error{Kind: ReadTimeout, Addr: s.Addr, Err: err}
		}
		return n, &Error{Kind: PeerClosed, Addr: s.Addr, Err: err}
	}
	s.lastUsed = time.Now()
	return n, nil
}

// ReadFullDeadline reads exactly len(b) bytes, bounded by deadline.
func (s *Socket) ReadFullDeadline(b []byte, deadline time.Time) error {
	total := 0
	for total < len(b) {
		n, err := s.ReadDeadline(b[total:], deadline)
		total += n
		if err != nil {
			return err
		}
	}
	return nil
}

// LastUsed returns the timestamp of the last successful I/O.
func (s *Socket) LastUsed() time.Time { return s.lastUsed }

// Touch marks the socket as used now, e.g. after a pool acquire.
func (s *Socket) Touch() { s.lastUsed = time.Now() }

// Usable reports whether the socket is still within the idle window:
// usable if maxIdle==0, or time since last use <= maxIdle.
func (s *Socket) Usable(maxIdle time.Duration) bool {
	if maxIdle == 0 {
		return true
	}
	return time.Since(s.lastUsed) <= maxIdle
}

// Trimmable reports whether the socket is eligible for close when the
// pool exceeds its configured minimum. Equivalent to Usable: true for a
// socket still within the idle window. Pool.TrimIdle does not consult it.
func (s *Socket) Trimmable(maxIdle time.Duration) bool {
	return s.Usable(maxIdle)
}

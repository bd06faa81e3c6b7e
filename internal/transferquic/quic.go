// Package transferquic carries transfer sessions over QUIC. One QUIC
// connection backs one session; every transfer stream maps to one
// bidirectional QUIC stream.
package transferquic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/seawire/seawire/internal/transfer"
)

var (
	_ transfer.Transport = (*Transport)(nil)
	_ transfer.Conn      = (*Conn)(nil)
	_ transfer.Stream    = (*Stream)(nil)
)

// Transport is a transfer.Transport backed by QUIC. A listening
// transport accepts connections; a dialing transport wraps the one
// connection it was built from.
type Transport struct {
	mu       sync.Mutex
	listener *quic.Listener
	conn     *quic.Conn
	logger   *slog.Logger
	closed   bool
}

// Listen binds a UDP socket on addr and returns a listening transport.
// Use Addr to learn the bound address when addr has port 0.
func Listen(addr string, logger *slog.Logger) (*Transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	tlsConf, err := ServerTLSConfig()
	if err != nil {
		udpConn.Close()
		return nil, err
	}
	listener, err := quic.Listen(udpConn, tlsConf, DefaultQUICConfig())
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	logger.Info("quic listener ready", "addr", listener.Addr())
	return &Transport{listener: listener, logger: logger}, nil
}

// DialAddr connects to a listening peer at addr and returns a dialing
// transport wrapping the established connection.
func DialAddr(ctx context.Context, addr string, logger *slog.Logger) (*Transport, error) {
	conn, err := quic.DialAddr(ctx, addr, ClientTLSConfig(), DefaultQUICConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	logger.Info("quic connection established", "remote_addr", conn.RemoteAddr())
	return &Transport{conn: conn, logger: logger}, nil
}

// Addr returns the listener's bound address, or nil for a dialer.
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Dial returns the established connection. peerID is ignored; the
// connection was fixed when the transport was built.
func (t *Transport) Dial(ctx context.Context, peerID string) (transfer.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, io.ErrClosedPipe
	}
	if t.conn == nil {
		return nil, fmt.Errorf("Dial called on listening transport")
	}
	return &Conn{conn: t.conn, logger: t.logger}, nil
}

// Accept waits for the next inbound connection.
func (t *Transport) Accept(ctx context.Context) (transfer.Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	listener := t.listener
	t.mu.Unlock()

	if listener == nil {
		return nil, fmt.Errorf("Accept called on dialing transport")
	}

	conn, err := listener.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	}
	t.logger.Info("quic connection accepted", "remote_addr", conn.RemoteAddr())
	return &Conn{conn: conn, logger: t.logger}, nil
}

// Close shuts the listener down. A dialer's connection belongs to the
// Conn handed out by Dial and is closed there.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			return fmt.Errorf("failed to close listener: %w", err)
		}
	}
	return nil
}

// Conn adapts a quic.Conn to transfer.Conn.
type Conn struct {
	mu     sync.Mutex
	conn   *quic.Conn
	logger *slog.Logger
	closed bool
}

// OpenStream opens a bidirectional stream, blocking until the peer's
// stream limit allows it.
func (c *Conn) OpenStream(ctx context.Context) (transfer.Stream, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	conn := c.conn
	c.mu.Unlock()

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	c.logger.Debug("stream opened", "stream_id", stream.StreamID())
	return &Stream{stream: stream}, nil
}

// AcceptStream waits for the next inbound stream.
func (c *Conn) AcceptStream(ctx context.Context) (transfer.Stream, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	conn := c.conn
	c.mu.Unlock()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to accept stream: %w", err)
	}
	c.logger.Debug("stream accepted", "stream_id", stream.StreamID())
	return &Stream{stream: stream}, nil
}

// RemoteAddr returns the peer's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ExportKeyingMaterial derives secret bytes bound to this connection's
// TLS session, shared with the peer. The join-code handshake builds its
// proof on top of this.
func (c *Conn) ExportKeyingMaterial(label string, length int) ([]byte, error) {
	state := c.conn.ConnectionState().TLS
	return state.ExportKeyingMaterial(label, nil, length)
}

// Close terminates the connection immediately. CloseWithError discards
// stream data not yet delivered, so callers must not invoke it while a
// message still in flight matters; the session protocol confirms
// delivery of its completion message before closing.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.conn.CloseWithError(0, "done"); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Stream adapts a quic.Stream to transfer.Stream.
type Stream struct {
	mu     sync.Mutex
	stream *quic.Stream
	closed bool
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.stream.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	s.mu.Unlock()
	return s.stream.Write(p)
}

// Close closes the write side, which surfaces as EOF at the peer once
// buffered data is delivered. The read side drains on its own.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

package transfer

import (
	"context"
	"io"
	"net"
	"sync"
)

// MockTransport is an in-memory Transport for tests. NewMockPair wires
// two instances together; streams are backed by io.Pipe, so delivery
// is ordered, reliable, and naturally fragmented by read size.
type MockTransport struct {
	mu       sync.Mutex
	accept   chan *mockConn
	peer     chan *mockConn
	closed   bool
}

// NewMockPair returns two connected mock transports.
func NewMockPair() (*MockTransport, *MockTransport) {
	a := make(chan *mockConn, 4)
	b := make(chan *mockConn, 4)
	return &MockTransport{accept: a, peer: b}, &MockTransport{accept: b, peer: a}
}

var (
	_ Transport = (*MockTransport)(nil)
	_ Conn      = (*mockConn)(nil)
	_ Stream    = (*mockStream)(nil)
)

// Dial creates a connection pair and hands the remote half to the peer.
func (t *MockTransport) Dial(ctx context.Context, peerID string) (Conn, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, io.ErrClosedPipe
	}

	local := newMockConn()
	remote := newMockConn()
	local.other = remote
	remote.other = local

	select {
	case t.peer <- remote:
		return local, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Accept waits for a connection dialed by the peer transport.
func (t *MockTransport) Accept(ctx context.Context) (Conn, error) {
	select {
	case conn, ok := <-t.accept:
		if !ok || conn == nil {
			return nil, io.ErrClosedPipe
		}
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the transport closed. Existing connections keep working
// until closed individually.
func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

type mockConn struct {
	mu      sync.Mutex
	other   *mockConn
	streams chan *mockStream
	closed  bool
}

func newMockConn() *mockConn {
	return &mockConn{streams: make(chan *mockStream, 16)}
}

func (c *mockConn) OpenStream(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, io.ErrClosedPipe
	}

	// Two pipes make one bidirectional stream.
	outR, outW := io.Pipe()
	inR, inW := io.Pipe()
	local := &mockStream{reader: inR, writer: outW}
	remote := &mockStream{reader: outR, writer: inW}

	select {
	case c.other.streams <- remote:
		return local, nil
	case <-ctx.Done():
		local.Close()
		remote.Close()
		return nil, ctx.Err()
	}
}

func (c *mockConn) AcceptStream(ctx context.Context) (Stream, error) {
	select {
	case s, ok := <-c.streams:
		if !ok || s == nil {
			return nil, io.ErrClosedPipe
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *mockConn) RemoteAddr() net.Addr {
	return &net.UnixAddr{Name: "mock", Net: "mock"}
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// mockStream signals EOF to the peer when closed, matching how real
// transports end a stream.
type mockStream struct {
	mu     sync.Mutex
	reader *io.PipeReader
	writer *io.PipeWriter
	closed bool
}

func (s *mockStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *mockStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return s.writer.Write(p)
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.Close()
	// Unblock a peer stuck writing to a stream nobody reads anymore.
	s.reader.CloseWithError(io.ErrClosedPipe)
	return nil
}

package transfer

import (
	"context"
	"io"
	"net"
)

// Transport hands the application an established, secure path to one
// peer. Key agreement, rendezvous, and relay negotiation all happen
// below this interface; the transfer core only ever sees ready-to-use
// byte streams.
type Transport interface {
	// Dial establishes a connection to the peer.
	Dial(ctx context.Context, peerID string) (Conn, error)

	// Accept waits for an incoming connection from the peer.
	Accept(ctx context.Context) (Conn, error)

	// Close releases the transport and every connection it produced.
	Close() error
}

// Conn is one multiplexed session with the peer. The first stream of a
// session, opened by the sending side, is the control stream; every
// later stream carries exactly one file transfer.
type Conn interface {
	// OpenStream opens a new ordered, reliable byte stream to the peer.
	OpenStream(ctx context.Context) (Stream, error)

	// AcceptStream yields the next stream the peer opened. It may be
	// called repeatedly; each call returns a fresh stream.
	AcceptStream(ctx context.Context) (Stream, error)

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Close tears the session down. Data still buffered on open
	// streams may be discarded; the session protocol confirms delivery
	// of its final message before Close is called.
	Close() error
}

// Stream is one ordered, reliable byte stream within a session.
type Stream interface {
	io.Reader
	io.Writer
	Close() error
}

package transfer

import "errors"

var (
	// ErrOverflow indicates the peer delivered more payload bytes than
	// the header declared. The excess is never written to the sink.
	ErrOverflow = errors.New("payload exceeds declared size")

	// ErrPrematureClose indicates a stream closed before its transfer
	// reached a terminal success state.
	ErrPrematureClose = errors.New("stream closed before transfer completed")

	// ErrPrematureAck indicates an ack arrived before the sender had
	// finished reading and hashing its source.
	ErrPrematureAck = errors.New("ack received before payload hash was finalized")

	// ErrHashMismatch indicates the receiver's digest does not match
	// the digest the sender computed over the transmitted bytes.
	ErrHashMismatch = errors.New("ack digest does not match sent data")

	// ErrDataAfterDone indicates bytes arrived on a transfer stream
	// after its state machine completed.
	ErrDataAfterDone = errors.New("data received after transfer completed")
)

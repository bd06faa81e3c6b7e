package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/seawire/seawire/internal/bufpool"
	"github.com/seawire/seawire/internal/wire"
)

// chunkBufSize is the read buffer size of the streaming copy loops.
const chunkBufSize = 64 * 1024

var chunkPool = bufpool.New(chunkBufSize)

// ReceiveState is the phase of one incoming transfer stream.
type ReceiveState int

const (
	ReceiveAwaitingHeader ReceiveState = iota
	ReceiveStreaming
	ReceiveComplete
	ReceiveFailed
)

// Receiver is the state machine for one incoming transfer stream. It
// is push-based: the stream driver feeds it raw chunks exactly as the
// transport delivered them, at any fragmentation, and the machine
// buffers until it can act. Header parsing, sink resolution, digest
// accumulation, and ack emission all live here; the driver only moves
// bytes.
type Receiver struct {
	dir    string
	logger *slog.Logger

	state     ReceiveState
	dec       wire.Decoder
	sink      *os.File
	path      string
	remaining uint64
	digest    *Digest
	failure   error
}

// NewReceiver creates a receive state machine writing into dir.
func NewReceiver(dir string, logger *slog.Logger) *Receiver {
	return &Receiver{
		dir:    dir,
		logger: logger,
		state:  ReceiveAwaitingHeader,
	}
}

// State returns the current phase of the machine.
func (r *Receiver) State() ReceiveState {
	return r.state
}

// Path returns the destination path chosen for this transfer. It is
// empty until the header has been accepted.
func (r *Receiver) Path() string {
	return r.path
}

// HandleData advances the machine with the next chunk from the stream.
// When the transfer completes it returns the encoded ack frame that
// must be written back on the same stream; otherwise it returns nil.
// Any returned error is fatal to this transfer and no ack is ever
// produced after it.
func (r *Receiver) HandleData(data []byte) ([]byte, error) {
	switch r.state {
	case ReceiveFailed:
		return nil, r.failure
	case ReceiveComplete:
		if len(data) > 0 {
			return nil, r.fail(fmt.Errorf("%w: %d bytes after completion", ErrDataAfterDone, len(data)))
		}
		return nil, nil
	case ReceiveAwaitingHeader:
		payload, ok, err := r.dec.Feed(data)
		if err != nil {
			return nil, r.fail(err)
		}
		if !ok {
			return nil, nil
		}
		header, err := wire.DecodeHeader(payload)
		if err != nil {
			return nil, r.fail(err)
		}
		if err := r.openSink(header); err != nil {
			return nil, r.fail(err)
		}
		r.remaining = header.Size
		r.digest = NewDigest()
		r.state = ReceiveStreaming
		r.logger.Debug("header accepted", "name", header.Name, "size", header.Size, "path", r.path)
		// A read may have delivered bytes past the header frame; they
		// are the start of the payload, not another frame.
		return r.consume(r.dec.Rest())
	default:
		return r.consume(data)
	}
}

// consume streams payload bytes: digest first, then sink, then the
// remaining counter. Overflow is detected before anything is written.
func (r *Receiver) consume(chunk []byte) ([]byte, error) {
	if uint64(len(chunk)) > r.remaining {
		return nil, r.fail(fmt.Errorf("%w: declared %d more bytes, got %d",
			ErrOverflow, r.remaining, len(chunk)))
	}
	if len(chunk) > 0 {
		r.digest.Write(chunk)
		if _, err := r.sink.Write(chunk); err != nil {
			return nil, r.fail(fmt.Errorf("failed to write to %s: %w", r.path, err))
		}
		r.remaining -= uint64(len(chunk))
	}
	if r.remaining > 0 {
		return nil, nil
	}
	return r.finish()
}

// finish closes the sink and produces the ack frame.
func (r *Receiver) finish() ([]byte, error) {
	if err := r.sink.Close(); err != nil {
		return nil, r.fail(fmt.Errorf("failed to close %s: %w", r.path, err))
	}
	payload, err := wire.EncodeMessage(wire.Ack{Ack: wire.AckOK, SHA256: r.digest.Sum()})
	if err != nil {
		return nil, r.fail(err)
	}
	r.state = ReceiveComplete
	return wire.EncodeFrame(payload), nil
}

// HandleClose reacts to the stream ending. Closing before completion
// is a protocol failure; after completion it is the normal teardown.
func (r *Receiver) HandleClose() error {
	switch r.state {
	case ReceiveComplete:
		return nil
	case ReceiveFailed:
		return r.failure
	default:
		return r.fail(ErrPrematureClose)
	}
}

func (r *Receiver) fail(err error) error {
	if r.state == ReceiveFailed {
		return r.failure
	}
	r.state = ReceiveFailed
	r.failure = err
	if r.sink != nil {
		// The sink may hold a partial write; it is left on disk but
		// reported as failed.
		_ = r.sink.Close()
	}
	return err
}

// openSink resolves the destination without ever overwriting an
// existing file: on collision a counter suffix is appended to the
// name until a free one is found.
func (r *Receiver) openSink(header wire.Header) error {
	name := header.Name
	for count := 1; ; count++ {
		path := filepath.Join(r.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			r.sink = f
			r.path = path
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		name = fmt.Sprintf("%s (%d)", header.Name, count)
	}
}

// RunReceiver attaches a fresh receive state machine to stream and
// drives it until the transfer completes or fails. It returns the
// destination path (empty if the header was never accepted).
func RunReceiver(ctx context.Context, s Stream, dir string, logger *slog.Logger) (string, error) {
	defer s.Close()

	rx := NewReceiver(dir, logger)
	buf := chunkPool.Get()
	defer chunkPool.Put(buf)

	for {
		select {
		case <-ctx.Done():
			return rx.Path(), ctx.Err()
		default:
		}

		n, err := s.Read(buf)
		if n > 0 {
			ack, herr := rx.HandleData(buf[:n])
			if herr != nil {
				return rx.Path(), herr
			}
			if ack != nil {
				if werr := writeFull(s, ack); werr != nil {
					return rx.Path(), werr
				}
				logger.Info("file received", "path", rx.Path(), "bytes", rx.digest.Bytes())
				return rx.Path(), nil
			}
		}
		if err != nil {
			if err == io.EOF {
				if cerr := rx.HandleClose(); cerr != nil {
					return rx.Path(), cerr
				}
				return rx.Path(), nil
			}
			return rx.Path(), fmt.Errorf("failed to read from stream: %w", err)
		}
	}
}

// writeFull writes buf to s, retrying short writes.
func writeFull(s Stream, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := s.Write(buf[written:])
		if err != nil {
			return fmt.Errorf("failed to write to stream: %w", err)
		}
		written += n
	}
	return nil
}

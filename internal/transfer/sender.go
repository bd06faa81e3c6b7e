package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/seawire/seawire/internal/wire"
)

// SendState is the phase of one outgoing transfer stream.
type SendState int

const (
	SendSendingHeader SendState = iota
	SendStreaming
	SendAwaitingAck
	SendComplete
	SendFailed
)

// Sender is the state machine for one outgoing transfer. The driver
// writes the header frame and payload chunks it hands out, then feeds
// back whatever the peer sends until the ack frame is complete. The
// expected digest is finalized only after the whole source has been
// absorbed; an ack that arrives earlier is a protocol violation.
type Sender struct {
	name string
	size uint64

	state    SendState
	digest   *Digest
	expected string
	dec      wire.Decoder
	failure  error
}

// NewSender creates a send state machine for one file.
func NewSender(name string, size uint64) *Sender {
	return &Sender{
		name:   name,
		size:   size,
		state:  SendSendingHeader,
		digest: NewDigest(),
	}
}

// State returns the current phase of the machine.
func (s *Sender) State() SendState {
	return s.state
}

// HeaderFrame encodes the header frame. It must be written to the
// stream before any payload byte.
func (s *Sender) HeaderFrame() ([]byte, error) {
	if err := wire.ValidateName(s.name); err != nil {
		return nil, s.fail(err)
	}
	payload, err := wire.EncodeMessage(wire.Header{
		Type: wire.HeaderTypeFile,
		Name: s.name,
		Size: s.size,
	})
	if err != nil {
		return nil, s.fail(err)
	}
	s.state = SendStreaming
	return wire.EncodeFrame(payload), nil
}

// Absorb accounts for a payload chunk about to be transmitted. The
// digest covers exactly the transmitted bytes, in transmission order.
func (s *Sender) Absorb(chunk []byte) {
	s.digest.Write(chunk)
}

// FinishPayload finalizes the expected digest once the source is
// exhausted and moves the machine to AwaitingAck. It returns the hex
// digest the peer must echo back.
func (s *Sender) FinishPayload() string {
	s.expected = s.digest.Sum()
	s.state = SendAwaitingAck
	return s.expected
}

// HandleAckData feeds bytes received from the peer into the ack frame
// buffer. It returns true once the ack has been received and verified.
func (s *Sender) HandleAckData(data []byte) (bool, error) {
	if s.state == SendFailed {
		return false, s.failure
	}
	if s.state == SendComplete {
		return false, s.fail(ErrDataAfterDone)
	}
	payload, ok, err := s.dec.Feed(data)
	if err != nil {
		return false, s.fail(err)
	}
	if !ok {
		return false, nil
	}
	if s.expected == "" {
		return false, s.fail(ErrPrematureAck)
	}
	ack, err := wire.DecodeAck(payload)
	if err != nil {
		return false, s.fail(err)
	}
	if ack.Ack != wire.AckOK {
		return false, s.fail(fmt.Errorf("ack not ok: %q", ack.Ack))
	}
	if ack.SHA256 != s.expected {
		return false, s.fail(fmt.Errorf("%w: got %s, expected %s",
			ErrHashMismatch, ack.SHA256, s.expected))
	}
	s.state = SendComplete
	return true, nil
}

// HandleClose reacts to the stream ending before Complete.
func (s *Sender) HandleClose() error {
	switch s.state {
	case SendComplete:
		return nil
	case SendFailed:
		return s.failure
	default:
		return s.fail(ErrPrematureClose)
	}
}

func (s *Sender) fail(err error) error {
	if s.state == SendFailed {
		return s.failure
	}
	s.state = SendFailed
	s.failure = err
	return err
}

// RunSender transfers the file at path over stream and blocks until
// the peer's ack has been verified or the transfer fails.
func RunSender(ctx context.Context, s Stream, path string, logger *slog.Logger) error {
	defer s.Close()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	tx := NewSender(filepath.Base(path), uint64(info.Size()))

	header, err := tx.HeaderFrame()
	if err != nil {
		return err
	}
	if err := writeFull(s, header); err != nil {
		return err
	}

	buf := chunkPool.Get()
	defer chunkPool.Put(buf)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, rerr := file.Read(buf)
		if n > 0 {
			tx.Absorb(buf[:n])
			if werr := writeFull(s, buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("failed to read file: %w", rerr)
		}
	}

	expected := tx.FinishPayload()
	logger.Debug("payload sent", "name", info.Name(), "size", info.Size(), "sha256", expected)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, rerr := s.Read(buf)
		if n > 0 {
			done, herr := tx.HandleAckData(buf[:n])
			if herr != nil {
				return herr
			}
			if done {
				return nil
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return tx.HandleClose()
			}
			return fmt.Errorf("failed to read ack: %w", rerr)
		}
	}
}

package transfer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/seawire/seawire/internal/wire"
)

// ControlChannel runs the session-level protocol over one long-lived
// stream. It is framed like the transfer streams but shares no buffer
// with them. Exactly one terminal value is ever delivered: WaitDone
// fires once and every later call returns the same result.
type ControlChannel struct {
	stream Stream

	readOnce sync.Once
	fired    chan struct{}
	result   error
}

// NewControlChannel wraps an established control stream.
func NewControlChannel(stream Stream) *ControlChannel {
	return &ControlChannel{
		stream: stream,
		fired:  make(chan struct{}),
	}
}

// SendDone writes the single session-completion message. The sending
// side calls it once, after every file transfer has completed.
func (c *ControlChannel) SendDone() error {
	payload, err := wire.EncodeMessage(wire.Done{Done: wire.DoneDone})
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(c.stream, payload); err != nil {
		return fmt.Errorf("failed to send done: %w", err)
	}
	return nil
}

// WaitDone blocks until the peer's completion message arrives, the
// control stream fails, or ctx is cancelled. A control stream that
// closes before delivering the message is a premature close.
func (c *ControlChannel) WaitDone(ctx context.Context) error {
	c.readOnce.Do(func() {
		go func() {
			defer close(c.fired)
			payload, err := wire.ReadFrame(c.stream)
			if err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					c.result = fmt.Errorf("control stream: %w", ErrPrematureClose)
					return
				}
				c.result = fmt.Errorf("control stream: %w", err)
				return
			}
			if _, err := wire.DecodeDone(payload); err != nil {
				c.result = err
				return
			}
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.fired:
		return c.result
	}
}

// AwaitDrain blocks until the peer closes its side of the control
// stream, which it does only after consuming the completion message.
// Returning nil therefore proves the message was delivered; the
// connection can be torn down without losing it.
func (c *ControlChannel) AwaitDrain(ctx context.Context) error {
	drained := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := c.stream.Read(buf); err != nil {
				if err == io.EOF {
					drained <- nil
				} else {
					drained <- err
				}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-drained:
		return err
	}
}

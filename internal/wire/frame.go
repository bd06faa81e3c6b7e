// Package wire implements the length-prefixed frame codec and the
// structured messages exchanged over transfer and control streams.
//
// Every frame is an 8-byte big-endian length N followed by exactly N
// bytes of JSON payload. Frames only ever carry small negotiation
// messages (header, ack, done); file payload bytes flow raw between
// the header frame and the ack frame of a transfer stream.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// lengthPrefixSize is the size of the frame length prefix in bytes.
	lengthPrefixSize = 8

	// MaxFramePayload bounds the declared payload length of a single
	// frame. Negotiation messages are tiny; anything beyond this is a
	// peer speaking a different protocol.
	MaxFramePayload = 1 << 20
)

// ErrFrameTooLarge indicates a frame declared a payload length beyond
// MaxFramePayload.
var ErrFrameTooLarge = errors.New("frame payload too large")

// EncodeFrame prepends the 8-byte big-endian length prefix to payload.
func EncodeFrame(payload []byte) []byte {
	out := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint64(out, uint64(len(payload)))
	copy(out[lengthPrefixSize:], payload)
	return out
}

// Decoder reassembles frames from arbitrarily fragmented input.
// The zero value is ready to use. A Decoder never misparses a partial
// frame: nothing is interpreted before all 8+N bytes have arrived.
type Decoder struct {
	buf []byte
}

// Feed appends data to the internal buffer and attempts to decode one
// frame. It returns the frame payload and true when a complete frame
// is buffered; any bytes beyond that frame stay buffered and can be
// drained with Rest or consumed by a later Feed. It returns (nil,
// false) when more bytes are needed.
func (d *Decoder) Feed(data []byte) ([]byte, bool, error) {
	d.buf = append(d.buf, data...)
	if len(d.buf) < lengthPrefixSize {
		return nil, false, nil
	}
	n := binary.BigEndian.Uint64(d.buf[:lengthPrefixSize])
	if n > MaxFramePayload {
		return nil, false, fmt.Errorf("%w: %d bytes declared", ErrFrameTooLarge, n)
	}
	total := lengthPrefixSize + int(n)
	if len(d.buf) < total {
		return nil, false, nil
	}
	payload := make([]byte, n)
	copy(payload, d.buf[lengthPrefixSize:total])
	d.buf = d.buf[total:]
	return payload, true, nil
}

// Rest returns and clears all bytes buffered past the last decoded
// frame. On a transfer stream these bytes are the beginning of the
// file payload, not another frame.
func (d *Decoder) Rest() []byte {
	rest := d.buf
	d.buf = nil
	return rest
}

// Buffered reports how many undecoded bytes the decoder is holding.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// ReadFrame reads one complete frame from r, blocking until all 8+N
// bytes have arrived. It is the pull-style counterpart of Decoder for
// streams that carry nothing but frames, such as the control stream.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(prefix[:])
	if n > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d bytes declared", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame encodes payload as a frame and writes it to w in full.
func WriteFrame(w io.Writer, payload []byte) error {
	frame := EncodeFrame(payload)
	written := 0
	for written < len(frame) {
		n, err := w.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		written += n
	}
	return nil
}

package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// HeaderTypeFile is the only transfer type the protocol supports.
	// Directory/tarball transfers are deliberately not implemented.
	HeaderTypeFile = "file"

	// AckOK is the only acknowledged status an Ack may carry.
	AckOK = "ok"

	// DoneDone is the payload of the session-completion control message.
	DoneDone = "done"

	maxNameLength = 255
)

var (
	// ErrUnknownHeaderType indicates a header type other than "file".
	ErrUnknownHeaderType = errors.New("unknown header type")
	// ErrCompressionUnsupported indicates the header requested compression.
	ErrCompressionUnsupported = errors.New("compression is not supported")
	// ErrInvalidFilename indicates an empty name, a path separator, or
	// a parent-directory reference in the header name.
	ErrInvalidFilename = errors.New("invalid file name")
	// ErrInvalidAck indicates a malformed ack message.
	ErrInvalidAck = errors.New("invalid ack message")
	// ErrInvalidControl indicates a malformed control message.
	ErrInvalidControl = errors.New("invalid control message")
)

// Header is the first frame on a transfer stream. It describes the
// file about to be sent.
type Header struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Size        uint64  `json:"size"`
	Compression *string `json:"compression,omitempty"`
}

// Ack is the final frame on a transfer stream, sent by the receiver
// once exactly Size payload bytes have been written and hashed.
type Ack struct {
	Ack    string `json:"ack"`
	SHA256 string `json:"sha256"`
}

// Done is the single session-level control message. The sending side
// emits it once after every file transfer has completed.
type Done struct {
	Done string `json:"done"`
}

// Validate checks the header against the protocol rules: type must be
// "file", compression must be absent, and the name must be a plain
// base name.
func (h Header) Validate() error {
	if h.Type != HeaderTypeFile {
		return fmt.Errorf("%w %q", ErrUnknownHeaderType, h.Type)
	}
	if h.Compression != nil {
		return fmt.Errorf("%w (got %q)", ErrCompressionUnsupported, *h.Compression)
	}
	return ValidateName(h.Name)
}

// ValidateName rejects names that are empty, overlong, contain path
// separators, or reference the current or parent directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidFilename
	}
	if len(name) > maxNameLength {
		return ErrInvalidFilename
	}
	return nil
}

// EncodeMessage serializes a header, ack, or control message to its
// JSON frame payload.
func EncodeMessage(msg any) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return payload, nil
}

// decodeStrict unmarshals payload into out, rejecting unknown fields
// and trailing garbage.
func decodeStrict(payload []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after message")
	}
	return nil
}

// DecodeHeader parses and validates a header frame payload.
func DecodeHeader(payload []byte) (Header, error) {
	var h Header
	if err := decodeStrict(payload, &h); err != nil {
		return Header{}, fmt.Errorf("failed to decode header: %w", err)
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// DecodeAck parses an ack frame payload. The ack status itself is
// checked by the sender, which reports the received value; DecodeAck
// only enforces the digest format.
func DecodeAck(payload []byte) (Ack, error) {
	var a Ack
	if err := decodeStrict(payload, &a); err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrInvalidAck, err)
	}
	if !validHexDigest(a.SHA256) {
		return Ack{}, fmt.Errorf("%w: malformed sha256 %q", ErrInvalidAck, a.SHA256)
	}
	return a, nil
}

// DecodeDone parses a control frame payload.
func DecodeDone(payload []byte) (Done, error) {
	var d Done
	if err := decodeStrict(payload, &d); err != nil {
		return Done{}, fmt.Errorf("%w: %v", ErrInvalidControl, err)
	}
	if d.Done != DoneDone {
		return Done{}, fmt.Errorf("%w: unexpected value %q", ErrInvalidControl, d.Done)
	}
	return d, nil
}

// validHexDigest reports whether s is a 64-character lowercase hex
// SHA-256 digest.
func validHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

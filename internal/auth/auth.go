// Package auth proves that both ends of a freshly established
// connection hold the same join code. The proof is an HMAC over keying
// material exported from the connection's TLS session, so it cannot be
// replayed onto another connection.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/seawire/seawire/internal/transfer"
)

const (
	label     = "seawire-auth-v1"
	version   = byte(1)
	roleTx    = byte(1)
	roleRx    = byte(2)
	nonceSize = 16
	macSize   = 32
	msgSize   = 1 + 1 + nonceSize + macSize
)

// Exporter is the hook a connection must provide for key derivation.
// The QUIC transport satisfies it.
type Exporter interface {
	ExportKeyingMaterial(label string, length int) ([]byte, error)
}

// AuthenticateSender runs the sending side of the handshake on a fresh
// stream. It must be called before any transfer stream is opened.
func AuthenticateSender(ctx context.Context, conn transfer.Conn, code string) error {
	key, err := deriveKey(conn, code)
	if err != nil {
		return err
	}

	stream, err := conn.OpenStream(ctx)
	if err != nil {
		return fmt.Errorf("auth open stream: %w", err)
	}
	defer stream.Close()

	nonce, err := newNonce()
	if err != nil {
		return err
	}
	if err := writeProof(ctx, stream, roleTx, nonce, proof(key, roleTx, nonce)); err != nil {
		return err
	}

	peerRole, peerNonce, peerMac, err := readProof(ctx, stream)
	if err != nil {
		return err
	}
	if peerRole != roleRx {
		return fmt.Errorf("auth role mismatch: expected receiver, got %d", peerRole)
	}
	if !hmac.Equal(peerMac, proof(key, peerRole, peerNonce)) {
		return fmt.Errorf("join code proof mismatch")
	}
	return nil
}

// AuthenticateReceiver runs the receiving side of the handshake on the
// first inbound stream.
func AuthenticateReceiver(ctx context.Context, conn transfer.Conn, code string) error {
	key, err := deriveKey(conn, code)
	if err != nil {
		return err
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return fmt.Errorf("auth accept stream: %w", err)
	}
	defer stream.Close()

	peerRole, peerNonce, peerMac, err := readProof(ctx, stream)
	if err != nil {
		return err
	}
	if peerRole != roleTx {
		return fmt.Errorf("auth role mismatch: expected sender, got %d", peerRole)
	}
	if !hmac.Equal(peerMac, proof(key, peerRole, peerNonce)) {
		return fmt.Errorf("join code proof mismatch")
	}

	nonce, err := newNonce()
	if err != nil {
		return err
	}
	return writeProof(ctx, stream, roleRx, nonce, proof(key, roleRx, nonce))
}

func deriveKey(conn transfer.Conn, code string) ([]byte, error) {
	exporter, ok := conn.(Exporter)
	if !ok {
		return nil, fmt.Errorf("transport does not support key export")
	}
	ekm, err := exporter.ExportKeyingMaterial(label, macSize)
	if err != nil {
		return nil, fmt.Errorf("export keying material: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(code))
	mac.Write(ekm)
	return mac.Sum(nil), nil
}

func proof(key []byte, role byte, nonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte{version, role})
	mac.Write(nonce)
	return mac.Sum(nil)
}

func newNonce() ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("auth nonce: %w", err)
	}
	return nonce, nil
}

func writeProof(ctx context.Context, w io.Writer, role byte, nonce, mac []byte) error {
	buf := make([]byte, msgSize)
	buf[0] = version
	buf[1] = role
	copy(buf[2:], nonce)
	copy(buf[2+nonceSize:], mac)
	return writeWithContext(ctx, w, buf)
}

func readProof(ctx context.Context, r io.Reader) (byte, []byte, []byte, error) {
	buf := make([]byte, msgSize)
	if err := readWithContext(ctx, r, buf); err != nil {
		return 0, nil, nil, err
	}
	if buf[0] != version {
		return 0, nil, nil, fmt.Errorf("unexpected auth version %d", buf[0])
	}
	nonce := make([]byte, nonceSize)
	mac := make([]byte, macSize)
	copy(nonce, buf[2:2+nonceSize])
	copy(mac, buf[2+nonceSize:])
	return buf[1], nonce, mac, nil
}

func readWithContext(ctx context.Context, r io.Reader, buf []byte) error {
	errCh := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(r, buf)
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("auth read: %w", err)
		}
		return nil
	}
}

func writeWithContext(ctx context.Context, w io.Writer, buf []byte) error {
	errCh := make(chan error, 1)
	go func() {
		_, err := w.Write(buf)
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("auth write: %w", err)
		}
		return nil
	}
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/seawire/seawire/internal/transfer"
)

// exportConn fakes the TLS keying material export on top of the mock
// transport. Both ends of a pair share the material, mirroring what a
// real TLS session gives the two sides of one connection.
type exportConn struct {
	transfer.Conn
	material []byte
}

func (c *exportConn) ExportKeyingMaterial(label string, length int) ([]byte, error) {
	out := make([]byte, length)
	for i := range out {
		out[i] = c.material[i%len(c.material)] ^ byte(len(label))
	}
	return out, nil
}

func authPair(t *testing.T, material []byte) (transfer.Conn, transfer.Conn) {
	t.Helper()
	ta, tb := transfer.NewMockPair()
	ctx := context.Background()

	connA, err := ta.Dial(ctx, "peer")
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	connB, err := tb.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	return &exportConn{Conn: connA, material: material},
		&exportConn{Conn: connB, material: material}
}

func TestAuthenticate_MatchingCode(t *testing.T) {
	tx, rx := authPair(t, []byte("shared-session-material"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rxErr := make(chan error, 1)
	go func() {
		rxErr <- AuthenticateReceiver(ctx, rx, "GUITAR42")
	}()

	if err := AuthenticateSender(ctx, tx, "GUITAR42"); err != nil {
		t.Fatalf("sender auth error: %v", err)
	}
	if err := <-rxErr; err != nil {
		t.Fatalf("receiver auth error: %v", err)
	}
}

func TestAuthenticate_WrongCode(t *testing.T) {
	tx, rx := authPair(t, []byte("shared-session-material"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rxErr := make(chan error, 1)
	go func() {
		rxErr <- AuthenticateReceiver(ctx, rx, "GUITAR42")
	}()

	senderErr := AuthenticateSender(ctx, tx, "SARDINE7")
	receiverErr := <-rxErr
	if senderErr == nil && receiverErr == nil {
		t.Fatal("handshake with mismatched codes should fail on at least one side")
	}
}

func TestAuthenticate_NoExporter(t *testing.T) {
	ta, _ := transfer.NewMockPair()
	conn, err := ta.Dial(context.Background(), "peer")
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	if err := AuthenticateSender(context.Background(), conn, "GUITAR42"); err == nil {
		t.Error("expected error for transport without key export")
	}
}

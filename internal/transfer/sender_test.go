package transfer

import (
	"errors"
	"testing"

	"github.com/seawire/seawire/internal/wire"
)

func ackFrame(t *testing.T, status, digest string) []byte {
	t.Helper()
	payload, err := wire.EncodeMessage(wire.Ack{Ack: status, SHA256: digest})
	if err != nil {
		t.Fatalf("encode ack: %v", err)
	}
	return wire.EncodeFrame(payload)
}

func TestSender_HappyPath(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	tx := NewSender("a.bin", 3)

	header, err := tx.HeaderFrame()
	if err != nil {
		t.Fatalf("HeaderFrame error: %v", err)
	}
	var d wire.Decoder
	hp, ok, err := d.Feed(header)
	if err != nil || !ok {
		t.Fatalf("header frame not decodable: ok=%v err=%v", ok, err)
	}
	h, err := wire.DecodeHeader(hp)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.Name != "a.bin" || h.Size != 3 {
		t.Errorf("header = %+v", h)
	}

	tx.Absorb(payload)
	expected := tx.FinishPayload()
	if want := digestOf(payload); expected != want {
		t.Errorf("expected digest = %s, want %s", expected, want)
	}
	if tx.State() != SendAwaitingAck {
		t.Errorf("state = %d, want SendAwaitingAck", tx.State())
	}

	done, err := tx.HandleAckData(ackFrame(t, "ok", expected))
	if err != nil {
		t.Fatalf("HandleAckData error: %v", err)
	}
	if !done {
		t.Fatal("expected transfer to complete")
	}
	if tx.State() != SendComplete {
		t.Errorf("state = %d, want SendComplete", tx.State())
	}
}

func TestSender_FragmentedAck(t *testing.T) {
	tx := NewSender("a.bin", 1)
	if _, err := tx.HeaderFrame(); err != nil {
		t.Fatal(err)
	}
	tx.Absorb([]byte{0xff})
	expected := tx.FinishPayload()

	frame := ackFrame(t, "ok", expected)
	for i, b := range frame {
		done, err := tx.HandleAckData([]byte{b})
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if done != (i == len(frame)-1) {
			t.Fatalf("byte %d: done = %v", i, done)
		}
	}
}

func TestSender_PrematureAck(t *testing.T) {
	tx := NewSender("a.bin", 3)
	if _, err := tx.HeaderFrame(); err != nil {
		t.Fatal(err)
	}
	// Ack arrives while the source is still being streamed.
	_, err := tx.HandleAckData(ackFrame(t, "ok", digestOf(nil)))
	if !errors.Is(err, ErrPrematureAck) {
		t.Fatalf("err = %v, want ErrPrematureAck", err)
	}
	if tx.State() != SendFailed {
		t.Errorf("state = %d, want SendFailed", tx.State())
	}
}

func TestSender_AckNotOK(t *testing.T) {
	tx := NewSender("a.bin", 0)
	if _, err := tx.HeaderFrame(); err != nil {
		t.Fatal(err)
	}
	expected := tx.FinishPayload()

	_, err := tx.HandleAckData(ackFrame(t, "nope", expected))
	if err == nil {
		t.Fatal("expected error for non-ok ack")
	}
	if tx.State() != SendFailed {
		t.Errorf("state = %d, want SendFailed", tx.State())
	}
}

func TestSender_HashMismatch(t *testing.T) {
	tx := NewSender("a.bin", 1)
	if _, err := tx.HeaderFrame(); err != nil {
		t.Fatal(err)
	}
	tx.Absorb([]byte{0x01})
	tx.FinishPayload()

	wrong := digestOf([]byte{0x02})
	_, err := tx.HandleAckData(ackFrame(t, "ok", wrong))
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("err = %v, want ErrHashMismatch", err)
	}
}

func TestSender_DataAfterDone(t *testing.T) {
	tx := NewSender("a.bin", 0)
	if _, err := tx.HeaderFrame(); err != nil {
		t.Fatal(err)
	}
	expected := tx.FinishPayload()
	if done, err := tx.HandleAckData(ackFrame(t, "ok", expected)); err != nil || !done {
		t.Fatalf("ack not accepted: done=%v err=%v", done, err)
	}

	if _, err := tx.HandleAckData([]byte{0x00}); !errors.Is(err, ErrDataAfterDone) {
		t.Fatalf("err = %v, want ErrDataAfterDone", err)
	}
}

func TestSender_PrematureCloseWhileAwaitingAck(t *testing.T) {
	tx := NewSender("a.bin", 0)
	if _, err := tx.HeaderFrame(); err != nil {
		t.Fatal(err)
	}
	tx.FinishPayload()

	if err := tx.HandleClose(); !errors.Is(err, ErrPrematureClose) {
		t.Fatalf("err = %v, want ErrPrematureClose", err)
	}
}

func TestSender_RejectsBadName(t *testing.T) {
	tx := NewSender("../evil", 1)
	if _, err := tx.HeaderFrame(); !errors.Is(err, wire.ErrInvalidFilename) {
		t.Fatalf("err = %v, want ErrInvalidFilename", err)
	}
}

package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seawire/seawire/internal/wire"
)

func streamPair(t *testing.T) (Stream, Stream) {
	t.Helper()
	ta, tb := NewMockPair()
	ctx := context.Background()

	connA, err := ta.Dial(ctx, "peer")
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	connB, err := tb.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	sa, err := connA.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream error: %v", err)
	}
	sb, err := connB.AcceptStream(ctx)
	if err != nil {
		t.Fatalf("AcceptStream error: %v", err)
	}
	return sa, sb
}

func TestControlChannel_DoneRoundTrip(t *testing.T) {
	sa, sb := streamPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := NewControlChannel(sa)
	receiver := NewControlChannel(sb)

	errCh := make(chan error, 1)
	go func() {
		errCh <- receiver.WaitDone(ctx)
	}()

	if err := sender.SendDone(); err != nil {
		t.Fatalf("SendDone error: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WaitDone error: %v", err)
	}

	// One-shot: waiting again returns the same result immediately.
	if err := receiver.WaitDone(ctx); err != nil {
		t.Fatalf("second WaitDone error: %v", err)
	}
}

func TestControlChannel_PrematureClose(t *testing.T) {
	sa, sb := streamPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receiver := NewControlChannel(sb)
	sa.Close()

	err := receiver.WaitDone(ctx)
	if !errors.Is(err, ErrPrematureClose) {
		t.Fatalf("err = %v, want ErrPrematureClose", err)
	}
	// The terminal value is stable across repeated waits.
	if err2 := receiver.WaitDone(ctx); !errors.Is(err2, ErrPrematureClose) {
		t.Fatalf("second wait err = %v, want ErrPrematureClose", err2)
	}
}

func TestControlChannel_RejectsBadMessage(t *testing.T) {
	sa, sb := streamPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receiver := NewControlChannel(sb)

	go func() {
		_ = wire.WriteFrame(sa, []byte(`{"done":"almost"}`))
	}()

	if err := receiver.WaitDone(ctx); !errors.Is(err, wire.ErrInvalidControl) {
		t.Fatalf("err = %v, want ErrInvalidControl", err)
	}
}

func TestControlChannel_AwaitDrain(t *testing.T) {
	sa, sb := streamPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := NewControlChannel(sa)
	go sb.Close()

	if err := sender.AwaitDrain(ctx); err != nil {
		t.Fatalf("AwaitDrain error: %v", err)
	}
}

func TestControlChannel_AwaitDrainContextCancel(t *testing.T) {
	sa, _ := streamPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewControlChannel(sa).AwaitDrain(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestControlChannel_ContextCancel(t *testing.T) {
	_, sb := streamPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	receiver := NewControlChannel(sb)
	if err := receiver.WaitDone(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

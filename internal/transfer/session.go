package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// SendFiles drives the sending role of a session: it opens the control
// stream, transfers the given files strictly sequentially over one
// fresh stream each, and emits the completion message once the last
// transfer has been acknowledged. Any per-file failure is fatal to the
// whole session; queued files are not attempted. SendFiles returns only
// once the peer confirms it consumed the completion message, so the
// caller may tear the connection down immediately afterwards.
func SendFiles(ctx context.Context, conn Conn, paths []string, logger *slog.Logger) error {
	control, err := conn.OpenStream(ctx)
	if err != nil {
		return fmt.Errorf("failed to open control stream: %w", err)
	}
	defer control.Close()
	ctrl := NewControlChannel(control)

	for _, path := range paths {
		stream, err := conn.OpenStream(ctx)
		if err != nil {
			return fmt.Errorf("failed to open transfer stream: %w", err)
		}

		logger.Info("sending file", "path", path)
		res := make(chan error, 1)
		go func() {
			res <- RunSender(ctx, stream, path, logger)
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-res:
			if err != nil {
				return fmt.Errorf("failed to send %s: %w", path, err)
			}
		}
		logger.Info("file sent", "path", path)
	}

	if err := ctrl.SendDone(); err != nil {
		return err
	}
	if err := ctrl.AwaitDrain(ctx); err != nil {
		return fmt.Errorf("failed to confirm session completion: %w", err)
	}
	logger.Info("all files sent")
	return nil
}

// ReceiveFiles drives the receiving role: the first accepted stream is
// the control stream, and every later inbound stream gets a fresh
// receive state machine, accepted concurrently as the peer opens them.
// A failed inbound stream aborts only itself; the session ends when
// the peer's completion message arrives.
func ReceiveFiles(ctx context.Context, conn Conn, dir string, logger *slog.Logger) error {
	control, err := conn.AcceptStream(ctx)
	if err != nil {
		return fmt.Errorf("failed to accept control stream: %w", err)
	}
	defer control.Close()
	ctrl := NewControlChannel(control)

	acceptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	go func() {
		for {
			stream, err := conn.AcceptStream(acceptCtx)
			if err != nil {
				return
			}
			wg.Add(1)
			go func(s Stream) {
				defer wg.Done()
				path, rerr := RunReceiver(acceptCtx, s, dir, logger)
				if rerr != nil {
					logger.Error("transfer failed", "error", rerr, "path", path)
				}
			}(stream)
		}
	}()

	logger.Info("waiting for files", "dir", dir)
	if err := ctrl.WaitDone(ctx); err != nil {
		return err
	}

	// Closing the control stream tells the peer its completion message
	// arrived; it blocks on that before tearing the connection down.
	if err := control.Close(); err != nil {
		return fmt.Errorf("failed to close control stream: %w", err)
	}

	// The peer only signals done after its last transfer was acked, so
	// every in-flight receiver is already at a terminal state.
	cancel()
	wg.Wait()
	logger.Info("session complete")
	return nil
}

// Package sender implements the swire tx command.
package sender

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seawire/seawire/internal/auth"
	"github.com/seawire/seawire/internal/config"
	"github.com/seawire/seawire/internal/logging"
	"github.com/seawire/seawire/internal/rendezvous"
	"github.com/seawire/seawire/internal/session"
	"github.com/seawire/seawire/internal/transfer"
	"github.com/seawire/seawire/internal/transferquic"
	"github.com/seawire/seawire/pkg/protocol"
)

func Run(args []string) {
	if hasHelpFlag(args) {
		printUsage()
		return
	}

	cfg, paths := config.ParseClientConfig(args)
	if len(paths) == 0 {
		printUsage()
		os.Exit(2)
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", path, err)
			os.Exit(2)
		}
		if !info.Mode().IsRegular() {
			fmt.Fprintf(os.Stderr, "%s is not a regular file\n", path)
			os.Exit(2)
		}
	}

	logger := logging.New("swire", cfg.LogLevel, cfg.LogFormat)

	code := cfg.Code
	if code == "" {
		code = session.NewCode()
	}
	fmt.Printf("session code: %s\n", code)
	fmt.Println("on the receiving side, run: swire rx --code", code)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, code, paths); err != nil {
		logger.Error("send failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ClientConfig, code string, paths []string) error {
	logger := logging.New("swire", cfg.LogLevel, cfg.LogFormat)

	setupCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	rc, err := rendezvous.Dial(setupCtx, cfg.ServerURL, code, cfg.PeerID, protocol.RoleTx, logger)
	if err != nil {
		return err
	}

	addr, err := rc.AwaitPeerAddr(setupCtx)
	if err != nil {
		rc.Close()
		return err
	}
	rc.Close()

	transport, err := transferquic.DialAddr(setupCtx, addr, logger)
	if err != nil {
		return err
	}
	conn, err := transport.Dial(setupCtx, "")
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := auth.AuthenticateSender(setupCtx, conn, code); err != nil {
		return fmt.Errorf("peer verification failed: %w", err)
	}

	return transfer.SendFiles(ctx, conn, paths, logger)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: swire tx [flags] <file>...")
	fmt.Fprintln(os.Stderr, "  --code CODE        session code (default: generated and printed)")
	fmt.Fprintln(os.Stderr, "  --server-url URL   rendezvous server URL (default http://localhost:8080)")
	fmt.Fprintln(os.Stderr, "  --timeout D        rendezvous and connect deadline (default 2m)")
	fmt.Fprintln(os.Stderr, "  --log-level LEVEL  debug, info, warn, error (default info)")
	fmt.Fprintln(os.Stderr, "  --log-format FMT   text, json (default text)")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

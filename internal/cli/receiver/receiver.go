// Package receiver implements the swire rx command.
package receiver

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/seawire/seawire/internal/auth"
	"github.com/seawire/seawire/internal/config"
	"github.com/seawire/seawire/internal/logging"
	"github.com/seawire/seawire/internal/rendezvous"
	"github.com/seawire/seawire/internal/transfer"
	"github.com/seawire/seawire/internal/transferquic"
	"github.com/seawire/seawire/pkg/protocol"
)

func Run(args []string) {
	if hasHelpFlag(args) {
		printUsage()
		return
	}

	cfg, rest := config.ParseClientConfig(args)
	if cfg.Code == "" || len(rest) != 0 {
		printUsage()
		os.Exit(2)
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", cfg.DownloadDir, err)
		os.Exit(2)
	}

	logger := logging.New("swire", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("receive failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ClientConfig) error {
	logger := logging.New("swire", cfg.LogLevel, cfg.LogFormat)

	transport, err := transferquic.Listen(":0", logger)
	if err != nil {
		return err
	}
	defer transport.Close()

	setupCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	rc, err := rendezvous.Dial(setupCtx, cfg.ServerURL, cfg.Code, cfg.PeerID, protocol.RoleRx, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	logger.Info("waiting for sender to join", "code", cfg.Code)
	peer, err := rc.AwaitPeer(setupCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for sender: %w", err)
	}
	logger.Info("sender joined", "peer_id", peer.PeerID, "role", peer.Role)

	// Announcing only once the sender is present means the address
	// relay always has somebody to deliver to.
	addr, err := announceAddr(transport.Addr())
	if err != nil {
		return err
	}
	if err := rc.Announce(addr); err != nil {
		return fmt.Errorf("failed to announce address: %w", err)
	}
	logger.Info("waiting for sender", "addr", addr, "code", cfg.Code)

	conn, err := transport.Accept(setupCtx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := auth.AuthenticateReceiver(setupCtx, conn, cfg.Code); err != nil {
		return fmt.Errorf("peer verification failed: %w", err)
	}

	return transfer.ReceiveFiles(ctx, conn, cfg.DownloadDir, logger)
}

// announceAddr turns the wildcard listener address into one the peer
// can dial, by filling in a local interface address.
func announceAddr(listenAddr net.Addr) (string, error) {
	udpAddr, ok := listenAddr.(*net.UDPAddr)
	if !ok {
		return listenAddr.String(), nil
	}
	if !udpAddr.IP.IsUnspecified() {
		return udpAddr.String(), nil
	}

	host, err := outboundIP()
	if err != nil {
		return "", fmt.Errorf("cannot determine local address: %w", err)
	}
	return net.JoinHostPort(host, strconv.Itoa(udpAddr.Port)), nil
}

// outboundIP finds the local address the default route would use. The
// dial never sends a packet.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", err
	}
	return host, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: swire rx --code CODE [flags]")
	fmt.Fprintln(os.Stderr, "  --code CODE        session code from the sending side (required)")
	fmt.Fprintln(os.Stderr, "  --out DIR          destination directory (default ~/Downloads)")
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

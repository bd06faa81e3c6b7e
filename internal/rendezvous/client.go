// Package rendezvous implements the client side of peer discovery: two
// parties that share a join code meet through the swireserv server, and
// the receiver tells the sender where its transport listener is bound.
package rendezvous

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/seawire/seawire/internal/wsclient"
	"github.com/seawire/seawire/pkg/protocol"
)

// Client is one peer's connection to the rendezvous server.
type Client struct {
	conn   *wsclient.Conn
	logger *slog.Logger

	cancel context.CancelFunc
	envs   chan protocol.Envelope
	read   chan error
}

// Dial joins the session for code on the given server under the given
// role. The returned client must be closed once the peers are connected
// directly.
func Dial(ctx context.Context, serverURL, code, peerID, role string, logger *slog.Logger) (*Client, error) {
	wsURL, err := buildWebSocketURL(serverURL, code, peerID, role)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	conn, err := wsclient.Dial(ctx, wsURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to reach rendezvous server: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		logger: logger,
		cancel: cancel,
		envs:   make(chan protocol.Envelope, 64),
		read:   make(chan error, 1),
	}
	go func() {
		c.read <- conn.ReadLoop(readCtx, func(env protocol.Envelope) {
			select {
			case c.envs <- env:
			default:
				logger.Warn("dropping rendezvous envelope", "type", env.Type)
			}
		})
	}()

	logger.Info("joined rendezvous session", "code", code, "role", role)
	return c, nil
}

// Announce publishes the receiver's transport address to the session.
func (c *Client) Announce(addr string) error {
	env, err := protocol.NewEnvelope(protocol.TypeAnnounce, protocol.Announce{Addr: addr})
	if err != nil {
		return err
	}
	return c.conn.Send(env)
}

// AwaitPeerAddr blocks until the peer's transport address arrives.
// Rendezvous error envelopes and a dropped connection both fail the
// wait.
func (c *Client) AwaitPeerAddr(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err := <-c.read:
			return "", fmt.Errorf("rendezvous connection lost: %w", err)
		case env := <-c.envs:
			switch env.Type {
			case protocol.TypePeerAddr:
				var pa protocol.PeerAddr
				if err := env.DecodePayload(&pa); err != nil {
					return "", fmt.Errorf("bad peer_addr payload: %w", err)
				}
				c.logger.Info("peer address received", "addr", pa.Addr, "peer_id", pa.PeerID)
				return pa.Addr, nil
			case protocol.TypeError:
				var perr protocol.Error
				if err := env.DecodePayload(&perr); err != nil {
					return "", fmt.Errorf("rendezvous error")
				}
				return "", fmt.Errorf("rendezvous error: %s (%s)", perr.Message, perr.Code)
			default:
				c.logger.Debug("ignoring rendezvous envelope", "type", env.Type)
			}
		}
	}
}

// AwaitPeer blocks until another peer joins the session.
func (c *Client) AwaitPeer(ctx context.Context) (protocol.PeerInfo, error) {
	for {
		select {
		case <-ctx.Done():
			return protocol.PeerInfo{}, ctx.Err()
		case err := <-c.read:
			return protocol.PeerInfo{}, fmt.Errorf("rendezvous connection lost: %w", err)
		case env := <-c.envs:
			if env.Type != protocol.TypePeerJoined {
				c.logger.Debug("ignoring rendezvous envelope", "type", env.Type)
				continue
			}
			var pj protocol.PeerJoined
			if err := env.DecodePayload(&pj); err != nil {
				return protocol.PeerInfo{}, fmt.Errorf("bad peer_joined payload: %w", err)
			}
			return pj.Peer, nil
		}
	}
}

// Close tears the websocket down.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close()
}

// buildWebSocketURL turns the http(s) server URL into the ws(s) URL of
// the session endpoint, carrying the join parameters in the query.
func buildWebSocketURL(serverURL, code, peerID, role string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}

	scheme := strings.Replace(u.Scheme, "http", "ws", 1)
	if u.Scheme == "https" {
		scheme = "wss"
	}

	q := url.Values{}
	q.Set("code", code)
	q.Set("peer_id", peerID)
	q.Set("role", role)

	wsURL := url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     "/ws",
		RawQuery: q.Encode(),
	}
	return wsURL.String(), nil
}

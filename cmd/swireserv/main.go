// swireserv is the rendezvous server. It pairs the two sides of a
// transfer by join code and relays the receiver's transport address to
// the sender; file data never touches it.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seawire/seawire/internal/config"
	"github.com/seawire/seawire/internal/logging"
	"github.com/seawire/seawire/internal/peers"
	"github.com/seawire/seawire/internal/session"
	"github.com/seawire/seawire/pkg/protocol"
)

const (
	serverVersion   = "v0.1.0"
	maxMessageBytes = 64 * 1024
	idleTimeout     = 10 * time.Minute
	cleanupInterval = time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	if hasHelpFlag(os.Args[1:]) {
		printUsage()
		return
	}
	if hasVersionFlag(os.Args[1:]) {
		fmt.Println(serverVersion)
		return
	}

	cfg := config.ParseServerConfig()
	logger := logging.New("swireserv", cfg.LogLevel, cfg.LogFormat)

	store := session.NewStore(cfg.SessionTTL)
	hub := peers.NewHub()

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			if n := store.CleanupExpired(time.Now()); n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
		}
	}()

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, store, hub, logger)
	})

	logger.Info("server starting", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, store *session.Store, hub *peers.Hub, logger *slog.Logger) {
	code := r.URL.Query().Get("code")
	peerID := r.URL.Query().Get("peer_id")
	role := r.URL.Query().Get("role")

	if code == "" {
		sendHTTPError(w, http.StatusBadRequest, "missing code")
		return
	}
	if peerID == "" {
		sendHTTPError(w, http.StatusBadRequest, "missing peer_id")
		return
	}
	if role != protocol.RoleTx && role != protocol.RoleRx {
		sendHTTPError(w, http.StatusBadRequest, "role must be 'tx' or 'rx'")
		return
	}

	sess := store.GetOrCreate(code)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(idleTimeout))
	var writeMu sync.Mutex
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	sendFunc := func(env protocol.Envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(env)
	}

	existing := hub.List(sess.Code)
	removePeer := hub.Add(sess.Code, peers.Peer{PeerID: peerID, Role: role}, sendFunc)
	defer removePeer()

	logger.Info("peer connected", "code", sess.Code, "peer_id", peerID, "role", role)

	notify(hub, sess.Code, peerID, protocol.TypePeerJoined, protocol.PeerJoined{
		Peer: protocol.PeerInfo{PeerID: peerID, Role: role},
	}, logger)

	// Tell the newcomer who is already here, so the sides discover each
	// other regardless of join order.
	for _, p := range existing {
		if p.PeerID == peerID {
			continue
		}
		env, err := protocol.NewEnvelope(protocol.TypePeerJoined, protocol.PeerJoined{Peer: p})
		if err != nil {
			logger.Error("failed to build envelope", "error", err)
			continue
		}
		env.Code = sess.Code
		env.From = "server"
		if err := sendFunc(env); err != nil {
			return
		}
	}

	defer func() {
		notify(hub, sess.Code, peerID, protocol.TypePeerLeft, protocol.PeerLeft{PeerID: peerID}, logger)
		logger.Info("peer disconnected", "code", sess.Code, "peer_id", peerID)
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "error", err, "peer_id", peerID)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		if messageType != websocket.TextMessage {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn("invalid envelope", "error", err, "peer_id", peerID)
			continue
		}
		if err := env.ValidateBasic(); err != nil {
			logger.Warn("invalid envelope", "error", err, "peer_id", peerID)
			continue
		}
		env.From = peerID
		env.Code = sess.Code

		route(hub, sess.Code, peerID, env, sendFunc, logger)
	}
}

// route delivers one envelope. An address announcement is rewritten
// into a peer_addr for the other side; everything else is relayed
// verbatim, targeted when To is set.
func route(hub *peers.Hub, code, peerID string, env protocol.Envelope, reply func(protocol.Envelope) error, logger *slog.Logger) {
	if env.Type == protocol.TypeAnnounce {
		var ann protocol.Announce
		if err := env.DecodePayload(&ann); err != nil {
			logger.Warn("bad announce payload", "error", err, "peer_id", peerID)
			return
		}
		out, err := protocol.NewEnvelope(protocol.TypePeerAddr, protocol.PeerAddr{
			PeerID: peerID,
			Addr:   ann.Addr,
		})
		if err != nil {
			logger.Error("failed to build peer_addr envelope", "error", err)
			return
		}
		out.Code = code
		out.From = "server"
		hub.BroadcastExcept(code, peerID, out)
		logger.Info("address relayed", "code", code, "peer_id", peerID, "addr", ann.Addr)
		return
	}

	if env.To != "" {
		if !hub.SendTo(code, env.To, env) {
			errOut, err := protocol.NewEnvelope(protocol.TypeError, protocol.Error{
				Code:    "peer_not_found",
				Message: "target peer not found: " + env.To,
			})
			if err == nil {
				errOut.Code = code
				errOut.From = "server"
				errOut.To = peerID
				reply(errOut)
			}
			logger.Warn("peer not found", "from", peerID, "to", env.To)
		}
		return
	}
	hub.BroadcastExcept(code, peerID, env)
}

func notify(hub *peers.Hub, code, fromPeerID, msgType string, payload any, logger *slog.Logger) {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		logger.Error("failed to build envelope", "error", err, "type", msgType)
		return
	}
	env.Code = code
	env.From = "server"
	hub.BroadcastExcept(code, fromPeerID, env)
}

func sendHTTPError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: swireserv [--addr ADDR] [--session-ttl DURATION]")
	fmt.Fprintln(os.Stderr, "  --addr ADDR             listen address (default :8080)")
	fmt.Fprintln(os.Stderr, "  --session-ttl DURATION  idle session lifetime (default 10m)")
	fmt.Fprintln(os.Stderr, "  --log-level LEVEL       debug, info, warn, error (default info)")
	fmt.Fprintln(os.Stderr, "  --log-format FMT        text, json (default text)")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

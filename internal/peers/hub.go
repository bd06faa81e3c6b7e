// Package peers routes rendezvous envelopes between the members of a
// session.
package peers

import (
	"sync"

	"github.com/seawire/seawire/pkg/protocol"
)

// Peer identifies one connected client.
type Peer struct {
	PeerID string
	Role   string
}

type peerConn struct {
	peer Peer
	send chan protocol.Envelope
	done chan struct{}
}

// enqueue offers env to the writer goroutine. The send channel is
// never closed, so queuing can race freely with removal; envelopes
// queued for a removed peer are simply dropped.
func (pc *peerConn) enqueue(env protocol.Envelope) {
	select {
	case pc.send <- env:
	default:
	}
}

// Hub holds the connected peers of every session, keyed by join code.
// A reconnecting peer replaces its previous connection.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*peerConn // code -> peerID -> conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*peerConn),
	}
}

// Add registers a peer under code. Envelopes queued for the peer are
// delivered through send on a dedicated goroutine, so a slow client
// never stalls the hub. The returned function removes the peer again.
func (h *Hub) Add(code string, p Peer, send func(env protocol.Envelope) error) (remove func()) {
	pc := &peerConn{
		peer: p,
		send: make(chan protocol.Envelope, 64),
		done: make(chan struct{}),
	}

	go func() {
		for {
			select {
			case env := <-pc.send:
				if err := send(env); err != nil {
					return
				}
			case <-pc.done:
				return
			}
		}
	}()

	h.mu.Lock()
	if h.sessions[code] == nil {
		h.sessions[code] = make(map[string]*peerConn)
	}
	if old, ok := h.sessions[code][p.PeerID]; ok {
		close(old.done)
	}
	h.sessions[code][p.PeerID] = pc
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		// A reconnect may already have replaced this entry.
		if h.sessions[code][p.PeerID] != pc {
			return
		}
		close(pc.done)
		delete(h.sessions[code], p.PeerID)
		if len(h.sessions[code]) == 0 {
			delete(h.sessions, code)
		}
	}
}

// List returns the peers currently joined under code.
func (h *Hub) List(code string) []protocol.PeerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.sessions[code]
	peers := make([]protocol.PeerInfo, 0, len(conns))
	for _, pc := range conns {
		peers = append(peers, protocol.PeerInfo{
			PeerID: pc.peer.PeerID,
			Role:   pc.peer.Role,
		})
	}
	return peers
}

// BroadcastExcept queues env for every session member other than the
// named peer. Peers whose queue is full are skipped.
func (h *Hub) BroadcastExcept(code, exceptPeerID string, env protocol.Envelope) {
	h.mu.RLock()
	targets := make([]*peerConn, 0, len(h.sessions[code]))
	for peerID, pc := range h.sessions[code] {
		if peerID != exceptPeerID {
			targets = append(targets, pc)
		}
	}
	h.mu.RUnlock()

	for _, pc := range targets {
		pc.enqueue(env)
	}
}

// SendTo queues env for one peer. It reports whether the peer exists;
// a full queue still counts as delivered.
func (h *Hub) SendTo(code, peerID string, env protocol.Envelope) bool {
	h.mu.RLock()
	pc, ok := h.sessions[code][peerID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	pc.enqueue(env)
	return true
}

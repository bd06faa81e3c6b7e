package protocol

// Message type constants for rendezvous envelopes.
const (
	TypeError      = "error"
	TypeAnnounce   = "announce"
	TypePeerAddr   = "peer_addr"
	TypePeerJoined = "peer_joined"
	TypePeerLeft   = "peer_left"
)

// Peer roles within a session.
const (
	RoleTx = "tx"
	RoleRx = "rx"
)

// Error reports a rendezvous failure to a peer.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Announce is sent by the receiving peer once its transport listener is
// bound. The server relays it to the sending peer as a PeerAddr.
type Announce struct {
	Addr string `json:"addr"`
}

// PeerAddr tells the sending peer where to connect.
type PeerAddr struct {
	PeerID string `json:"peer_id"`
	Addr   string `json:"addr"`
}

// PeerInfo identifies a peer in a session.
type PeerInfo struct {
	PeerID string `json:"peer_id"`
	Role   string `json:"role"`
}

// PeerJoined notifies session members that a peer arrived.
type PeerJoined struct {
	Peer PeerInfo `json:"peer"`
}

// PeerLeft notifies session members that a peer disconnected.
type PeerLeft struct {
	PeerID string `json:"peer_id"`
}

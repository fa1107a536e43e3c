// Package registry implements the process-wide UserRegistry and
// RoomRegistry: the two mutable, concurrency-safe maps the dispatcher reads
// and mutates on every message.
package registry

import "time"

// PeerIDType is a server-assigned opaque connection identifier.
type PeerIDType string

// RoomKeyType is a normalised `XXX-XXX-XXX` room identifier.
type RoomKeyType string

// UsernameType is a trimmed display name, compared case-insensitively.
type UsernameType string

// Socket is the non-owning handle a User/Room member carries. The transport
// layer owns the underlying connection; the registry only needs to be able
// to enqueue an outbound frame to it.
type Socket interface {
	Send(data []byte)
}

// User is the server's record of one logged-in connection.
type User struct {
	PeerID      PeerIDType
	DisplayName UsernameType
	Socket      Socket
	CurrentRoom RoomKeyType // empty means not in a room
}

// Member is one peer's membership record inside a Room.
type Member struct {
	PeerID      PeerIDType
	DisplayName UsernameType
	Socket      Socket
}

// Room is a transient multi-peer group. Order preserves the insertion order
// of Members so the first inserted peer can be identified as the host.
type Room struct {
	Key       RoomKeyType
	HostPeer  PeerIDType
	Members   map[PeerIDType]Member
	Order     []PeerIDType
	CreatedAt time.Time
}

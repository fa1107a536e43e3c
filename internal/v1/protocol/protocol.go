// Package protocol defines the wire types exchanged between the signaling
// server and its clients: one JSON object per message, carrying a `type`
// discriminator plus zero or more payload fields.
package protocol

import "encoding/json"

// PeerIDType is a server-assigned opaque connection identifier.
type PeerIDType string

// RoomKeyType is the normalised `XXX-XXX-XXX` room identifier.
type RoomKeyType string

// UsernameType is a trimmed, ≤32 character display name.
type UsernameType string

// Envelope is the outer shape every inbound/outbound message shares.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"-"`
}

// Client → server message types.
const (
	TypeLogin         = "login"
	TypeCreateRoom    = "create-room"
	TypeJoinRoom      = "join-room"
	TypeInvite        = "invite"
	TypeAcceptInvite  = "accept-invite"
	TypeDeclineInvite = "decline-invite"
	TypeLeaveRoom     = "leave-room"
	TypeSignal        = "signal"
)

// Server → client message types.
const (
	TypeConnected      = "connected"
	TypeLoginOK        = "login-ok"
	TypeLoginError     = "login-error"
	TypeRoomCreated    = "room-created"
	TypeCreateError    = "create-error"
	TypeRoomJoined     = "room-joined"
	TypeJoinError      = "join-error"
	TypePeerJoined     = "peer-joined"
	TypePeerLeft       = "peer-left"
	TypeInviteEvt      = "invite"
	TypeInviteSent     = "invite-sent"
	TypeInviteError    = "invite-error"
	TypeInviteDeclined = "invite-declined"
	TypeSignalEvt      = "signal"
	TypeLeftRoom       = "left-room"
)

// --- Client → server payloads ---

type LoginMsg struct {
	Username string `json:"username"`
}

type JoinRoomMsg struct {
	RoomKey string `json:"roomKey"`
}

type InviteMsg struct {
	ToUsername string `json:"toUsername"`
}

type AcceptInviteMsg struct {
	RoomKey string `json:"roomKey"`
}

type DeclineInviteMsg struct {
	RoomKey string `json:"roomKey"`
}

type SignalMsg struct {
	ToPeerID string          `json:"toPeerId"`
	Data     json.RawMessage `json:"data"`
}

// --- Server → client payloads ---

type ConnectedEvt struct {
	PeerID string `json:"peerId"`
}

type LoginOKEvt struct {
	PeerID string `json:"peerId"`
}

type LoginErrorEvt struct {
	Message string `json:"message"`
}

type RoomCreatedEvt struct {
	RoomKey string `json:"roomKey"`
}

type CreateErrorEvt struct {
	Message string `json:"message"`
}

type PeerSummary struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

type RoomJoinedEvt struct {
	RoomKey string        `json:"roomKey"`
	Peers   []PeerSummary `json:"peers"`
}

type JoinErrorEvt struct {
	Message string `json:"message"`
}

type PeerJoinedEvt struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

type PeerLeftEvt struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

type InviteEvt struct {
	FromUsername string `json:"fromUsername"`
	RoomKey      string `json:"roomKey"`
}

type InviteSentEvt struct {
	ToUsername string `json:"toUsername"`
}

type InviteErrorEvt struct {
	Message string `json:"message"`
}

type InviteDeclinedEvt struct {
	Username string `json:"username"`
}

type SignalEvt struct {
	FromPeerID string          `json:"fromPeerId"`
	Data       json.RawMessage `json:"data"`
}

// Encode marshals a typed payload alongside its type discriminator into a
// flat JSON object, matching the wire shape `{"type": "...", ...fields}`.
func Encode(msgType string, payload any) ([]byte, error) {
	fields, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, err
	}
	m["type"], err = json.Marshal(msgType)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Package dispatch implements the MessageDispatcher: the single switch that
// parses one inbound frame, mutates the shared ServerState, and emits typed
// outbound messages. Connection state (logged-in, in-room) is derived from
// registry lookups rather than tracked separately, so a single invocation
// always sees a consistent snapshot of both registries — the "single
// ServerState value" the design notes recommend.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/metrics"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/protocol"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/registry"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/roomkey"
)

// Conn is the per-connection handle the transport layer hands to the
// dispatcher. It doubles as a registry.Socket so a Conn can be stored
// directly as a room Member's socket.
type Conn interface {
	PeerID() registry.PeerIDType
	Send(data []byte)
}

// ServerState is the single process-wide value owned by the listener and
// passed into the dispatcher, per the design notes' recommendation against
// ad hoc globals.
type ServerState struct {
	Users *registry.UserRegistry
	Rooms *registry.RoomRegistry
}

// NewServerState constructs an empty ServerState.
func NewServerState() *ServerState {
	return &ServerState{
		Users: registry.NewUserRegistry(),
		Rooms: registry.NewRoomRegistry(),
	}
}

// Dispatcher mutates a ServerState in response to inbound frames.
type Dispatcher struct {
	state *ServerState
}

// NewDispatcher builds a Dispatcher over state.
func NewDispatcher(state *ServerState) *Dispatcher {
	return &Dispatcher{state: state}
}

// envelope is used only to read the discriminator; the remaining fields are
// decoded per-type into the typed payload structs in package protocol.
type envelope struct {
	Type string `json:"type"`
}

// HandleMessage parses one inbound JSON frame and routes it to the matching
// handler. Unknown types are logged and dropped; non-JSON is silently
// ignored, exactly as spec.md §4.4 requires.
func (d *Dispatcher) HandleMessage(ctx context.Context, conn Conn, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	start := time.Now()
	status := "ok"
	defer func() {
		metrics.DispatcherEvents.WithLabelValues(env.Type, status).Inc()
		metrics.MessageProcessingDuration.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())
	}()

	switch env.Type {
	case protocol.TypeLogin:
		var msg protocol.LoginMsg
		_ = json.Unmarshal(raw, &msg)
		d.handleLogin(ctx, conn, msg)
	case protocol.TypeCreateRoom:
		d.handleCreateRoom(ctx, conn)
	case protocol.TypeJoinRoom:
		var msg protocol.JoinRoomMsg
		_ = json.Unmarshal(raw, &msg)
		d.handleJoinRoom(ctx, conn, msg.RoomKey)
	case protocol.TypeInvite:
		var msg protocol.InviteMsg
		_ = json.Unmarshal(raw, &msg)
		d.handleInvite(ctx, conn, msg)
	case protocol.TypeAcceptInvite:
		var msg protocol.AcceptInviteMsg
		_ = json.Unmarshal(raw, &msg)
		d.handleJoinRoom(ctx, conn, msg.RoomKey)
	case protocol.TypeDeclineInvite:
		var msg protocol.DeclineInviteMsg
		_ = json.Unmarshal(raw, &msg)
		d.handleDeclineInvite(ctx, conn, msg)
	case protocol.TypeSignal:
		var msg protocol.SignalMsg
		_ = json.Unmarshal(raw, &msg)
		d.handleSignal(ctx, conn, msg)
	case protocol.TypeLeaveRoom:
		d.handleLeaveRoom(ctx, conn)
	default:
		status = "unknown"
		logging.Warn(ctx, "dropping unknown message type", zap.String("type", env.Type))
	}
}

// HandleDisconnect runs the implicit leave-room + unregister sequence spec.md
// §4.4 specifies for connection-level disconnects.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, conn Conn) {
	d.handleLeaveRoom(ctx, conn)
	d.state.Users.Unregister(conn.PeerID())
}

func send(conn Conn, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return
	}
	conn.Send(data)
}

func (d *Dispatcher) handleLogin(ctx context.Context, conn Conn, msg protocol.LoginMsg) {
	name := strings.TrimSpace(msg.Username)
	if len(name) > 32 {
		name = name[:32]
	}
	if name == "" {
		send(conn, protocol.TypeLoginError, protocol.LoginErrorEvt{Message: "username is required"})
		return
	}

	ok, conflict := d.state.Users.Register(conn.PeerID(), registry.UsernameType(name), conn)
	if !ok || conflict {
		send(conn, protocol.TypeLoginError, protocol.LoginErrorEvt{Message: "username already taken"})
		return
	}

	logging.Info(ctx, "user logged in", zap.String("peer_id", string(conn.PeerID())), zap.String("display_name", logging.RedactDisplayName(name)))
	send(conn, protocol.TypeLoginOK, protocol.LoginOKEvt{PeerID: string(conn.PeerID())})
}

func (d *Dispatcher) handleCreateRoom(ctx context.Context, conn Conn) {
	user, ok := d.state.Users.FindByID(conn.PeerID())
	if !ok {
		send(conn, protocol.TypeCreateError, protocol.CreateErrorEvt{Message: "must log in first"})
		return
	}
	if user.CurrentRoom != "" {
		send(conn, protocol.TypeCreateError, protocol.CreateErrorEvt{Message: "already in a room"})
		return
	}

	room, err := d.state.Rooms.Create(conn.PeerID(), user.DisplayName, conn)
	if err != nil {
		send(conn, protocol.TypeCreateError, protocol.CreateErrorEvt{Message: err.Error()})
		return
	}

	d.state.Users.SetRoom(conn.PeerID(), room.Key)
	metrics.ActiveRooms.Inc()
	send(conn, protocol.TypeRoomCreated, protocol.RoomCreatedEvt{RoomKey: string(room.Key)})
}

// handleJoinRoom implements join-room and, per spec.md §4.4, is reused
// verbatim for accept-invite.
func (d *Dispatcher) handleJoinRoom(ctx context.Context, conn Conn, rawKey string) {
	user, ok := d.state.Users.FindByID(conn.PeerID())
	if !ok {
		send(conn, protocol.TypeJoinError, protocol.JoinErrorEvt{Message: "must log in first"})
		return
	}
	if user.CurrentRoom != "" {
		send(conn, protocol.TypeJoinError, protocol.JoinErrorEvt{Message: "already in a room"})
		return
	}

	key := registry.RoomKeyType(roomkey.Normalise(rawKey))

	existingMembers, exists := d.state.Rooms.Snapshot(key)
	if !exists {
		send(conn, protocol.TypeJoinError, protocol.JoinErrorEvt{Message: "room not found"})
		return
	}

	// Snapshot existing membership before mutating, so room-joined carries
	// exactly the peers present before this join.
	peers := make([]protocol.PeerSummary, 0, len(existingMembers))
	for _, m := range existingMembers {
		peers = append(peers, protocol.PeerSummary{PeerID: string(m.PeerID), Username: string(m.DisplayName)})
	}

	room, err := d.state.Rooms.Join(key, conn.PeerID(), user.DisplayName, conn)
	if err != nil {
		send(conn, protocol.TypeJoinError, protocol.JoinErrorEvt{Message: err.Error()})
		return
	}
	d.state.Users.SetRoom(conn.PeerID(), room.Key)
	metrics.RoomParticipants.WithLabelValues(string(room.Key)).Set(float64(len(room.Members)))

	// room-joined must reach the joiner strictly before peer-joined reaches
	// the other members (spec.md §5 ordering guarantee) — send it first,
	// synchronously, before fanning out.
	send(conn, protocol.TypeRoomJoined, protocol.RoomJoinedEvt{RoomKey: string(room.Key), Peers: peers})

	for _, m := range existingMembers {
		send(m.Socket.(Conn), protocol.TypePeerJoined, protocol.PeerJoinedEvt{
			PeerID:   string(conn.PeerID()),
			Username: string(user.DisplayName),
		})
	}
}

func (d *Dispatcher) handleInvite(ctx context.Context, conn Conn, msg protocol.InviteMsg) {
	inviter, ok := d.state.Users.FindByID(conn.PeerID())
	if !ok || inviter.CurrentRoom == "" {
		send(conn, protocol.TypeInviteError, protocol.InviteErrorEvt{Message: "must be in a room to invite"})
		return
	}

	target, ok := d.state.Users.FindByName(registry.UsernameType(msg.ToUsername))
	if !ok {
		send(conn, protocol.TypeInviteError, protocol.InviteErrorEvt{Message: "user not found"})
		return
	}
	if target.PeerID == conn.PeerID() {
		send(conn, protocol.TypeInviteError, protocol.InviteErrorEvt{Message: "cannot invite yourself"})
		return
	}
	if target.CurrentRoom != "" {
		send(conn, protocol.TypeInviteError, protocol.InviteErrorEvt{Message: "user is already in a room"})
		return
	}

	send(target.Socket.(Conn), protocol.TypeInviteEvt, protocol.InviteEvt{
		FromUsername: string(inviter.DisplayName),
		RoomKey:      string(inviter.CurrentRoom),
	})
	send(conn, protocol.TypeInviteSent, protocol.InviteSentEvt{ToUsername: string(target.DisplayName)})
}

// handleDeclineInvite broadcasts invite-declined to the whole room, not just
// the inviter — spec.md's Open Question (a): deliberate, not a bug.
func (d *Dispatcher) handleDeclineInvite(ctx context.Context, conn Conn, msg protocol.DeclineInviteMsg) {
	decliner, ok := d.state.Users.FindByID(conn.PeerID())
	if !ok {
		return
	}
	key := registry.RoomKeyType(roomkey.Normalise(msg.RoomKey))
	members, exists := d.state.Rooms.Snapshot(key)
	if !exists {
		return
	}
	for _, m := range members {
		if m.PeerID == conn.PeerID() {
			continue
		}
		send(m.Socket.(Conn), protocol.TypeInviteDeclined, protocol.InviteDeclinedEvt{Username: string(decliner.DisplayName)})
	}
}

func (d *Dispatcher) handleSignal(ctx context.Context, conn Conn, msg protocol.SignalMsg) {
	target, ok := d.state.Users.FindByID(registry.PeerIDType(msg.ToPeerID))
	if !ok {
		return
	}
	send(target.Socket.(Conn), protocol.TypeSignalEvt, protocol.SignalEvt{
		FromPeerID: string(conn.PeerID()),
		Data:       msg.Data,
	})
}

func (d *Dispatcher) handleLeaveRoom(ctx context.Context, conn Conn) {
	user, ok := d.state.Users.FindByID(conn.PeerID())
	if !ok || user.CurrentRoom == "" {
		send(conn, protocol.TypeLeftRoom, struct{}{})
		return
	}

	key := user.CurrentRoom
	room, wasEmpty := d.state.Rooms.Leave(key, conn.PeerID())
	d.state.Users.SetRoom(conn.PeerID(), "")

	if wasEmpty {
		metrics.ActiveRooms.Dec()
	}

	if room != nil {
		for _, peerID := range room.Order {
			m := room.Members[peerID]
			send(m.Socket.(Conn), protocol.TypePeerLeft, protocol.PeerLeftEvt{
				PeerID:   string(conn.PeerID()),
				Username: string(user.DisplayName),
			})
		}
		if !wasEmpty {
			metrics.RoomParticipants.WithLabelValues(string(key)).Set(float64(len(room.Members)))
		}
	}

	send(conn, protocol.TypeLeftRoom, struct{}{})
}

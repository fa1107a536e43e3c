package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/registry"
)

// fakeConn captures every frame sent to it, for assertions.
type fakeConn struct {
	peerID registry.PeerIDType
	frames []map[string]any
}

func newFakeConn(peerID string) *fakeConn {
	return &fakeConn{peerID: registry.PeerIDType(peerID)}
}

func (c *fakeConn) PeerID() registry.PeerIDType { return c.peerID }

func (c *fakeConn) Send(data []byte) {
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	c.frames = append(c.frames, m)
}

func (c *fakeConn) last() map[string]any {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

func (c *fakeConn) typesSeen() []string {
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i], _ = f["type"].(string)
	}
	return out
}

func newDispatcherWithLogin(t *testing.T, peerID, username string) (*Dispatcher, *fakeConn) {
	t.Helper()
	d := NewDispatcher(NewServerState())
	conn := newFakeConn(peerID)
	d.HandleMessage(context.Background(), conn, []byte(`{"type":"login","username":"`+username+`"}`))
	require.Equal(t, "login-ok", conn.last()["type"])
	return d, conn
}

func TestScenario_S1_HostAndGuestJoin(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	b := newFakeConn("peerB")
	d.HandleMessage(context.Background(), b, []byte(`{"type":"login","username":"bob"}`))
	require.Equal(t, "login-ok", b.last()["type"])

	d.HandleMessage(context.Background(), a, []byte(`{"type":"create-room"}`))
	require.Equal(t, "room-created", a.last()["type"])
	roomKey := a.last()["roomKey"].(string)
	assert.NotEmpty(t, roomKey)

	d.HandleMessage(context.Background(), b, []byte(`{"type":"join-room","roomKey":"`+roomKey+`"}`))
	require.Equal(t, "room-joined", b.last()["type"])
	assert.Equal(t, roomKey, b.last()["roomKey"])

	// A must have received peer-joined for B after B's join.
	require.Equal(t, "peer-joined", a.last()["type"])
	assert.Equal(t, "peerB", a.last()["peerId"])
}

func TestScenario_S3_DuplicateName(t *testing.T) {
	d, _ := newDispatcherWithLogin(t, "peerA", "alice")
	c := newFakeConn("peerC")
	d.HandleMessage(context.Background(), c, []byte(`{"type":"login","username":"ALICE"}`))
	assert.Equal(t, "login-error", c.last()["type"])
}

func TestScenario_S4_JoinNonexistentRoom(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	d.HandleMessage(context.Background(), a, []byte(`{"type":"join-room","roomKey":"ZZZ-ZZZ-ZZZ"}`))
	assert.Equal(t, "join-error", a.last()["type"])
}

func TestScenario_S5_InviteHappyPath(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	b := newFakeConn("peerB")
	d.HandleMessage(context.Background(), b, []byte(`{"type":"login","username":"bob"}`))

	d.HandleMessage(context.Background(), a, []byte(`{"type":"create-room"}`))
	roomKey := a.last()["roomKey"].(string)

	d.HandleMessage(context.Background(), a, []byte(`{"type":"invite","toUsername":"bob"}`))
	assert.Equal(t, "invite-sent", a.last()["type"])
	assert.Equal(t, "bob", a.last()["toUsername"])

	assert.Equal(t, "invite", b.last()["type"])
	assert.Equal(t, "alice", b.last()["fromUsername"])
	assert.Equal(t, roomKey, b.last()["roomKey"])
}

func TestScenario_S6_SelfInvite(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	d.HandleMessage(context.Background(), a, []byte(`{"type":"create-room"}`))
	d.HandleMessage(context.Background(), a, []byte(`{"type":"invite","toUsername":"alice"}`))
	assert.Equal(t, "invite-error", a.last()["type"])
}

func TestSignalFidelity(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	b := newFakeConn("peerB")
	d.HandleMessage(context.Background(), b, []byte(`{"type":"login","username":"bob"}`))

	d.HandleMessage(context.Background(), a, []byte(`{"type":"signal","toPeerId":"peerB","data":{"kind":"offer","sdp":"X"}}`))

	require.Equal(t, "signal", b.last()["type"])
	assert.Equal(t, "peerA", b.last()["fromPeerId"])

	// Unknown target: nothing delivered, no error to sender.
	before := len(a.frames)
	d.HandleMessage(context.Background(), a, []byte(`{"type":"signal","toPeerId":"unknown","data":{}}`))
	assert.Equal(t, before, len(a.frames))
}

func TestDisconnectFanOut(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	b := newFakeConn("peerB")
	d.HandleMessage(context.Background(), b, []byte(`{"type":"login","username":"bob"}`))
	c := newFakeConn("peerC")
	d.HandleMessage(context.Background(), c, []byte(`{"type":"login","username":"carol"}`))

	d.HandleMessage(context.Background(), a, []byte(`{"type":"create-room"}`))
	roomKey := a.last()["roomKey"].(string)
	d.HandleMessage(context.Background(), b, []byte(`{"type":"join-room","roomKey":"`+roomKey+`"}`))
	d.HandleMessage(context.Background(), c, []byte(`{"type":"join-room","roomKey":"`+roomKey+`"}`))

	d.HandleDisconnect(context.Background(), b)

	peerLeftCount := 0
	for _, typ := range a.typesSeen() {
		if typ == "peer-left" {
			peerLeftCount++
		}
	}
	assert.Equal(t, 1, peerLeftCount)
}

func TestDeclineInviteBroadcastsToWholeRoom(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	b := newFakeConn("peerB")
	d.HandleMessage(context.Background(), b, []byte(`{"type":"login","username":"bob"}`))
	c := newFakeConn("peerC")
	d.HandleMessage(context.Background(), c, []byte(`{"type":"login","username":"carol"}`))

	d.HandleMessage(context.Background(), a, []byte(`{"type":"create-room"}`))
	roomKey := a.last()["roomKey"].(string)
	d.HandleMessage(context.Background(), c, []byte(`{"type":"join-room","roomKey":"`+roomKey+`"}`))

	d.HandleMessage(context.Background(), b, []byte(`{"type":"decline-invite","roomKey":"`+roomKey+`"}`))

	// Decliner (B) never joined the room but decline-invite still broadcasts
	// to whichever room is named — spec's Open Question (a): to the room,
	// not just an inviter.
	assert.Equal(t, "invite-declined", a.last()["type"])
	assert.Equal(t, "invite-declined", c.last()["type"])
}

func TestLeaveRoomIdempotentWhenNotInRoom(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	d.HandleMessage(context.Background(), a, []byte(`{"type":"leave-room"}`))
	assert.Equal(t, "left-room", a.last()["type"])
}

func TestUnknownMessageTypeDropped(t *testing.T) {
	d, a := newDispatcherWithLogin(t, "peerA", "alice")
	before := len(a.frames)
	d.HandleMessage(context.Background(), a, []byte(`{"type":"not-a-real-type"}`))
	assert.Equal(t, before, len(a.frames))
}

func TestMalformedFrameDropped(t *testing.T) {
	d := NewDispatcher(NewServerState())
	conn := newFakeConn("peerA")
	assert.NotPanics(t, func() {
		d.HandleMessage(context.Background(), conn, []byte(`not json`))
	})
	assert.Empty(t, conn.frames)
}

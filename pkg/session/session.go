// Package session implements the client-side Session coordinator: it owns
// one SignalingTransport, one PeerEngine, and one AudioAdapter, and
// translates the wire protocol into observable Participant state. Grounded
// on the teacher's event-driven Room/Client shape, adapted into an
// async-but-synchronous Go API (methods returning (T, error)) instead of
// promises.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/apperrors"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/protocol"
	"github.com/TheCodeDaniel/voiceSync/pkg/audio"
	"github.com/TheCodeDaniel/voiceSync/pkg/peerengine"
	"github.com/TheCodeDaniel/voiceSync/pkg/signaling"
)

const (
	defaultRequestTimeout = 10 * time.Second
	leaveDrain            = 250 * time.Millisecond
	speakingRMS           = 0.01
)

// Participant is the client-side read-only view of one room member.
type Participant struct {
	PeerID      string
	DisplayName string
	IsSpeaking  bool
	IsMuted     bool
	IsSelf      bool
}

// Session is the top-level client coordinator described in spec §4.7.
type Session struct {
	transport *signaling.Client
	peers     *peerengine.Engine
	audio     audio.Adapter

	mu           sync.Mutex
	selfPeerID   string
	currentRoom  string
	participants map[string]*Participant

	// requestTimeout bounds call(). Set from defaultRequestTimeout by New;
	// tests construct a Session literal directly with a short value to
	// exercise the timeout bound without a real 10s wait.
	requestTimeout time.Duration

	onParticipantUpdate func([]*Participant)
	onInvite            func(fromUsername, roomKey string)
	onInviteSent        func(toUsername string)
	onInviteError       func(message string)
	onInviteDeclined    func(username string)
	onEnded             func()
	onError             func(error)
}

// New constructs a Session targeting serverURL, with the given AudioAdapter
// (pass audio.NewStub() where no real device I/O is available).
func New(serverURL string, audioAdapter audio.Adapter) *Session {
	s := &Session{
		transport:      signaling.NewClient(serverURL),
		peers:          peerengine.New(),
		audio:          audioAdapter,
		participants:   make(map[string]*Participant),
		requestTimeout: defaultRequestTimeout,
	}
	s.wireTransport()
	s.wirePeers()
	s.wireAudio()
	return s
}

// OnParticipantUpdate registers the callback fired whenever the
// participant set or any participant's speaking/muted state changes.
func (s *Session) OnParticipantUpdate(fn func([]*Participant)) { s.onParticipantUpdate = fn }

// OnInvite registers the callback for an incoming room invite.
func (s *Session) OnInvite(fn func(fromUsername, roomKey string)) { s.onInvite = fn }

// OnInviteSent registers the callback fired once our own invite was delivered.
func (s *Session) OnInviteSent(fn func(toUsername string)) { s.onInviteSent = fn }

// OnInviteError registers the callback fired when our own invite failed.
func (s *Session) OnInviteError(fn func(message string)) { s.onInviteError = fn }

// OnInviteDeclined registers the callback fired when a user declines an
// invite to the current room (the server broadcasts this to every member).
func (s *Session) OnInviteDeclined(fn func(username string)) { s.onInviteDeclined = fn }

// OnEnded registers the callback fired when the call ends (leave or
// CONN_LOST).
func (s *Session) OnEnded(fn func()) { s.onEnded = fn }

// OnError registers the callback for non-fatal engine/audio/signaling errors.
func (s *Session) OnError(fn func(error)) { s.onError = fn }

func (s *Session) emitError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Session) emitParticipantUpdate() {
	if s.onParticipantUpdate == nil {
		return
	}
	s.mu.Lock()
	list := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		cp := *p
		list = append(list, &cp)
	}
	s.mu.Unlock()
	s.onParticipantUpdate(list)
}

// call pairs successEvent/errorEvent, invokes send, and waits up to
// requestTimeout for one of them (or ctx cancellation). It removes both
// listeners exactly once regardless of outcome.
func (s *Session) call(ctx context.Context, successEvent, errorEvent string, send func()) (json.RawMessage, error) {
	type result struct {
		payload json.RawMessage
		err     error
	}
	resultCh := make(chan result, 1)
	var once sync.Once
	complete := func(r result) { once.Do(func() { resultCh <- r }) }

	offSuccess := s.transport.On(successEvent, func(payload json.RawMessage) {
		complete(result{payload: payload})
	})
	offError := s.transport.On(errorEvent, func(payload json.RawMessage) {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &body)
		complete(result{err: apperrors.NewSignalingError(errorEvent, body.Message)})
	})
	defer offSuccess()
	defer offError()

	send()

	timer := time.NewTimer(s.requestTimeout)
	defer timer.Stop()

	select {
	case r := <-resultCh:
		return r.payload, r.err
	case <-timer.C:
		return nil, apperrors.NewSignalingError(successEvent, fmt.Sprintf("request timed out after %s", s.requestTimeout))
	case <-ctx.Done():
		return nil, apperrors.NewSignalingError(successEvent, ctx.Err().Error())
	}
}

// Connect opens signaling and logs in. It does not start audio capture: the
// audio.Adapter interface has no start operation, and the adapter is used as
// handed to New.
func (s *Session) Connect(ctx context.Context, username string) error {
	if err := s.transport.Connect(ctx); err != nil {
		return err
	}

	payload, err := s.call(ctx, protocol.TypeLoginOK, protocol.TypeLoginError, func() {
		s.transport.Send(protocol.TypeLogin, protocol.LoginMsg{Username: username})
	})
	if err != nil {
		return err
	}

	var loginOK protocol.LoginOKEvt
	if err := json.Unmarshal(payload, &loginOK); err != nil {
		return apperrors.NewSignalingError(apperrors.CodeWSError, err.Error())
	}

	s.mu.Lock()
	s.selfPeerID = loginOK.PeerID
	s.participants[loginOK.PeerID] = &Participant{PeerID: loginOK.PeerID, DisplayName: username, IsSelf: true}
	s.mu.Unlock()

	return nil
}

// CreateRoom asks the server to mint a fresh room and returns its key.
func (s *Session) CreateRoom(ctx context.Context) (string, error) {
	payload, err := s.call(ctx, protocol.TypeRoomCreated, protocol.TypeCreateError, func() {
		s.transport.Send(protocol.TypeCreateRoom, struct{}{})
	})
	if err != nil {
		return "", err
	}

	var evt protocol.RoomCreatedEvt
	if err := json.Unmarshal(payload, &evt); err != nil {
		return "", apperrors.NewSignalingError(apperrors.CodeWSError, err.Error())
	}

	s.mu.Lock()
	s.currentRoom = evt.RoomKey
	s.mu.Unlock()
	return evt.RoomKey, nil
}

// JoinRoom joins an existing room and negotiates with every existing peer
// as the initiator. Existing members create their side as responders when
// peer-joined arrives, so each pair produces exactly one offer.
func (s *Session) JoinRoom(ctx context.Context, roomKey string) error {
	payload, err := s.call(ctx, protocol.TypeRoomJoined, protocol.TypeJoinError, func() {
		s.transport.Send(protocol.TypeJoinRoom, protocol.JoinRoomMsg{RoomKey: roomKey})
	})
	if err != nil {
		return err
	}

	var evt protocol.RoomJoinedEvt
	if err := json.Unmarshal(payload, &evt); err != nil {
		return apperrors.NewSignalingError(apperrors.CodeWSError, err.Error())
	}

	s.mu.Lock()
	s.currentRoom = evt.RoomKey
	for _, peer := range evt.Peers {
		s.participants[peer.PeerID] = &Participant{PeerID: peer.PeerID, DisplayName: peer.Username}
	}
	s.mu.Unlock()

	for _, peer := range evt.Peers {
		if err := s.peers.Create(peer.PeerID, true, s.audio.GetLocalTrack()); err != nil {
			s.emitError(err)
		}
	}
	s.emitParticipantUpdate()
	return nil
}

// Invite asks the server to notify the named user of an invite to the
// current room.
func (s *Session) Invite(ctx context.Context, toUsername string) error {
	_, err := s.call(ctx, protocol.TypeInviteSent, protocol.TypeInviteError, func() {
		s.transport.Send(protocol.TypeInvite, protocol.InviteMsg{ToUsername: toUsername})
	})
	return err
}

// SetMuted toggles local audio and updates the self Participant.
func (s *Session) SetMuted(muted bool) {
	if muted {
		s.audio.Mute()
	} else {
		s.audio.Unmute()
	}

	s.mu.Lock()
	if p, ok := s.participants[s.selfPeerID]; ok {
		p.IsMuted = muted
	}
	s.mu.Unlock()
	s.emitParticipantUpdate()
}

// Leave sends leave-room (if currently in one), waits for delivery, then
// disconnects the transport. Cleanup always runs, even if signaling send
// fails to reach the server.
func (s *Session) Leave() {
	s.mu.Lock()
	inRoom := s.currentRoom != ""
	s.mu.Unlock()

	if inRoom {
		s.transport.Send(protocol.TypeLeaveRoom, struct{}{})
		time.Sleep(leaveDrain)
	}

	s.transport.Disconnect()
	s.cleanup()
}

func (s *Session) cleanup() {
	s.peers.DestroyAll()
	_ = s.audio.Close()

	s.mu.Lock()
	s.currentRoom = ""
	s.participants = make(map[string]*Participant)
	s.mu.Unlock()

	if s.onEnded != nil {
		s.onEnded()
	}
}

func (s *Session) wireTransport() {
	s.transport.On(protocol.TypePeerJoined, func(raw json.RawMessage) {
		var evt protocol.PeerJoinedEvt
		if err := json.Unmarshal(raw, &evt); err != nil {
			return
		}
		s.mu.Lock()
		s.participants[evt.PeerID] = &Participant{PeerID: evt.PeerID, DisplayName: evt.Username}
		s.mu.Unlock()

		if err := s.peers.Create(evt.PeerID, false, s.audio.GetLocalTrack()); err != nil {
			s.emitError(err)
		}
		s.emitParticipantUpdate()
	})

	s.transport.On(protocol.TypePeerLeft, func(raw json.RawMessage) {
		var evt protocol.PeerLeftEvt
		if err := json.Unmarshal(raw, &evt); err != nil {
			return
		}
		s.mu.Lock()
		delete(s.participants, evt.PeerID)
		s.mu.Unlock()

		s.peers.Destroy(evt.PeerID)
		s.audio.RemoveRemote(evt.PeerID)
		s.emitParticipantUpdate()
	})

	s.transport.On(protocol.TypeSignalEvt, func(raw json.RawMessage) {
		var evt protocol.SignalEvt
		if err := json.Unmarshal(raw, &evt); err != nil {
			return
		}
		sig, err := peerengine.UnmarshalSignal(evt.Data)
		if err != nil {
			s.emitError(err)
			return
		}
		if err := s.peers.Signal(context.Background(), evt.FromPeerID, sig); err != nil {
			s.emitError(err)
		}
	})

	s.transport.On(protocol.TypeLeftRoom, func(json.RawMessage) {
		s.cleanup()
	})

	s.transport.On(protocol.TypeInviteEvt, func(raw json.RawMessage) {
		var evt protocol.InviteEvt
		if err := json.Unmarshal(raw, &evt); err == nil && s.onInvite != nil {
			s.onInvite(evt.FromUsername, evt.RoomKey)
		}
	})
	s.transport.On(protocol.TypeInviteSent, func(raw json.RawMessage) {
		var evt protocol.InviteSentEvt
		if err := json.Unmarshal(raw, &evt); err == nil && s.onInviteSent != nil {
			s.onInviteSent(evt.ToUsername)
		}
	})
	s.transport.On(protocol.TypeInviteError, func(raw json.RawMessage) {
		var evt protocol.InviteErrorEvt
		if err := json.Unmarshal(raw, &evt); err == nil && s.onInviteError != nil {
			s.onInviteError(evt.Message)
		}
	})
	s.transport.On(protocol.TypeInviteDeclined, func(raw json.RawMessage) {
		var evt protocol.InviteDeclinedEvt
		if err := json.Unmarshal(raw, &evt); err == nil && s.onInviteDeclined != nil {
			s.onInviteDeclined(evt.Username)
		}
	})

	s.transport.OnError(func(sigErr *apperrors.SignalingError) {
		s.mu.Lock()
		inRoom := s.currentRoom != ""
		s.mu.Unlock()
		if inRoom || errors.Is(sigErr, apperrors.ErrConnLost) {
			s.emitError(fmt.Errorf("fatal: %w", sigErr))
			s.cleanup()
		} else {
			s.emitError(sigErr)
		}
	})
}

func (s *Session) wirePeers() {
	s.peers.OnSignal(func(peerID string, sig peerengine.Signal) {
		data, err := peerengine.MarshalSignal(sig)
		if err != nil {
			s.emitError(err)
			return
		}
		s.transport.Send(protocol.TypeSignal, protocol.SignalMsg{ToPeerID: peerID, Data: data})
	})

	s.peers.OnTrack(func(peerID string, track *webrtc.TrackRemote) {
		s.audio.AddRemote(peerID, track)
	})

	s.peers.OnConnected(func(peerID string) {
		logging.Info(context.Background(), "peer connected", zap.String("peer_id", peerID))
	})

	s.peers.OnDisconnected(func(peerID string) {
		logging.Info(context.Background(), "peer disconnected", zap.String("peer_id", peerID))
	})

	s.peers.OnError(func(peerID string, err *apperrors.PeerError) {
		s.emitError(err)
	})
}

func (s *Session) wireAudio() {
	selfSpeaking := false
	s.audio.OnSamples(func(e audio.SamplesEvent) {
		speaking := audio.RMS(e.Samples) > speakingRMS
		if speaking == selfSpeaking {
			return
		}
		selfSpeaking = speaking

		s.mu.Lock()
		if p, ok := s.participants[s.selfPeerID]; ok {
			p.IsSpeaking = speaking
		}
		s.mu.Unlock()
		s.emitParticipantUpdate()
	})
}

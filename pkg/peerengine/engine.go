// Package peerengine is a thin facade over pion/webrtc/v4, the Go
// ecosystem's WebRTC engine. It is grounded on the STUN/ICE configuration
// pattern used by the voice service's webrtc_config.go and the
// peer-connection lifecycle bookkeeping of the reference "bro" internal
// webrtc package, adapted to the trickle-ICE signal/track/connected/
// disconnected event surface this project's Session expects.
package peerengine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/apperrors"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/logging"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/metrics"
)

// Signal is the trickle-ICE-friendly fragment exchanged with a remote peer:
// either an SDP offer/answer or a single ICE candidate.
type Signal struct {
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Engine manages the set of live peer connections for one local session.
// Exactly one Engine exists per Session; peers are keyed by the opaque
// peerId the signaling server assigns to each remote connection.
type Engine struct {
	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
	api   *webrtc.API

	onSignal       func(peerID string, sig Signal)
	onTrack        func(peerID string, track *webrtc.TrackRemote)
	onConnected    func(peerID string)
	onDisconnected func(peerID string)
	onError        func(peerID string, err *apperrors.PeerError)
}

func defaultConfiguration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"stun:stun1.l.google.com:19302"}},
		},
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
		BundlePolicy:       webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
	}
}

// New constructs an Engine with the default media engine.
func New() *Engine {
	m := &webrtc.MediaEngine{}
	_ = m.RegisterDefaultCodecs()
	return &Engine{
		peers: make(map[string]*webrtc.PeerConnection),
		api:   webrtc.NewAPI(webrtc.WithMediaEngine(m)),
	}
}

// OnSignal registers the callback invoked whenever a peer connection
// produces a negotiation fragment destined for the remote side.
func (e *Engine) OnSignal(fn func(peerID string, sig Signal)) { e.onSignal = fn }

// OnTrack registers the callback invoked when a remote audio track arrives.
func (e *Engine) OnTrack(fn func(peerID string, track *webrtc.TrackRemote)) { e.onTrack = fn }

// OnConnected registers the callback invoked on data-plane establishment.
func (e *Engine) OnConnected(fn func(peerID string)) { e.onConnected = fn }

// OnDisconnected registers the callback invoked on close or failure; the
// entry is removed from the Engine before this fires.
func (e *Engine) OnDisconnected(fn func(peerID string)) { e.onDisconnected = fn }

// OnError registers the callback invoked on a non-recoverable peer failure.
func (e *Engine) OnError(fn func(peerID string, err *apperrors.PeerError)) { e.onError = fn }

// Create tears down any prior connection for peerID, then builds a fresh
// one. initiator=true means the local side produces the opening offer.
// localTrack may be nil (e.g. while muted or before capture starts).
func (e *Engine) Create(peerID string, initiator bool, localTrack *webrtc.TrackLocalStaticSample) error {
	e.Destroy(peerID)

	pc, err := e.api.NewPeerConnection(defaultConfiguration())
	if err != nil {
		metrics.PeerConnectionAttempts.WithLabelValues("failed").Inc()
		return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
	}

	if localTrack != nil {
		if _, err := pc.AddTrack(localTrack); err != nil {
			pc.Close()
			return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
		}
	}

	e.wireHandlers(peerID, pc)

	e.mu.Lock()
	e.peers[peerID] = pc
	e.mu.Unlock()

	if initiator {
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
		}
		if e.onSignal != nil {
			e.onSignal(peerID, Signal{SDP: &offer})
		}
	}

	metrics.PeerConnectionAttempts.WithLabelValues("created").Inc()
	return nil
}

func (e *Engine) wireHandlers(peerID string, pc *webrtc.PeerConnection) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || e.onSignal == nil {
			return
		}
		init := c.ToJSON()
		e.onSignal(peerID, Signal{Candidate: &init})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if e.onTrack != nil {
			e.onTrack(peerID, track)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			metrics.PeerConnectionAttempts.WithLabelValues("connected").Inc()
			if e.onConnected != nil {
				e.onConnected(peerID)
			}
		case webrtc.PeerConnectionStateFailed:
			if e.onError != nil {
				e.onError(peerID, apperrors.NewPeerError(apperrors.CodeWebRTCError, "peer connection failed"))
			}
			e.Destroy(peerID)
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			e.Destroy(peerID)
		}
	})
}

// Signal hands an inbound fragment to the named connection, creating the
// answer and setting it as the local description when the fragment carries
// an offer. An unknown peerID is logged and ignored.
func (e *Engine) Signal(ctx context.Context, peerID string, sig Signal) error {
	e.mu.Lock()
	pc, ok := e.peers[peerID]
	e.mu.Unlock()
	if !ok {
		logging.Warn(ctx, "peerengine: signal for unknown peer", zap.String("peer_id", peerID))
		return nil
	}

	if sig.Candidate != nil {
		if err := pc.AddICECandidate(*sig.Candidate); err != nil {
			return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
		}
	}

	if sig.SDP != nil {
		if err := pc.SetRemoteDescription(*sig.SDP); err != nil {
			return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
		}

		if sig.SDP.Type == webrtc.SDPTypeOffer {
			answer, err := pc.CreateAnswer(nil)
			if err != nil {
				return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
			}
			if err := pc.SetLocalDescription(answer); err != nil {
				return apperrors.NewPeerError(apperrors.CodeWebRTCError, err.Error())
			}
			if e.onSignal != nil {
				e.onSignal(peerID, Signal{SDP: &answer})
			}
		}
	}

	return nil
}

// Destroy closes and removes the connection for peerID, if any. It is a
// no-op for an unknown peerID.
func (e *Engine) Destroy(peerID string) {
	e.mu.Lock()
	pc, ok := e.peers[peerID]
	if ok {
		delete(e.peers, peerID)
	}
	e.mu.Unlock()

	if !ok {
		return
	}
	pc.Close()
	if e.onDisconnected != nil {
		e.onDisconnected(peerID)
	}
}

// DestroyAll closes every live connection deterministically.
func (e *Engine) DestroyAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.peers))
	for id := range e.peers {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.Destroy(id)
	}
}

// MarshalSignal and UnmarshalSignal let the Session fold a Signal into the
// opaque `data` field of the wire protocol's signal message.
func MarshalSignal(sig Signal) (json.RawMessage, error) {
	return json.Marshal(sig)
}

func UnmarshalSignal(data json.RawMessage) (Signal, error) {
	var sig Signal
	err := json.Unmarshal(data, &sig)
	return sig, err
}

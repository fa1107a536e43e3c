// Package audio defines the AudioAdapter boundary: real microphone/speaker
// I/O is out of scope for this repository (spec §1 Non-goals), so this
// package exposes only the interface Session depends on plus a
// deterministic in-memory stub for tests.
package audio

import (
	"math"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/apperrors"
)

// SamplesEvent carries one batch of local-mic PCM samples for speaking
// detection.
type SamplesEvent struct {
	Samples []float32
}

// Adapter is the boundary Session drives; a real implementation would wrap
// a platform microphone/speaker API (not provided here).
type Adapter interface {
	GetLocalTrack() *webrtc.TrackLocalStaticSample
	AddRemote(peerID string, track *webrtc.TrackRemote)
	RemoveRemote(peerID string)
	Mute()
	Unmute()
	IsMuted() bool
	OnSamples(fn func(SamplesEvent))
	Close() error
}

// RMS computes the root-mean-square of one sample batch, the measure
// Session's speaking detector thresholds against.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// Stub is a deterministic in-memory Adapter: it never touches a real
// device, and lets tests inject sample batches via Feed.
type Stub struct {
	mu      sync.Mutex
	muted   bool
	remotes map[string]*webrtc.TrackRemote
	onSamp  func(SamplesEvent)
	closed  bool
}

// NewStub constructs an unmuted, empty Stub.
func NewStub() *Stub {
	return &Stub{remotes: make(map[string]*webrtc.TrackRemote)}
}

func (s *Stub) GetLocalTrack() *webrtc.TrackLocalStaticSample { return nil }

func (s *Stub) AddRemote(peerID string, track *webrtc.TrackRemote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remotes[peerID] = track
}

func (s *Stub) RemoveRemote(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.remotes, peerID)
}

func (s *Stub) Mute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = true
}

func (s *Stub) Unmute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = false
}

func (s *Stub) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Stub) OnSamples(fn func(SamplesEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSamp = fn
}

// Feed lets tests simulate one batch of captured samples arriving from the
// (absent) microphone.
func (s *Stub) Feed(samples []float32) {
	s.mu.Lock()
	fn := s.onSamp
	s.mu.Unlock()
	if fn != nil {
		fn(SamplesEvent{Samples: samples})
	}
}

func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.NewAudioError(apperrors.CodeAudioGeneric, "already closed")
	}
	s.closed = true
	return nil
}

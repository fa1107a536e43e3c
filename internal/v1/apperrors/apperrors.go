// Package apperrors defines the stable error taxonomy shared by the server
// dispatcher and the client-side signaling/session/peer packages.
package apperrors

import "fmt"

// SignalingError covers transport-level failures: initial connect, a
// post-open transport fault, or reconnection exhaustion.
type SignalingError struct {
	Code    string
	Message string
}

func (e *SignalingError) Error() string {
	return fmt.Sprintf("signaling error [%s]: %s", e.Code, e.Message)
}

const (
	CodeConnectFailed = "CONNECT_FAILED"
	CodeWSError       = "WS_ERROR"
	CodeConnLost      = "CONN_LOST"
)

// Is compares by Code, so errors.Is(err, ErrConnLost) matches any
// SignalingError carrying CodeConnLost regardless of its Message.
func (e *SignalingError) Is(target error) bool {
	t, ok := target.(*SignalingError)
	return ok && e.Code == t.Code
}

// Sentinel SignalingErrors for errors.Is comparison against Code alone.
var (
	ErrConnectFailed = &SignalingError{Code: CodeConnectFailed}
	ErrWSError       = &SignalingError{Code: CodeWSError}
	ErrConnLost      = &SignalingError{Code: CodeConnLost}
)

func NewSignalingError(code, message string) *SignalingError {
	return &SignalingError{Code: code, Message: message}
}

// RoomError covers server-side room registry failures.
type RoomError struct {
	Code    string
	Message string
}

func (e *RoomError) Error() string {
	return fmt.Sprintf("room error [%s]: %s", e.Code, e.Message)
}

const (
	CodeRoomNotFound  = "ROOM_NOT_FOUND"
	CodeAlreadyInRoom = "ALREADY_IN_ROOM"
	CodeRoomGeneric   = "ROOM_ERROR"
)

// Is compares by Code, so errors.Is(err, ErrRoomNotFound) matches any
// RoomError carrying CodeRoomNotFound regardless of its Message.
func (e *RoomError) Is(target error) bool {
	t, ok := target.(*RoomError)
	return ok && e.Code == t.Code
}

// Sentinel RoomErrors for errors.Is comparison against Code alone.
var (
	ErrRoomNotFound  = &RoomError{Code: CodeRoomNotFound}
	ErrAlreadyInRoom = &RoomError{Code: CodeAlreadyInRoom}
)

func NewRoomError(code, message string) *RoomError {
	return &RoomError{Code: code, Message: message}
}

// AudioError covers the external AudioAdapter boundary.
type AudioError struct {
	Code    string
	Message string
}

func (e *AudioError) Error() string {
	return fmt.Sprintf("audio error [%s]: %s", e.Code, e.Message)
}

const (
	CodeMicOpenFailed = "MIC_OPEN_FAILED"
	CodeMicStream     = "MIC_STREAM_ERROR"
	CodeAudioGeneric  = "AUDIO_ERROR"
)

// Is compares by Code, so errors.Is(err, ErrAudioGeneric) matches any
// AudioError carrying CodeAudioGeneric regardless of its Message.
func (e *AudioError) Is(target error) bool {
	t, ok := target.(*AudioError)
	return ok && e.Code == t.Code
}

// Sentinel AudioErrors for errors.Is comparison against Code alone.
var (
	ErrMicOpenFailed = &AudioError{Code: CodeMicOpenFailed}
	ErrAudioGeneric  = &AudioError{Code: CodeAudioGeneric}
)

func NewAudioError(code, message string) *AudioError {
	return &AudioError{Code: code, Message: message}
}

// PeerError covers the PeerEngine adapter boundary.
type PeerError struct {
	Code    string
	Message string
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer error [%s]: %s", e.Code, e.Message)
}

const (
	CodeWebRTCError = "WEBRTC_ERROR"
	CodePeerGeneric = "PEER_ERROR"
)

// Is compares by Code, so errors.Is(err, ErrWebRTCError) matches any
// PeerError carrying CodeWebRTCError regardless of its Message.
func (e *PeerError) Is(target error) bool {
	t, ok := target.(*PeerError)
	return ok && e.Code == t.Code
}

// Sentinel PeerErrors for errors.Is comparison against Code alone.
var ErrWebRTCError = &PeerError{Code: CodeWebRTCError}

func NewPeerError(code, message string) *PeerError {
	return &PeerError{Code: code, Message: message}
}

package registry

import (
	"sync"
	"time"

	"github.com/TheCodeDaniel/voiceSync/internal/v1/apperrors"
	"github.com/TheCodeDaniel/voiceSync/internal/v1/roomkey"
	"k8s.io/utils/set"
)

// RoomRegistry maps a room key to its live Room. Create builds a Set of the
// live keys on each call and checks new keys against it before retrying.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[RoomKeyType]*Room
}

// NewRoomRegistry constructs an empty RoomRegistry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[RoomKeyType]*Room)}
}

// Create generates a new unique key, inserts hostPeerID as the sole member,
// and returns the new room.
func (r *RoomRegistry) Create(hostPeerID PeerIDType, hostName UsernameType, socket Socket) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	liveKeys := set.New[RoomKeyType]()
	for k := range r.rooms {
		liveKeys.Insert(k)
	}

	var key RoomKeyType
	for attempt := 0; attempt < 8; attempt++ {
		generated, err := roomkey.Generate()
		if err != nil {
			return nil, apperrors.NewRoomError(apperrors.CodeRoomGeneric, "failed to generate room key")
		}
		candidate := RoomKeyType(generated)
		if !liveKeys.Has(candidate) {
			key = candidate
			break
		}
	}
	if key == "" {
		return nil, apperrors.NewRoomError(apperrors.CodeRoomGeneric, "could not allocate a unique room key")
	}

	room := &Room{
		Key:      key,
		HostPeer: hostPeerID,
		Members: map[PeerIDType]Member{
			hostPeerID: {PeerID: hostPeerID, DisplayName: hostName, Socket: socket},
		},
		Order:     []PeerIDType{hostPeerID},
		CreatedAt: time.Now(),
	}
	r.rooms[key] = room
	return room, nil
}

// Join inserts peerID into the room identified by key.
func (r *RoomRegistry) Join(key RoomKeyType, peerID PeerIDType, name UsernameType, socket Socket) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[key]
	if !exists {
		return nil, apperrors.NewRoomError(apperrors.CodeRoomNotFound, "room not found")
	}
	if _, already := room.Members[peerID]; already {
		return nil, apperrors.NewRoomError(apperrors.CodeAlreadyInRoom, "already in a room")
	}

	room.Members[peerID] = Member{PeerID: peerID, DisplayName: name, Socket: socket}
	room.Order = append(room.Order, peerID)
	return room, nil
}

// Leave removes peerID from the room. If the member set empties as a
// result, the room is deleted and wasEmpty is true. Unknown keys return
// (nil, true).
func (r *RoomRegistry) Leave(key RoomKeyType, peerID PeerIDType) (room *Room, wasEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.rooms[key]
	if !exists {
		return nil, true
	}

	delete(existing.Members, peerID)
	for i, p := range existing.Order {
		if p == peerID {
			existing.Order = append(existing.Order[:i], existing.Order[i+1:]...)
			break
		}
	}

	if len(existing.Members) == 0 {
		delete(r.rooms, key)
		return existing, true
	}
	return existing, false
}

// Get returns the room for key, if any. The returned pointer is a live
// reference; callers that only read should prefer Snapshot.
func (r *RoomRegistry) Get(key RoomKeyType) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[key]
	return room, ok
}

// Snapshot returns a defensive copy of a room's membership, safe to range
// over without holding the registry lock — the fan-out pattern the teacher
// uses in its broadcast helpers.
func (r *RoomRegistry) Snapshot(key RoomKeyType) ([]Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[key]
	if !ok {
		return nil, false
	}
	out := make([]Member, 0, len(room.Order))
	for _, peerID := range room.Order {
		out = append(out, room.Members[peerID])
	}
	return out, true
}

// List returns a snapshot of all live rooms.
func (r *RoomRegistry) List() []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, *room)
	}
	return out
}

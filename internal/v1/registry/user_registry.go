package registry

import (
	"strings"
	"sync"
)

// UserRegistry maps a live connection's PeerID to its User record, enforcing
// case-insensitive display-name uniqueness across all live users.
type UserRegistry struct {
	mu    sync.RWMutex
	byID  map[PeerIDType]*User
	byKey map[string]PeerIDType // lower-cased display name -> peer id
}

// NewUserRegistry constructs an empty UserRegistry.
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{
		byID:  make(map[PeerIDType]*User),
		byKey: make(map[string]PeerIDType),
	}
}

// Register inserts a new user unless an existing user has the same
// display name, compared case-insensitively, in which case conflict is true
// and nothing is inserted.
func (r *UserRegistry) Register(peerID PeerIDType, name UsernameType, socket Socket) (ok bool, conflict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(string(name))
	if _, exists := r.byKey[key]; exists {
		return false, true
	}

	r.byID[peerID] = &User{PeerID: peerID, DisplayName: name, Socket: socket}
	r.byKey[key] = peerID
	return true, false
}

// Unregister removes peerID's user record. No-op on unknown ids.
func (r *UserRegistry) Unregister(peerID PeerIDType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.byID[peerID]
	if !exists {
		return
	}
	delete(r.byKey, strings.ToLower(string(user.DisplayName)))
	delete(r.byID, peerID)
}

// FindByID returns the user for peerID, if any.
func (r *UserRegistry) FindByID(peerID PeerIDType) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[peerID]
	return u, ok
}

// FindByName looks up a user by display name, case-insensitively.
func (r *UserRegistry) FindByName(name UsernameType) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peerID, ok := r.byKey[strings.ToLower(string(name))]
	if !ok {
		return nil, false
	}
	return r.byID[peerID], true
}

// SetRoom updates peerID's current-room field. No-op on unknown ids.
func (r *UserRegistry) SetRoom(peerID PeerIDType, room RoomKeyType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[peerID]; ok {
		u.CurrentRoom = room
	}
}

// List returns a snapshot of all currently registered users.
func (r *UserRegistry) List() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, *u)
	}
	return out
}

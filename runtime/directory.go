package runtime

import (
	"chat-fanout/domain"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type memberSet map[domain.UserID]domain.User

// RoomDirectory is the only writer of room membership.
// A room exists while it has members, empty sets are removed right away.
type RoomDirectory struct {
	mu      sync.RWMutex
	members map[domain.RoomName]memberSet
	rooms   map[domain.UserID]map[domain.RoomName]struct{}
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		members: make(map[domain.RoomName]memberSet),
		rooms:   make(map[domain.UserID]map[domain.RoomName]struct{}),
	}
}

// Join adds user to room and reports whether it was not a member yet.
func (d *RoomDirectory) Join(user domain.User, room domain.RoomName) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.members[room]
	if !ok {
		members = make(memberSet)
		d.members[room] = members
	}
	if _, already := members[user.ID]; already {
		return false
	}
	members[user.ID] = user

	if _, ok := d.rooms[user.ID]; !ok {
		d.rooms[user.ID] = make(map[domain.RoomName]struct{})
	}
	d.rooms[user.ID][room] = struct{}{}
	return true
}

// Leave removes user from room and reports whether it was a member.
func (d *RoomDirectory) Leave(user domain.UserID, room domain.RoomName) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.members[room]
	if !ok {
		return false
	}
	if _, ok := members[user]; !ok {
		return false
	}
	delete(members, user)
	if len(members) == 0 {
		delete(d.members, room)
	}

	delete(d.rooms[user], room)
	if len(d.rooms[user]) == 0 {
		delete(d.rooms, user)
	}
	return true
}

// MembersOf returns the members of room ordered by username.
func (d *RoomDirectory) MembersOf(room domain.RoomName) []domain.User {
	d.mu.RLock()
	users := lo.Values(d.members[room])
	d.mu.RUnlock()
	sortUsers(users)
	return users
}

func (d *RoomDirectory) IsMember(user domain.UserID, room domain.RoomName) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.members[room][user]
	return ok
}

func (d *RoomDirectory) RoomsOf(user domain.UserID) []domain.RoomName {
	d.mu.RLock()
	rooms := lo.Keys(d.rooms[user])
	d.mu.RUnlock()
	slices.Sort(rooms)
	return rooms
}

// Rooms returns the existing rooms with their member count.
func (d *RoomDirectory) Rooms() map[domain.RoomName]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.MapValues(d.members, func(m memberSet, _ domain.RoomName) int { return len(m) })
}

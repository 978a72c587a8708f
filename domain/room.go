package domain

// RoomName is the key of a room. Rooms exist as long as they have members.
type RoomName string

// DefaultRoom is joined by every session right after authentication.
const DefaultRoom RoomName = "global"

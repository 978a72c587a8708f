package domain

import "time"

// User is the durable identity behind a connection.
// It is created on first authentication and never deleted.
type User struct {
	ID        UserID    `json:"id" cbor:"1,keyasint"`
	Username  string    `json:"username" cbor:"2,keyasint"`
	CreatedAt time.Time `json:"createdAt" cbor:"3,keyasint"`
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

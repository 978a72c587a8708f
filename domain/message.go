// Package domain contains core concepts of the chat system.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"slices"
	"time"
)

type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

func (k Kind) Valid() bool {
	return k == KindText || k == KindFile
}

type Reaction struct {
	UserID UserID `json:"userId" cbor:"1,keyasint"`
	Emoji  string `json:"emoji" cbor:"2,keyasint"`
}

// Message is the durable record of something said in a room or privately.
// Reactions hold at most one entry per user, ReadBy is only used for private messages.
type Message struct {
	ID          MessageID   `json:"id" cbor:"1,keyasint"`
	SenderID    UserID      `json:"senderId" cbor:"2,keyasint"`
	SenderName  string      `json:"senderName" cbor:"3,keyasint"`
	Destination Destination `json:"destination" cbor:"4,keyasint"`
	Body        string      `json:"body" cbor:"5,keyasint"`
	Kind        Kind        `json:"kind" cbor:"6,keyasint"`
	Lang        string      `json:"lang,omitempty" cbor:"7,keyasint,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" cbor:"8,keyasint"`
	Reactions   []Reaction  `json:"reactions" cbor:"9,keyasint,omitempty"`
	ReadBy      []UserID    `json:"readBy,omitempty" cbor:"10,keyasint,omitempty"`
}

// Involves reports whether user is a party of the message.
// Every user is a party of a room message.
func (m Message) Involves(user UserID) bool {
	if !m.Destination.IsPrivate() {
		return true
	}
	return m.SenderID == user || m.Destination.Recipient == user
}

// React sets the reaction of user, replacing the previous one if any.
func (m *Message) React(user UserID, emoji string) {
	for i := range m.Reactions {
		if m.Reactions[i].UserID == user {
			m.Reactions[i].Emoji = emoji
			return
		}
	}
	m.Reactions = append(m.Reactions, Reaction{UserID: user, Emoji: emoji})
}

// MarkReadBy adds user to ReadBy and reports whether it was not there yet.
func (m *Message) MarkReadBy(user UserID) bool {
	if slices.Contains(m.ReadBy, user) {
		return false
	}
	m.ReadBy = append(m.ReadBy, user)
	return true
}

// Clone returns a copy that shares no slice with m.
func (m Message) Clone() Message {
	m.Reactions = slices.Clone(m.Reactions)
	m.ReadBy = slices.Clone(m.ReadBy)
	return m
}

package event

import (
	"chat-fanout/domain"
	"time"
)

// DomainEvent is a notification pushed to a connected session.
type DomainEvent interface {
	Name() string
}

const (
	AckName               = "ack"
	MessageDeliveredName  = "messageDelivered"
	PresenceChangedName   = "presenceChanged"
	RoomMembersName       = "roomMembers"
	RoomJoinedName        = "roomJoined"
	RoomLeftName          = "roomLeft"
	TypingChangedName     = "typingChanged"
	ReactionsUpdatedName  = "reactionsUpdated"
	MessageReadName       = "messageRead"
	SessionSupersededName = "sessionSuperseded"
)

// Reply answers a request identified by Ref. It only travels to the requester.
type Reply struct {
	Ref  string
	Body any
}

func (Reply) Name() string { return AckName }

type MessageDelivered struct {
	Message domain.Message `json:"message"`
}

func (MessageDelivered) Name() string { return MessageDeliveredName }

// PresenceChanged carries the whole online list after a single user came or went.
type PresenceChanged struct {
	User   domain.User   `json:"user"`
	Status domain.Status `json:"status"`
	Online []domain.User `json:"onlineUsers"`
}

func (PresenceChanged) Name() string { return PresenceChangedName }

// RoomMembers is the member snapshot sent to the joining session only.
type RoomMembers struct {
	Room    domain.RoomName `json:"room"`
	Members []domain.User   `json:"members"`
}

func (RoomMembers) Name() string { return RoomMembersName }

type RoomJoined struct {
	Room    domain.RoomName `json:"room"`
	User    domain.User     `json:"user"`
	Members []domain.User   `json:"members"`
}

func (RoomJoined) Name() string { return RoomJoinedName }

type RoomLeft struct {
	Room    domain.RoomName `json:"room"`
	User    domain.User     `json:"user"`
	Members []domain.User   `json:"members"`
}

func (RoomLeft) Name() string { return RoomLeftName }

// TypingChanged is the current typing list of Target.
// For a private target Target.Recipient is the user being typed to.
type TypingChanged struct {
	Target domain.Destination `json:"target"`
	Users  []domain.User      `json:"users"`
}

func (TypingChanged) Name() string { return TypingChangedName }

type ReactionsUpdated struct {
	MessageID domain.MessageID   `json:"messageId"`
	Reactions []domain.Reaction  `json:"reactions"`
	Target    domain.Destination `json:"target"`
}

func (ReactionsUpdated) Name() string { return ReactionsUpdatedName }

type MessageRead struct {
	MessageID domain.MessageID `json:"messageId"`
	By        domain.UserID    `json:"by"`
	At        time.Time        `json:"at"`
}

func (MessageRead) Name() string { return MessageReadName }

// SessionSuperseded is the last event of a session replaced by a newer authentication.
type SessionSuperseded struct {
	SessionID domain.SessionID `json:"sessionId"`
}

func (SessionSuperseded) Name() string { return SessionSupersededName }

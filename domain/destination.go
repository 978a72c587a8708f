package domain

import (
	"chat-fanout/errors"
	"fmt"
)

// Destination addresses either a room or a single recipient, never both.
// It is also the key of a typing set.
type Destination struct {
	Room      RoomName `json:"room,omitempty" cbor:"1,keyasint,omitempty"`
	Recipient UserID   `json:"recipientId,omitempty" cbor:"2,keyasint,omitempty"`
}

func ToRoom(room RoomName) Destination {
	return Destination{Room: room}
}

func ToUser(recipient UserID) Destination {
	return Destination{Recipient: recipient}
}

func (d Destination) Validate() error {
	if (d.Room == "") == (d.Recipient == "") {
		return errors.ErrInvalidDestination
	}
	return nil
}

func (d Destination) IsPrivate() bool {
	return d.Recipient != ""
}

func (d Destination) String() string {
	if d.IsPrivate() {
		return fmt.Sprintf("user:%s", d.Recipient)
	}
	return fmt.Sprintf("room:%s", d.Room)
}

// OrderedPair returns both participants of a private conversation in a stable order.
func OrderedPair(a, b UserID) (UserID, UserID) {
	if b < a {
		return b, a
	}
	return a, b
}

// ConversationKey identifies the ordering scope of a message sent by sender to d.
// Messages sharing a key are persisted and delivered one at a time.
func ConversationKey(sender UserID, d Destination) string {
	if !d.IsPrivate() {
		return "room:" + string(d.Room)
	}
	a, b := OrderedPair(sender, d.Recipient)
	return fmt.Sprintf("dm:%s:%s", a, b)
}

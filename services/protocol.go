package services

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Frame is the unit exchanged on every transport, in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Requests
const (
	AuthenticateEvent = "authenticate"
	JoinRoomEvent     = "joinRoom"
	LeaveRoomEvent    = "leaveRoom"
	SendMessageEvent  = "sendMessage"
	SetTypingEvent    = "setTyping"
	AddReactionEvent  = "addReaction"
	MarkReadEvent     = "markRead"
)

type AuthenticatePayload struct {
	Username string `json:"username" validate:"required,max=32"`
}

type RoomPayload struct {
	Room domain.RoomName `json:"room" validate:"required,max=64"`
}

type SendMessagePayload struct {
	Body        string          `json:"body" validate:"required"`
	Kind        domain.Kind     `json:"kind,omitempty"`
	Room        domain.RoomName `json:"room,omitempty"`
	RecipientID domain.UserID   `json:"recipientId,omitempty"`
}

func (p SendMessagePayload) Destination() domain.Destination {
	return domain.Destination{Room: p.Room, Recipient: p.RecipientID}
}

type SetTypingPayload struct {
	Room        domain.RoomName `json:"room,omitempty"`
	RecipientID domain.UserID   `json:"recipientId,omitempty"`
	IsTyping    bool            `json:"isTyping"`
}

func (p SetTypingPayload) Destination() domain.Destination {
	return domain.Destination{Room: p.Room, Recipient: p.RecipientID}
}

type AddReactionPayload struct {
	MessageID domain.MessageID `json:"messageId" validate:"required"`
	Emoji     string           `json:"emoji" validate:"required,max=32"`
}

type MarkReadPayload struct {
	MessageID domain.MessageID `json:"messageId" validate:"required"`
}

// Acks
type AuthenticateAck struct {
	OK          bool          `json:"ok"`
	UserID      domain.UserID `json:"userId"`
	Username    string        `json:"username"`
	OnlineUsers []domain.User `json:"onlineUsers"`
	Token       string        `json:"token,omitempty"`
}

type OKAck struct {
	OK bool `json:"ok"`
}

type SendMessageAck struct {
	OK        bool             `json:"ok"`
	ID        domain.MessageID `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
}

type ErrorAck struct {
	OK    bool             `json:"ok"`
	Code  errors.ErrorCode `json:"code"`
	Error string           `json:"error"`
}

func NewErrorAck(err error) ErrorAck {
	return ErrorAck{Code: errors.Code(err), Error: err.Error()}
}

// DecodePayload unmarshals and validates the payload of f into T.
func DecodePayload[T any](f Frame) (T, error) {
	var payload T
	if len(f.Payload) == 0 {
		return payload, fmt.Errorf("%w: payload is missing", errors.ErrInvalidPayload)
	}
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, errors.Validation(err)
	}
	return payload, nil
}

// EncodeEvent turns a notification or a reply into its frame.
func EncodeEvent(e event.DomainEvent) (Frame, error) {
	var ref string
	var body any = e
	if reply, ok := e.(event.Reply); ok {
		ref, body = reply.Ref, reply.Body
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding %s: %w", e.Name(), err)
	}
	return Frame{Event: e.Name(), Ref: ref, Payload: payload}, nil
}

// NewFrame builds a frame with payload encoded as JSON.
func NewFrame(name, ref string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: name, Ref: ref, Payload: raw}, nil
}

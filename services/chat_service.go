package services

import (
	"chat-fanout/auth"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/runtime"
	"chat-fanout/sink"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
)

// FrameStream is one client connection as seen by the chat service.
// Send is never called concurrently.
type FrameStream interface {
	Send(ctx context.Context, f Frame) error
	Recv(ctx context.Context) (Frame, error)
}

type IChatService interface {
	Serve(ctx context.Context, stream FrameStream) error
}

// ChatService speaks the frame protocol over any transport and drives the
// orchestrator: one reader dispatching requests per connection, one pump per
// session forwarding its notifications.
type ChatService struct {
	log          *slog.Logger
	orchestrator *runtime.Orchestrator
	tokens       *auth.TokenManager
	bufferSize   int
}

func NewChatService(log *slog.Logger, orchestrator *runtime.Orchestrator, tokens *auth.TokenManager, bufferSize int) *ChatService {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &ChatService{log: log, orchestrator: orchestrator, tokens: tokens, bufferSize: bufferSize}
}

// Serve blocks until the client goes away, ctx is done or the session is
// superseded by another connection. The session is disconnected on return.
func (s *ChatService) Serve(ctx context.Context, stream FrameStream) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := &connection{service: s, stream: stream, cancel: cancel}

	readErr := make(chan error, 1)
	go func() { readErr <- c.read(ctx) }()

	var err error
	select {
	case err = <-readErr:
	case <-ctx.Done():
	}
	cancel()
	c.close()

	if err == nil || stderrors.Is(err, io.EOF) || stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type connection struct {
	service *ChatService
	stream  FrameStream
	cancel  context.CancelFunc

	// mu serializes request dispatch with close.
	mu      sync.Mutex
	session *runtime.Session
	sink    *sink.SessionSink
	closed  bool

	sendMu sync.Mutex
	pumps  sync.WaitGroup
}

func (c *connection) read(ctx context.Context) error {
	for {
		f, err := c.stream.Recv(ctx)
		if err != nil {
			return err
		}
		c.handle(ctx, f)
	}
}

func (c *connection) handle(ctx context.Context, f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	body, err := c.dispatch(ctx, f)
	if err != nil {
		if errors.Code(err) == errors.CodeInternal || errors.Code(err) == errors.CodeStoreFailure {
			c.service.log.Error("request failed", "event", f.Event, "ref", f.Ref, "error", err)
		} else {
			c.service.log.Debug("request rejected", "event", f.Event, "ref", f.Ref, "error", err)
		}
		body = NewErrorAck(err)
	}
	if f.Ref == "" || body == nil {
		return
	}
	c.reply(ctx, f.Ref, body)
}

// dispatch returns the ack body of a successful request, nil when the request
// has no ack.
func (c *connection) dispatch(ctx context.Context, f Frame) (any, error) {
	if f.Event == AuthenticateEvent {
		return c.authenticate(ctx, f)
	}
	if c.session == nil {
		switch f.Event {
		case JoinRoomEvent, LeaveRoomEvent, SendMessageEvent, SetTypingEvent, AddReactionEvent, MarkReadEvent:
			return nil, errors.ErrNotAuthenticated
		}
	}
	o := c.service.orchestrator

	switch f.Event {
	case JoinRoomEvent:
		p, err := DecodePayload[RoomPayload](f)
		if err != nil {
			return nil, err
		}
		if err := o.JoinRoom(ctx, c.session.ID, p.Room); err != nil {
			return nil, err
		}
		return OKAck{OK: true}, nil
	case LeaveRoomEvent:
		p, err := DecodePayload[RoomPayload](f)
		if err != nil {
			return nil, err
		}
		return nil, o.LeaveRoom(ctx, c.session.ID, p.Room)
	case SendMessageEvent:
		p, err := DecodePayload[SendMessagePayload](f)
		if err != nil {
			return nil, err
		}
		msg, err := o.SendMessage(ctx, c.session.ID, runtime.Outgoing{
			Body:        p.Body,
			Kind:        p.Kind,
			Destination: p.Destination(),
		})
		if err != nil {
			return nil, err
		}
		return SendMessageAck{OK: true, ID: msg.ID, CreatedAt: msg.CreatedAt}, nil
	case SetTypingEvent:
		p, err := DecodePayload[SetTypingPayload](f)
		if err != nil {
			return nil, err
		}
		return nil, o.SetTyping(ctx, c.session.ID, p.Destination(), p.IsTyping)
	case AddReactionEvent:
		p, err := DecodePayload[AddReactionPayload](f)
		if err != nil {
			return nil, err
		}
		_, err = o.AddReaction(ctx, c.session.ID, p.MessageID, p.Emoji)
		return nil, err
	case MarkReadEvent:
		p, err := DecodePayload[MarkReadPayload](f)
		if err != nil {
			return nil, err
		}
		return nil, o.MarkRead(ctx, c.session.ID, p.MessageID)
	default:
		return nil, errors.ErrUnknownEvent
	}
}

// authenticate binds the connection to an identity. Authenticating again on
// the same connection disconnects the previous session first.
func (c *connection) authenticate(ctx context.Context, f Frame) (any, error) {
	p, err := DecodePayload[AuthenticatePayload](f)
	if err != nil {
		return nil, err
	}
	if c.session != nil {
		c.service.orchestrator.Disconnect(ctx, c.session.ID)
		c.session, c.sink = nil, nil
	}

	s := sink.NewSessionSink(c.service.bufferSize)
	c.pumps.Add(1)
	go c.pump(ctx, s)

	session, online, err := c.service.orchestrator.Authenticate(ctx, p.Username, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	c.session, c.sink = session, s

	ack := AuthenticateAck{
		OK:          true,
		UserID:      session.User.ID,
		Username:    session.User.Username,
		OnlineUsers: online,
	}
	if c.service.tokens != nil {
		token, err := c.service.tokens.Generate(session.User)
		if err != nil {
			c.service.log.Error("token not issued", "user_id", session.User.ID, "error", err)
		}
		ack.Token = token
	}
	return ack, nil
}

// reply queues the ack behind the notifications already produced for the
// session, or sends it directly when there is no live session.
func (c *connection) reply(ctx context.Context, ref string, body any) {
	if c.sink != nil {
		if err := c.sink.Reply(ctx, ref, body); err == nil {
			return
		}
	}
	frame, err := EncodeEvent(event.Reply{Ref: ref, Body: body})
	if err != nil {
		c.service.log.Error("ack not encoded", "ref", ref, "error", err)
		return
	}
	if err := c.send(ctx, frame); err != nil {
		c.service.log.Debug("ack not sent", "ref", ref, "error", err)
	}
}

// pump forwards the notifications of s until s is closed, then flushes what is
// left. A superseded session ends the connection.
func (c *connection) pump(ctx context.Context, s *sink.SessionSink) {
	defer c.pumps.Done()
	for {
		select {
		case e := <-s.Events():
			if !c.forward(ctx, e) {
				return
			}
		case <-s.Done():
			for {
				select {
				case e := <-s.Events():
					if !c.forward(ctx, e) {
						return
					}
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *connection) forward(ctx context.Context, e event.DomainEvent) bool {
	frame, err := EncodeEvent(e)
	if err != nil {
		c.service.log.Error("notification not encoded", "event", e.Name(), "error", err)
		return true
	}
	if err := c.send(ctx, frame); err != nil {
		c.service.log.Debug("connection lost while forwarding", "event", e.Name(), "error", err)
		c.cancel()
		return false
	}
	if _, ok := e.(event.SessionSuperseded); ok {
		c.cancel()
		return false
	}
	return true
}

func (c *connection) send(ctx context.Context, f Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.stream.Send(ctx, f)
}

func (c *connection) close() {
	c.mu.Lock()
	c.closed = true
	session := c.session
	c.session, c.sink = nil, nil
	c.mu.Unlock()

	if session != nil {
		c.service.orchestrator.Disconnect(context.Background(), session.ID)
	}
	c.pumps.Wait()
}

package sink

import (
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"context"
	"sync"
)

// SessionSink is the outbound queue of one connection.
// Consume is called by the fan-out and never blocks: a full buffer means the
// client is too slow and the notification is dropped for it only.
// The connection writer drains Events until Done is closed.
type SessionSink struct {
	events chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSinkFull
	}
}

// Reply queues an answer for the requester, waiting for room in the buffer.
// Acks are never dropped while the session is alive.
func (s *SessionSink) Reply(ctx context.Context, ref string, body any) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.events <- event.Reply{Ref: ref, Body: body}:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SessionSink) Events() <-chan event.DomainEvent {
	return s.events
}

func (s *SessionSink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *SessionSink) Done() <-chan struct{} {
	return s.done
}

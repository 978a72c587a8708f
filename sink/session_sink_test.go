package sink_test

import (
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/sink"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionSink_ConsumeDropsWhenFull(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given a sink with room for one event
	s := sink.NewSessionSink(1)
	req.NoError(s.Consume(ctx, event.RoomMembers{Room: "global"}))

	// When another event arrives before the writer drained the first
	err := s.Consume(ctx, event.RoomMembers{Room: "other"})

	// Then it is dropped immediately
	req.ErrorIs(err, errors.ErrSinkFull)
	req.Len(s.Events(), 1)
}

func TestSessionSink_ClosedSinkRejectsEvents(t *testing.T) {
	req := require.New(t)
	s := sink.NewSessionSink(4)

	s.Close()
	s.Close()

	req.ErrorIs(s.Consume(context.Background(), event.RoomMembers{}), errors.ErrSinkClosed)
	req.ErrorIs(s.Reply(context.Background(), "1", nil), errors.ErrSinkClosed)
	select {
	case <-s.Done():
	default:
		req.Fail("done should be closed")
	}
}

func TestSessionSink_ReplyWaitsForRoom(t *testing.T) {
	req := require.New(t)
	s := sink.NewSessionSink(1)
	req.NoError(s.Consume(context.Background(), event.RoomMembers{}))

	// Given a writer draining the buffer a bit later
	go func() {
		time.Sleep(20 * time.Millisecond)
		<-s.Events()
	}()

	// When replying on the full buffer
	err := s.Reply(context.Background(), "ref-1", map[string]bool{"ok": true})

	// Then the reply is queued once room is available
	req.NoError(err)
	reply, ok := (<-s.Events()).(event.Reply)
	req.True(ok)
	req.Equal("ref-1", reply.Ref)
}

func TestSessionSink_ReplyHonoursContext(t *testing.T) {
	req := require.New(t)
	s := sink.NewSessionSink(1)
	req.NoError(s.Consume(context.Background(), event.RoomMembers{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	req.ErrorIs(s.Reply(ctx, "ref-1", nil), context.DeadlineExceeded)
}

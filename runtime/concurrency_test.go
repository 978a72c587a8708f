package runtime_test

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"chat-fanout/runtime"
	"chat-fanout/sink"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireRaceOutcome accepts the errors of a request racing a newer session of
// the same identity.
func requireRaceOutcome(req *require.Assertions, err error) {
	if err == nil {
		return
	}
	req.True(errors.Is(err, errors.ErrNotAuthenticated) || errors.Is(err, errors.ErrRoomNotJoined), err.Error())
}

func TestOrchestrator_ReconnectStormLeavesNoGhostSession(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connectQuiet("bob")
	const lobby = domain.RoomName("lobby")

	// Given 200 connections of alice racing each other
	var wg sync.WaitGroup
	sessions := make(chan domain.SessionID, 200)
	errs := make(chan error, 200*3)
	for i := range 200 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, _, err := h.o.Authenticate(h.ctx, "alice", sink.NewSessionSink(64))
			if err != nil {
				errs <- err
				return
			}
			sessions <- session.ID
			errs <- h.o.JoinRoom(h.ctx, session.ID, lobby)
			errs <- h.o.SetTyping(h.ctx, session.ID, domain.ToRoom(lobby), true)
			_, err = h.o.SendMessage(h.ctx, session.ID, runtime.Outgoing{
				Body:        fmt.Sprintf("attempt %d", i),
				Destination: domain.ToRoom(lobby),
			})
			if err != nil {
				errs <- err
			}
			h.o.Disconnect(h.ctx, session.ID)
		}(i)
	}
	wg.Wait()
	close(errs)
	close(sessions)
	for err := range errs {
		requireRaceOutcome(req, err)
	}

	// Then alice is gone from the online list and from every room
	req.Equal([]string{"bob"}, usernames(h.o.Online()))
	req.Equal(map[domain.RoomName]int{domain.DefaultRoom: 1}, h.o.Rooms())
	req.Equal([]string{"bob"}, usernames(h.o.MembersOf(domain.DefaultRoom)))
	req.Empty(h.o.MembersOf(lobby))

	// When alice comes back while every stale session is disconnected again
	alice := h.connect("alice")
	for id := range sessions {
		wg.Add(1)
		go func(id domain.SessionID) {
			defer wg.Done()
			h.o.Disconnect(h.ctx, id)
		}(id)
	}
	wg.Wait()

	// Then the newest session survives untouched
	req.Equal([]string{"alice", "bob"}, usernames(h.o.Online()))
	req.ElementsMatch([]string{"alice", "bob"}, usernames(h.o.MembersOf(domain.DefaultRoom)))
	_, err := h.o.SendMessage(h.ctx, alice.session.ID, runtime.Outgoing{Body: "back", Destination: domain.ToRoom(domain.DefaultRoom)})
	req.NoError(err)
}

func TestOrchestrator_ConcurrentReactionsAreAllKept(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	author := h.connectQuiet("author")
	msg, err := h.o.SendMessage(h.ctx, author.session.ID, runtime.Outgoing{Body: "poll", Destination: domain.ToRoom(domain.DefaultRoom)})
	req.NoError(err)

	var voters []*client
	for i := range 16 {
		voters = append(voters, h.connect(fmt.Sprintf("voter-%d", i)))
	}

	// When every voter reacts to the same message at once
	var wg sync.WaitGroup
	errs := make(chan error, len(voters))
	for _, v := range voters {
		wg.Add(1)
		go func(v *client) {
			defer wg.Done()
			_, err := h.o.AddReaction(h.ctx, v.session.ID, msg.ID, "✅")
			errs <- err
		}(v)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then no update was lost
	stored, err := h.store.FindByID(msg.ID)
	req.NoError(err)
	req.Len(stored.Reactions, len(voters))
}

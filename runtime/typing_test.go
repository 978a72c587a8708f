package runtime

import (
	"chat-fanout/domain"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	alice = domain.User{ID: "u-alice", Username: "alice"}
	bob   = domain.User{ID: "u-bob", Username: "bob"}
)

func TestTypingCoordinator_SetAndStop(t *testing.T) {
	req := require.New(t)
	c := NewTypingCoordinator(time.Hour)
	room := domain.ToRoom("general")

	req.True(c.Set(alice, room, true))
	// Renewal is not a change
	req.False(c.Set(alice, room, true))
	req.True(c.Set(bob, room, true))
	req.Equal([]domain.User{alice, bob}, c.Typing(room))

	req.True(c.Set(alice, room, false))
	// Stopping twice is a no-op
	req.False(c.Set(alice, room, false))
	req.Equal([]domain.User{bob}, c.Typing(room))
}

func TestTypingCoordinator_SelfExpires(t *testing.T) {
	req := require.New(t)
	c := NewTypingCoordinator(30 * time.Millisecond)
	room := domain.ToRoom("general")

	var mu sync.Mutex
	var expired []domain.UserID
	c.OnExpire(func(user domain.UserID, target domain.Destination, seq uint64) {
		if c.Expire(user, target, seq) {
			mu.Lock()
			expired = append(expired, user)
			mu.Unlock()
		}
	})

	c.Set(alice, room, true)

	req.Eventually(func() bool { return len(c.Typing(room)) == 0 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	req.Equal([]domain.UserID{alice.ID}, expired)
}

func TestTypingCoordinator_StaleTimerIsIgnored(t *testing.T) {
	req := require.New(t)
	c := NewTypingCoordinator(time.Hour)
	room := domain.ToRoom("general")
	c.Set(alice, room, true)
	staleSeq := c.entries[room][alice.ID].seq

	// Given the entry was renewed
	c.Set(alice, room, true)

	// When the timer armed before the renewal fires
	req.False(c.Expire(alice.ID, room, staleSeq))

	// Then the entry is kept
	req.Equal([]domain.User{alice}, c.Typing(room))
}

func TestTypingCoordinator_Scrub(t *testing.T) {
	req := require.New(t)
	c := NewTypingCoordinator(time.Hour)

	c.Set(alice, domain.ToRoom("a"), true)
	c.Set(alice, domain.ToRoom("b"), true)
	c.Set(alice, domain.ToUser(bob.ID), true)
	c.Set(bob, domain.ToUser(alice.ID), true)

	changed := c.Scrub(alice.ID)

	req.Equal([]domain.Destination{domain.ToRoom("a"), domain.ToRoom("b"), domain.ToUser(bob.ID)}, changed)
	req.Empty(c.Typing(domain.ToRoom("a")))
	req.Empty(c.Typing(domain.ToUser(bob.ID)))
	// Sets addressed to alice are dropped too
	req.Empty(c.Typing(domain.ToUser(alice.ID)))
	req.Empty(c.entries)
}

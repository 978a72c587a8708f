package storage

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openInMemory(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// stores runs the same contract against the durable and the memory store mode.
func stores(t *testing.T) map[string]IMessageStore {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return map[string]IMessageStore{
		"disk":   NewMessageStore(openBadger(t), log),
		"memory": NewMessageStore(openInMemory(t), log),
	}
}

func newMessage(gen *domain.IDGenerator, sender domain.UserID, dest domain.Destination, body string) domain.Message {
	id, createdAt := gen.Next()
	return domain.Message{
		ID:          id,
		SenderID:    sender,
		SenderName:  string(sender),
		Destination: dest,
		Body:        body,
		Kind:        domain.KindText,
		CreatedAt:   createdAt,
	}
}

func TestMessageStore_AppendAndFind(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gen := domain.NewIDGenerator()

			// Given a persisted room message
			msg := newMessage(gen, "alice", domain.ToRoom("global"), "hello")
			req.NoError(store.Append(msg))

			// When it is read back
			found, err := store.FindByID(msg.ID)

			// Then it is identical
			req.NoError(err)
			req.Equal(msg.ID, found.ID)
			req.Equal(msg.Body, found.Body)
			req.Equal(msg.Destination, found.Destination)
			req.True(msg.CreatedAt.Equal(found.CreatedAt))
		})
	}
}

func TestMessageStore_FindUnknownID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			_, err := store.FindByID("01HZZZZZZZZZZZZZZZZZZZZZZZ")

			req.ErrorIs(err, errors.ErrMessageNotFound)
			req.Equal(errors.CodeNotFound, errors.Code(err))
		})
	}
}

func TestMessageStore_Update(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gen := domain.NewIDGenerator()
			msg := newMessage(gen, "alice", domain.ToRoom("global"), "hello")
			req.NoError(store.Append(msg))

			// When bob reacts twice
			for _, emoji := range []string{"👍", "🔥"} {
				_, err := store.Update(msg.ID, func(m *domain.Message) error {
					m.React("bob", emoji)
					return nil
				})
				req.NoError(err)
			}

			// Then a single reaction with the latest emoji is stored
			found, err := store.FindByID(msg.ID)
			req.NoError(err)
			req.Equal([]domain.Reaction{{UserID: "bob", Emoji: "🔥"}}, found.Reactions)
		})
	}
}

func TestMessageStore_UpdateAbortedByMutator(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gen := domain.NewIDGenerator()
			msg := newMessage(gen, "alice", domain.ToUser("bob"), "psst")
			req.NoError(store.Append(msg))

			_, err := store.Update(msg.ID, func(m *domain.Message) error {
				m.React("carol", "👀")
				return errors.ErrMessageNotFound
			})

			req.ErrorIs(err, errors.ErrMessageNotFound)
			found, err := store.FindByID(msg.ID)
			req.NoError(err)
			req.Empty(found.Reactions)
		})
	}
}

func TestMessageStore_QueryRoomBefore(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gen := domain.NewIDGenerator()

			// Given 60 messages in "global" and noise in other scopes
			var ids []domain.MessageID
			for i := range 60 {
				msg := newMessage(gen, "alice", domain.ToRoom("global"), fmt.Sprintf("message %d", i))
				req.NoError(store.Append(msg))
				ids = append(ids, msg.ID)
			}
			req.NoError(store.Append(newMessage(gen, "alice", domain.ToRoom("global-2"), "other room")))
			req.NoError(store.Append(newMessage(gen, "alice", domain.ToUser("bob"), "private")))

			// When querying without boundary and an oversized limit
			page, err := store.QueryRoomBefore("global", "", 500)

			// Then the newest 50 are returned, newest first
			req.NoError(err)
			req.Len(page, domain.MaxHistoryLimit)
			req.Equal(ids[59], page[0].ID)
			req.Equal(ids[10], page[49].ID)

			// When querying before the oldest returned id with the default limit
			page, err = store.QueryRoomBefore("global", page[49].ID, 0)

			// Then the remaining 10 are returned and the boundary is excluded
			req.NoError(err)
			req.Len(page, 10)
			req.Equal(ids[9], page[0].ID)
			req.Equal(ids[0], page[9].ID)
		})
	}
}

func TestMessageStore_QueryRoomBeforeTimestamp(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			now := t0
			gen := domain.NewIDGeneratorWithClock(func() time.Time { return now })

			old := newMessage(gen, "alice", domain.ToRoom("global"), "old")
			now = t0.Add(time.Minute)
			recent := newMessage(gen, "alice", domain.ToRoom("global"), "recent")
			req.NoError(store.Append(old))
			req.NoError(store.Append(recent))

			page, err := store.QueryRoomBefore("global", domain.HistoryQuery{Before: t0.Add(time.Second)}.Boundary(), 10)

			req.NoError(err)
			req.Len(page, 1)
			req.Equal(old.ID, page[0].ID)
		})
	}
}

func TestMessageStore_QueryRoomBefore_SubMillisecondTimestamp(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			now := t0.Add(100 * time.Microsecond)
			gen := domain.NewIDGeneratorWithClock(func() time.Time { return now })

			// Given a message sent early in a millisecond
			msg := newMessage(gen, "alice", domain.ToRoom("global"), "early")
			req.NoError(store.Append(msg))

			// When paging from a later instant of the same millisecond
			page, err := store.QueryRoomBefore("global", domain.HistoryQuery{Before: t0.Add(900 * time.Microsecond)}.Boundary(), 10)

			// Then the message is part of the page
			req.NoError(err)
			req.Len(page, 1)
			req.Equal(msg.ID, page[0].ID)
		})
	}
}

func TestMessageStore_QueryConversationBefore(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			gen := domain.NewIDGenerator()

			first := newMessage(gen, "alice", domain.ToUser("bob"), "hi bob")
			second := newMessage(gen, "bob", domain.ToUser("alice"), "hi alice")
			req.NoError(store.Append(first))
			req.NoError(store.Append(second))
			req.NoError(store.Append(newMessage(gen, "alice", domain.ToUser("carol"), "hi carol")))

			// When each side queries the conversation
			fromAlice, err := store.QueryConversationBefore("alice", "bob", "", 10)
			req.NoError(err)
			fromBob, err := store.QueryConversationBefore("bob", "alice", "", 10)
			req.NoError(err)

			// Then both get the same two messages newest first
			req.Len(fromAlice, 2)
			req.Equal(second.ID, fromAlice[0].ID)
			req.Equal(first.ID, fromAlice[1].ID)
			req.Equal(fromAlice, fromBob)
		})
	}
}

func TestMessageStore_EmptyRoom(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			page, err := store.QueryRoomBefore("nobody-here", "", 10)

			req.NoError(err)
			req.Empty(page)
		})
	}
}

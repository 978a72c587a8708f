package storage

import (
	"chat-fanout/domain"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestInMemoryOptions_NothingOnDisk(t *testing.T) {
	req := require.New(t)

	options := InMemoryOptions()

	req.True(options.InMemory)
	req.Empty(options.Dir)
	req.Empty(options.ValueDir)
}

func TestOpenInMemory_ServesStoreAndUsers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db := openInMemory(t)
	users := NewUserRepository(db, log)
	store := NewMessageStore(db, log)

	// Given a user and one of their messages in the in-memory database
	alice, err := users.FindOrCreate("alice")
	req.NoError(err)
	msg := newMessage(domain.NewIDGenerator(), alice.ID, domain.ToRoom("global"), "hello")
	req.NoError(store.Append(msg))

	// Then both repositories read them back from the shared keyspace
	again, err := users.FindOrCreate("alice")
	req.NoError(err)
	req.Equal(alice.ID, again.ID)
	found, err := store.FindByID(msg.ID)
	req.NoError(err)
	req.Equal("hello", found.Body)
}

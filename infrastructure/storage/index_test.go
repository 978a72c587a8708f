package storage

import (
	"chat-fanout/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestMessageIndex_SearchIsScopedToRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index, err := NewMessageIndex("", logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	defer index.Close()
	gen := domain.NewIDGenerator()

	// Given matching messages in two rooms and in a private conversation
	inGlobal := newMessage(gen, "alice", domain.ToRoom("global"), "the deployment is green")
	inOps := newMessage(gen, "alice", domain.ToRoom("ops"), "deployment failed")
	private := newMessage(gen, "alice", domain.ToUser("bob"), "secret deployment")
	req.NoError(index.Index(inGlobal))
	req.NoError(index.Index(inOps))
	req.NoError(index.Index(private))

	// Then only the message of the searched room is found
	req.Eventually(func() bool {
		ids, err := index.Search(ctx, "global", "deployment", 10)
		return err == nil && len(ids) == 1 && ids[0] == inGlobal.ID
	}, time.Second, 10*time.Millisecond)
}

func TestMessageIndex_BlankQuery(t *testing.T) {
	req := require.New(t)
	index, err := NewMessageIndex(t.TempDir(), logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	defer index.Close()

	ids, err := index.Search(context.Background(), "global", "   ", 10)

	req.NoError(err)
	req.Empty(ids)
}

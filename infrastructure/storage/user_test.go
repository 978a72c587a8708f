package storage

import (
	"chat-fanout/errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func userRepositories(t *testing.T) map[string]IUserRepository {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return map[string]IUserRepository{
		"disk":   NewUserRepository(openBadger(t), log),
		"memory": NewUserRepository(openInMemory(t), log),
	}
}

func TestUserRepository_FindOrCreateIsStable(t *testing.T) {
	for name, repo := range userRepositories(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			// Given alice authenticated once
			first, err := repo.FindOrCreate("alice")
			req.NoError(err)
			req.NotEmpty(first.ID)

			// When she authenticates again
			second, err := repo.FindOrCreate("alice")

			// Then the identity is the same
			req.NoError(err)
			req.Equal(first.ID, second.ID)

			found, err := repo.FindByID(first.ID)
			req.NoError(err)
			req.Equal("alice", found.Username)
		})
	}
}

func TestUserRepository_ConcurrentFirstAuthentication(t *testing.T) {
	for name, repo := range userRepositories(t) {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			var wg sync.WaitGroup
			ids := make(chan string, 8)

			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					user, err := repo.FindOrCreate("bob")
					if err == nil {
						ids <- string(user.ID)
					}
				}()
			}
			wg.Wait()
			close(ids)

			distinct := map[string]struct{}{}
			for id := range ids {
				distinct[id] = struct{}{}
			}
			req.Len(distinct, 1)
		})
	}
}

func TestUserRepository_FindUnknown(t *testing.T) {
	for name, repo := range userRepositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.FindByID("missing")
			require.ErrorIs(t, err, errors.ErrUserNotFound)
		})
	}
}

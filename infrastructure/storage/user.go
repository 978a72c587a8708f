//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const maxConflictRetries = 3

type IUserRepository interface {
	FindOrCreate(username string) (domain.User, error)
	FindByID(id domain.UserID) (domain.User, error)
}

// UserRepository persists identities in BadgerDB.
//
//	user:name:{username} -> user id
//	user:id:{id}         -> CBOR record
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

func userNameKey(username string) []byte {
	return []byte("user:name:" + username)
}

func userIDKey(id domain.UserID) []byte {
	return []byte("user:id:" + string(id))
}

// FindOrCreate returns the identity owning username, creating it on first use.
// Two concurrent first authentications of the same username conflict in Badger,
// the loser retries and finds the winner's identity.
func (u *UserRepository) FindOrCreate(username string) (domain.User, error) {
	var user domain.User
	var err error
	for range maxConflictRetries {
		err = u.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(userNameKey(username))
			switch {
			case err == nil:
				var id []byte
				if id, err = item.ValueCopy(nil); err != nil {
					return err
				}
				user, err = getUser(txn, domain.UserID(id))
				return err
			case !stderrors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			user = domain.User{
				ID:        domain.NewUserID(),
				Username:  username,
				CreatedAt: time.Now().UTC(),
			}
			data, err := marshal(user)
			if err != nil {
				return err
			}
			if err = txn.Set(userIDKey(user.ID), data); err != nil {
				return err
			}
			u.log.Debug("user created", "user_id", user.ID, "username", username)
			return txn.Set(userNameKey(username), []byte(user.ID))
		})
		if !stderrors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return domain.User{}, errors.StoreFailure(err)
	}
	return user, nil
}

func (u *UserRepository) FindByID(id domain.UserID) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: %s", errors.ErrUserNotFound, id)
	}
	if err != nil {
		return domain.User{}, errors.StoreFailure(err)
	}
	return user, nil
}

func getUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get(userIDKey(id))
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &user)
	})
	user.CreatedAt = user.CreatedAt.UTC()
	return user, err
}

//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../../mocks/mock_message_store.go -package=mocks
package storage

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// IMessageStore owns messages once they are persisted.
// Query methods return newest first, strictly older than the before id
// (empty means from the newest), at most domain.MaxHistoryLimit messages.
type IMessageStore interface {
	Append(msg domain.Message) error
	FindByID(id domain.MessageID) (domain.Message, error)
	Update(id domain.MessageID, mutate func(msg *domain.Message) error) (domain.Message, error)
	QueryRoomBefore(room domain.RoomName, before domain.MessageID, limit int) ([]domain.Message, error)
	QueryConversationBefore(a, b domain.UserID, before domain.MessageID, limit int) ([]domain.Message, error)
}

// MessageStore persists messages in BadgerDB.
//
// Keys:
//
//	msg:id:{id}              -> CBOR record
//	msg:room:{room}:{id}     -> empty, room index
//	msg:dm:{a}:{b}:{id}      -> empty, conversation index (a < b)
//
// Message ids are ULIDs, so the lexicographical order of the index keys is the
// creation order and "before" pagination is a reverse seek.
type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

func messageKey(id domain.MessageID) []byte {
	return []byte("msg:id:" + string(id))
}

func roomPrefix(room domain.RoomName) string {
	return fmt.Sprintf("msg:room:%s:", room)
}

func conversationPrefix(a, b domain.UserID) string {
	a, b = domain.OrderedPair(a, b)
	return fmt.Sprintf("msg:dm:%s:%s:", a, b)
}

func indexKey(msg domain.Message) []byte {
	if msg.Destination.IsPrivate() {
		return []byte(conversationPrefix(msg.SenderID, msg.Destination.Recipient) + string(msg.ID))
	}
	return []byte(roomPrefix(msg.Destination.Room) + string(msg.ID))
}

func (s *MessageStore) Append(msg domain.Message) error {
	data, err := marshal(msg)
	if err != nil {
		return errors.StoreFailure(err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(msg), nil)
	})
	if err != nil {
		return errors.StoreFailure(err)
	}
	return nil
}

func (s *MessageStore) FindByID(id domain.MessageID) (domain.Message, error) {
	var msg domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		found, err := getMessage(txn, id)
		msg = found
		return err
	})
	return msg, err
}

// Update applies mutate to the stored message inside a single transaction.
// An error returned by mutate aborts the update and is returned as is.
func (s *MessageStore) Update(id domain.MessageID, mutate func(msg *domain.Message) error) (domain.Message, error) {
	var updated domain.Message
	err := s.db.Update(func(txn *badger.Txn) error {
		msg, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		if err = mutate(&msg); err != nil {
			return err
		}
		data, err := marshal(msg)
		if err != nil {
			return errors.StoreFailure(err)
		}
		if err = txn.Set(messageKey(id), data); err != nil {
			return errors.StoreFailure(err)
		}
		updated = msg
		return nil
	})
	if err != nil {
		if errors.Code(err) == errors.CodeInternal {
			return domain.Message{}, errors.StoreFailure(err)
		}
		return domain.Message{}, err
	}
	return updated, nil
}

func (s *MessageStore) QueryRoomBefore(room domain.RoomName, before domain.MessageID, limit int) ([]domain.Message, error) {
	return s.queryBefore(roomPrefix(room), before, limit)
}

func (s *MessageStore) QueryConversationBefore(a, b domain.UserID, before domain.MessageID, limit int) ([]domain.Message, error) {
	return s.queryBefore(conversationPrefix(a, b), before, limit)
}

func (s *MessageStore) queryBefore(prefixStr string, before domain.MessageID, limit int) ([]domain.Message, error) {
	limit = domain.NormalizeLimit(limit)
	prefix := []byte(prefixStr)
	messages := make([]domain.Message, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse seek lands on the biggest key <= seekKey.
		// 0xFF sorts after every ULID character.
		seekKey := append([]byte(prefixStr), 0xFF)
		if before != "" {
			seekKey = []byte(prefixStr + string(before))
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			id := domain.MessageID(it.Item().Key()[len(prefix):])
			if id >= before && before != "" {
				continue
			}
			msg, err := getMessage(txn, id)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
			if len(messages) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func getMessage(txn *badger.Txn, id domain.MessageID) (domain.Message, error) {
	item, err := txn.Get(messageKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
	}
	if err != nil {
		return domain.Message{}, errors.StoreFailure(err)
	}
	var msg domain.Message
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &msg)
	})
	if err != nil {
		return domain.Message{}, errors.StoreFailure(err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

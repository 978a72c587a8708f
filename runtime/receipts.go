package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moby/locker"
)

// ReadReceipts records that the recipient of a private message has read it.
// The sender is told once, on the first read.
type ReadReceipts struct {
	log      *slog.Logger
	store    storage.IMessageStore
	presence *PresencePublisher
	delivery *Delivery
	locks    *locker.Locker
}

func NewReadReceipts(log *slog.Logger, store storage.IMessageStore, presence *PresencePublisher,
	delivery *Delivery, locks *locker.Locker) *ReadReceipts {
	return &ReadReceipts{log: log, store: store, presence: presence, delivery: delivery, locks: locks}
}

// MarkRead returns whether this call was the first read by reader.
func (r *ReadReceipts) MarkRead(ctx context.Context, reader *Session, id domain.MessageID) (bool, error) {
	r.locks.Lock(messageLockKey(id))
	defer r.locks.Unlock(messageLockKey(id))

	first := false
	msg, err := r.store.Update(id, func(m *domain.Message) error {
		if !m.Destination.IsPrivate() {
			return errors.ErrRoomMessageRead
		}
		if !m.Involves(reader.User.ID) {
			return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
		}
		if m.SenderID == reader.User.ID {
			return nil
		}
		first = m.MarkReadBy(reader.User.ID)
		return nil
	})
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	r.delivery.Deliver(ctx, event.MessageRead{
		MessageID: msg.ID,
		By:        reader.User.ID,
		At:        time.Now().UTC(),
	}, r.presence.usersAudience(msg.SenderID)...)
	return true, nil
}

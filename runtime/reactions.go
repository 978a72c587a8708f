package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"

	"github.com/moby/locker"
)

const maxEmojiLength = 32

// ReactionAggregator keeps one reaction per user and message, the last one wins.
type ReactionAggregator struct {
	log      *slog.Logger
	store    storage.IMessageStore
	presence *PresencePublisher
	delivery *Delivery
	locks    *locker.Locker
}

func NewReactionAggregator(log *slog.Logger, store storage.IMessageStore, presence *PresencePublisher,
	delivery *Delivery, locks *locker.Locker) *ReactionAggregator {
	return &ReactionAggregator{log: log, store: store, presence: presence, delivery: delivery, locks: locks}
}

// React upserts the reaction of reactor and broadcasts the full reaction list
// to the message audience. A private message is invisible to outsiders.
func (a *ReactionAggregator) React(ctx context.Context, reactor *Session, id domain.MessageID, emoji string) (domain.Message, error) {
	if err := validate.Var(emoji, fmt.Sprintf("required,max=%d", maxEmojiLength)); err != nil {
		return domain.Message{}, errors.Validation(err)
	}

	a.locks.Lock(messageLockKey(id))
	defer a.locks.Unlock(messageLockKey(id))

	msg, err := a.store.Update(id, func(m *domain.Message) error {
		if !m.Involves(reactor.User.ID) {
			return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
		}
		m.React(reactor.User.ID, emoji)
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	a.delivery.Deliver(ctx, event.ReactionsUpdated{
		MessageID: msg.ID,
		Reactions: msg.Reactions,
		Target:    msg.Destination,
	}, a.messageAudience(msg)...)
	return msg, nil
}

// messageAudience is everyone who received the message: room members, or both
// parties of a private conversation.
func (a *ReactionAggregator) messageAudience(msg domain.Message) []*Session {
	if msg.Destination.IsPrivate() {
		return a.presence.usersAudience(msg.SenderID, msg.Destination.Recipient)
	}
	return a.presence.roomAudience(msg.Destination.Room)
}

func messageLockKey(id domain.MessageID) string {
	return "msg:" + string(id)
}

package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/infrastructure/storage"
	"chat-fanout/moderation"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/moby/locker"
)

var validate = validator.New()

// Outgoing is a message as submitted by its sender.
type Outgoing struct {
	Body        string
	Kind        domain.Kind
	Destination domain.Destination
}

// FanoutEngine persists messages and delivers them to their audience.
// A message is appended to the store before anyone can see it, and messages of
// the same room (or private conversation) are persisted and delivered one at a
// time so every member observes the store order.
type FanoutEngine struct {
	log              *slog.Logger
	store            storage.IMessageStore
	index            storage.IMessageIndex
	users            storage.IUserRepository
	directory        *RoomDirectory
	presence         *PresencePublisher
	delivery         *Delivery
	moderator        moderation.IModerator
	ids              *domain.IDGenerator
	locks            *locker.Locker
	maxContentLength int
	telemetryChan    chan event.Event
}

func NewFanoutEngine(
	log *slog.Logger,
	store storage.IMessageStore,
	index storage.IMessageIndex,
	users storage.IUserRepository,
	directory *RoomDirectory,
	presence *PresencePublisher,
	delivery *Delivery,
	moderator moderation.IModerator,
	ids *domain.IDGenerator,
	locks *locker.Locker,
	maxContentLength int,
	telemetryChan chan event.Event,
) *FanoutEngine {
	return &FanoutEngine{
		log:              log,
		store:            store,
		index:            index,
		users:            users,
		directory:        directory,
		presence:         presence,
		delivery:         delivery,
		moderator:        moderator,
		ids:              ids,
		locks:            locks,
		maxContentLength: maxContentLength,
		telemetryChan:    telemetryChan,
	}
}

// Send validates, persists and delivers a message from sender.
// Offline recipients only get the persisted copy. A store failure aborts the
// send before any delivery.
func (f *FanoutEngine) Send(ctx context.Context, sender *Session, out Outgoing) (domain.Message, error) {
	if err := f.validate(sender, &out); err != nil {
		return domain.Message{}, err
	}

	body, lang := out.Body, ""
	var censored []string
	if out.Kind == domain.KindText {
		verdict := f.moderator.Moderate(out.Body)
		body, lang, censored = verdict.Body, verdict.Lang, verdict.Words
	}

	key := domain.ConversationKey(sender.User.ID, out.Destination)
	f.locks.Lock(key)
	defer f.locks.Unlock(key)

	id, createdAt := f.ids.Next()
	msg := domain.Message{
		ID:          id,
		SenderID:    sender.User.ID,
		SenderName:  sender.User.Username,
		Destination: out.Destination,
		Body:        body,
		Kind:        out.Kind,
		Lang:        lang,
		CreatedAt:   createdAt,
	}

	if err := f.store.Append(msg); err != nil {
		f.log.Error("message not persisted",
			"user_id", sender.User.ID,
			"destination", out.Destination.String(),
			"error", err)
		if errors.Code(err) != errors.CodeStoreFailure {
			err = errors.StoreFailure(err)
		}
		return domain.Message{}, err
	}

	if f.index != nil {
		if err := f.index.Index(msg); err != nil {
			f.log.Warn("message not indexed", "message_id", msg.ID, "error", err)
		}
	}

	recipients := f.delivery.Deliver(ctx, event.MessageDelivered{Message: msg}, f.audience(sender, msg)...)

	emit(f.telemetryChan, event.New(event.MessagePersistedType, event.MessagePersisted{
		MessageID:   msg.ID,
		Destination: msg.Destination,
		CreatedAt:   msg.CreatedAt,
		Recipients:  recipients,
	}))
	if len(censored) > 0 {
		emit(f.telemetryChan, event.New(event.CensorshipHitType, event.Censored{MessageID: msg.ID, Words: censored}))
	}
	return msg, nil
}

// audience of a room message is its current members, a private message goes
// to the recipient and is echoed to the sender session.
func (f *FanoutEngine) audience(sender *Session, msg domain.Message) []*Session {
	if !msg.Destination.IsPrivate() {
		return f.presence.roomAudience(msg.Destination.Room)
	}
	audience := f.presence.usersAudience(msg.Destination.Recipient)
	return append(audience, sender)
}

func (f *FanoutEngine) validate(sender *Session, out *Outgoing) error {
	if err := out.Destination.Validate(); err != nil {
		return err
	}
	if out.Kind == "" {
		out.Kind = domain.KindText
	}
	if !out.Kind.Valid() {
		return fmt.Errorf("%w: %q", errors.ErrInvalidKind, out.Kind)
	}
	if strings.TrimSpace(out.Body) == "" {
		return fmt.Errorf("%w: body is required", errors.ErrValidation)
	}
	if f.maxContentLength > 0 && utf8.RuneCountInString(out.Body) > f.maxContentLength {
		return fmt.Errorf("%w: %d characters max", errors.ErrContentTooLong, f.maxContentLength)
	}
	if out.Kind == domain.KindFile {
		if err := validate.Var(out.Body, "http_url"); err != nil {
			return errors.ErrInvalidFileURL
		}
	}

	if out.Destination.IsPrivate() {
		if out.Destination.Recipient == sender.User.ID {
			return errors.ErrSelfMessage
		}
		if _, err := f.users.FindByID(out.Destination.Recipient); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return fmt.Errorf("%w: %s", errors.ErrRecipientNotFound, out.Destination.Recipient)
			}
			return err
		}
		return nil
	}
	if !f.directory.IsMember(sender.User.ID, out.Destination.Room) {
		return fmt.Errorf("%w: %s", errors.ErrRoomNotJoined, out.Destination.Room)
	}
	return nil
}

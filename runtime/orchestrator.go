// Package runtime is the connection-state and fan-out engine.
// It owns who is online, which rooms they joined, who is typing, and turns
// every inbound request into persisted state and notifications.
package runtime

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/infrastructure/storage"
	"chat-fanout/moderation"
	"chat-fanout/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/moby/locker"
	"github.com/samber/lo"
)

type Config struct {
	DefaultRoom          domain.RoomName
	SinkTimeout          time.Duration
	TypingDebounce       time.Duration
	MaxContentLength     int
	BufferSize           int
	MetricInterval       time.Duration
	LatencyThreshold     time.Duration
	LowCapacityThreshold int
}

// Orchestrator is the single coordinator of connection state.
//
// Session registration, retirement, room membership and typing changes run
// under mu together with the notifications they cause, so presence and member
// lists are observed in the order the changes happened. Messages, reactions and
// read receipts do not take mu: they are serialized per room, conversation or
// message by a named locker. Lock order is mu, then the component locks.
type Orchestrator struct {
	mu            sync.Mutex
	log           *slog.Logger
	cfg           Config
	supervisor    contract.ISupervisor
	users         storage.IUserRepository
	store         storage.IMessageStore
	index         storage.IMessageIndex
	registry      *ConnectionRegistry
	directory     *RoomDirectory
	presence      *PresencePublisher
	typing        *TypingCoordinator
	delivery      *Delivery
	fanout        *FanoutEngine
	reactions     *ReactionAggregator
	receipts      *ReadReceipts
	telemetryChan chan event.Event
	counter       *event.Counter
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, telemetryChan chan event.Event,
	users storage.IUserRepository, store storage.IMessageStore, index storage.IMessageIndex,
	moderator moderation.IModerator, cfg Config) *Orchestrator {
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = domain.DefaultRoom
	}
	if cfg.TypingDebounce <= 0 {
		cfg.TypingDebounce = 300 * time.Millisecond
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if moderator == nil {
		moderator = moderation.Disabled{}
	}

	if telemetryChan == nil {
		telemetryChan = make(chan event.Event, cfg.BufferSize)
	}
	registry := NewConnectionRegistry()
	directory := NewRoomDirectory()
	delivery := NewDelivery(log, cfg.SinkTimeout, telemetryChan)
	presence := NewPresencePublisher(registry, directory, delivery)
	locks := locker.New()

	o := &Orchestrator{
		log:           log,
		cfg:           cfg,
		supervisor:    supervisor,
		users:         users,
		store:         store,
		index:         index,
		registry:      registry,
		directory:     directory,
		presence:      presence,
		typing:        NewTypingCoordinator(cfg.TypingDebounce),
		delivery:      delivery,
		fanout:        NewFanoutEngine(log, store, index, users, directory, presence, delivery, moderator, domain.NewIDGenerator(), locks, cfg.MaxContentLength, telemetryChan),
		reactions:     NewReactionAggregator(log, store, presence, delivery, locks),
		receipts:      NewReadReceipts(log, store, presence, delivery, locks),
		telemetryChan: telemetryChan,
		counter:       event.NewCounter(),
	}
	o.typing.OnExpire(o.expireTyping)
	return o
}

// Authenticate binds username to sink. A previous session of the same identity
// is retired first (rooms left, typing scrubbed, superseded notice, sink
// closed) without an offline announcement, so the change is published once.
// The new session joins the default room.
func (o *Orchestrator) Authenticate(ctx context.Context, username string, sink contract.SessionSink) (*Session, []domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil, errors.ErrUsernameRequired
	}
	if err := validate.Var(username, "max=32"); err != nil {
		return nil, nil, errors.Validation(err)
	}
	user, err := o.users.FindOrCreate(username)
	if err != nil {
		o.log.Error("identity lookup failed", "username", username, "error", err)
		return nil, nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if previous, ok := o.registry.SessionOf(user.ID); ok {
		o.log.Info("session superseded", "user_id", user.ID, "session_id", previous.ID)
		o.retireLocked(ctx, previous)
		o.delivery.Deliver(ctx, event.SessionSuperseded{SessionID: previous.ID}, previous)
		previous.Sink.Close()
	}

	session, _ := o.registry.Register(user, sink)
	o.log.Info("session registered", "user_id", user.ID, "username", user.Username, "session_id", session.ID)
	o.presence.StatusChanged(ctx, user, domain.StatusOnline)
	o.joinLocked(ctx, session, o.cfg.DefaultRoom)
	return session, o.registry.Online(), nil
}

// Disconnect retires the session: every room is left once with its
// notification, typing entries are scrubbed, then the offline status is
// published. Unknown or already retired sessions are ignored, a newer session
// of the same identity is never affected.
func (o *Orchestrator) Disconnect(ctx context.Context, id domain.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	session, ok := o.registry.Session(id)
	if !ok {
		return
	}
	o.retireLocked(ctx, session)
	session.Sink.Close()
	o.presence.StatusChanged(ctx, session.User, domain.StatusOffline)
	o.log.Info("session retired", "user_id", session.User.ID, "session_id", id)
}

func (o *Orchestrator) retireLocked(ctx context.Context, session *Session) {
	for _, room := range o.directory.RoomsOf(session.User.ID) {
		if o.directory.Leave(session.User.ID, room) {
			o.presence.Left(ctx, session, room)
		}
	}
	for _, target := range o.typing.Scrub(session.User.ID) {
		o.publishTyping(ctx, target)
	}
	o.registry.Retire(session.ID)
}

// JoinRoom is idempotent: joining again only resends the member snapshot.
func (o *Orchestrator) JoinRoom(ctx context.Context, id domain.SessionID, room domain.RoomName) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	session, err := o.current(id)
	if err != nil {
		return err
	}
	o.joinLocked(ctx, session, room)
	return nil
}

func (o *Orchestrator) joinLocked(ctx context.Context, session *Session, room domain.RoomName) {
	if !o.directory.Join(session.User, room) {
		o.presence.Snapshot(ctx, session, room)
		return
	}
	o.log.Debug("room joined", "user_id", session.User.ID, "room", room)
	o.presence.Joined(ctx, session, room)
}

// LeaveRoom is idempotent, leaving a room never joined is a no-op.
func (o *Orchestrator) LeaveRoom(ctx context.Context, id domain.SessionID, room domain.RoomName) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	session, err := o.current(id)
	if err != nil {
		return err
	}
	if !o.directory.Leave(session.User.ID, room) {
		return nil
	}
	o.log.Debug("room left", "user_id", session.User.ID, "room", room)
	o.presence.Left(ctx, session, room)
	if o.typing.Remove(session.User.ID, domain.ToRoom(room)) {
		o.publishTyping(ctx, domain.ToRoom(room))
	}
	return nil
}

// SetTyping starts, renews or stops the typing entry of the session user.
// Only additions and removals are broadcast to the target.
func (o *Orchestrator) SetTyping(ctx context.Context, id domain.SessionID, target domain.Destination, isTyping bool) error {
	if err := target.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	session, err := o.current(id)
	if err != nil {
		return err
	}
	if target.IsPrivate() && target.Recipient == session.User.ID {
		return errors.ErrSelfMessage
	}
	if !target.IsPrivate() && !o.directory.IsMember(session.User.ID, target.Room) {
		return fmt.Errorf("%w: %s", errors.ErrRoomNotJoined, target.Room)
	}
	if o.typing.Set(session.User, target, isTyping) {
		o.publishTyping(ctx, target)
	}
	return nil
}

func (o *Orchestrator) expireTyping(user domain.UserID, target domain.Destination, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.typing.Expire(user, target, seq) {
		o.log.Debug("typing expired", "user_id", user, "target", target.String())
		o.publishTyping(context.Background(), target)
	}
}

func (o *Orchestrator) publishTyping(ctx context.Context, target domain.Destination) {
	var audience []*Session
	if target.IsPrivate() {
		audience = o.presence.usersAudience(target.Recipient)
	} else {
		audience = o.presence.roomAudience(target.Room)
	}
	o.delivery.Deliver(ctx, event.TypingChanged{Target: target, Users: o.typing.Typing(target)}, audience...)
}

func (o *Orchestrator) SendMessage(ctx context.Context, id domain.SessionID, out Outgoing) (domain.Message, error) {
	session, err := o.current(id)
	if err != nil {
		return domain.Message{}, err
	}
	return o.fanout.Send(ctx, session, out)
}

func (o *Orchestrator) AddReaction(ctx context.Context, id domain.SessionID, messageID domain.MessageID, emoji string) (domain.Message, error) {
	session, err := o.current(id)
	if err != nil {
		return domain.Message{}, err
	}
	return o.reactions.React(ctx, session, messageID, emoji)
}

func (o *Orchestrator) MarkRead(ctx context.Context, id domain.SessionID, messageID domain.MessageID) error {
	session, err := o.current(id)
	if err != nil {
		return err
	}
	_, err = o.receipts.MarkRead(ctx, session, messageID)
	return err
}

// History returns a page of room messages or of the private conversation
// between user and q.Peer, newest first.
func (o *Orchestrator) History(_ context.Context, user domain.UserID, q domain.HistoryQuery) ([]domain.Message, error) {
	if (q.Room == "") == (q.Peer == "") {
		return nil, errors.ErrInvalidDestination
	}
	if q.BeforeID != "" {
		id, err := domain.ParseMessageID(string(q.BeforeID))
		if err != nil {
			return nil, errors.Validation(err)
		}
		q.BeforeID = id
	}
	var messages []domain.Message
	var err error
	if q.Room != "" {
		messages, err = o.store.QueryRoomBefore(q.Room, q.Boundary(), q.Limit)
	} else {
		messages, err = o.store.QueryConversationBefore(user, q.Peer, q.Boundary(), q.Limit)
	}
	if err != nil {
		o.log.Error("history query failed", "user_id", user, "error", err)
		return nil, err
	}
	return messages, nil
}

// Search looks up room messages by content, best match first.
func (o *Orchestrator) Search(ctx context.Context, room domain.RoomName, query string, limit int) ([]domain.Message, error) {
	if err := validateRoom(room); err != nil {
		return nil, err
	}
	if o.index == nil {
		return nil, nil
	}
	ids, err := o.index.Search(ctx, room, query, limit)
	if err != nil {
		return nil, errors.StoreFailure(err)
	}
	var messages []domain.Message
	for _, id := range ids {
		msg, err := o.store.FindByID(id)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (o *Orchestrator) Online() []domain.User {
	return o.registry.Online()
}

func (o *Orchestrator) Rooms() map[domain.RoomName]int {
	return o.directory.Rooms()
}

func (o *Orchestrator) MembersOf(room domain.RoomName) []domain.User {
	return o.directory.MembersOf(room)
}

func (o *Orchestrator) current(id domain.SessionID) (*Session, error) {
	session, ok := o.registry.Session(id)
	if !ok {
		return nil, errors.ErrNotAuthenticated
	}
	return session, nil
}

// Start registers the telemetry workers and runs the supervisor until ctx is done.
func (o *Orchestrator) Start(ctx context.Context) error {
	handlers := []event.Handler{
		event.NewLatencyHandler(o.log, o.cfg.LatencyThreshold),
		event.NewChannelCapacityHandler(o.log, o.cfg.LowCapacityThreshold),
		event.NewWorkerRestartedAfterPanicHandler(o.log, o.counter),
		event.NewDeliveryDroppedHandler(o.log, o.counter),
		event.NewProcessStatsHandler(o.log),
		event.NewCensoredHandler(o.log),
	}
	metricInterval := o.cfg.MetricInterval
	if metricInterval <= 0 {
		metricInterval = 5 * time.Second
	}

	o.supervisor.Add(
		workers.NewTelemetryWorker(o.log, o.telemetryChan, handlers),
		workers.NewChannelCapacityWorker(o.log, o.sampledChannels, o.telemetryChan, metricInterval),
		workers.NewProcessStatsWorker(o.log, o.telemetryChan, metricInterval),
	)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// Counter exposes the telemetry counters.
func (o *Orchestrator) Counter() *event.Counter {
	return o.counter
}

func (o *Orchestrator) sampledChannels() []workers.NamedChannel {
	channels := []workers.NamedChannel{{Name: "telemetry", Channel: o.telemetryChan}}
	return append(channels, lo.FilterMap(o.registry.Sessions(), func(s *Session, _ int) (workers.NamedChannel, bool) {
		buffered, ok := s.Sink.(interface {
			Events() <-chan event.DomainEvent
		})
		if !ok {
			return workers.NamedChannel{}, false
		}
		return workers.NamedChannel{Name: "session:" + string(s.ID), Channel: buffered.Events()}, true
	})...)
}

func validateRoom(room domain.RoomName) error {
	if strings.TrimSpace(string(room)) == "" {
		return fmt.Errorf("%w: room is required", errors.ErrValidation)
	}
	if err := validate.Var(string(room), "max=64,excludesall=:"); err != nil {
		return errors.Validation(err)
	}
	return nil
}

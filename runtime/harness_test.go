package runtime_test

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/infrastructure/storage"
	"chat-fanout/runtime"
	"chat-fanout/runtime/workers"
	"chat-fanout/sink"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

type harness struct {
	t     *testing.T
	ctx   context.Context
	o     *runtime.Orchestrator
	store storage.IMessageStore
	index storage.IMessageIndex
}

type option func(*harnessConfig)

type harnessConfig struct {
	store storage.IMessageStore
	index storage.IMessageIndex
	cfg   runtime.Config
}

func withStore(store storage.IMessageStore) option {
	return func(c *harnessConfig) { c.store = store }
}

func withIndex(index storage.IMessageIndex) option {
	return func(c *harnessConfig) { c.index = index }
}

func withTypingDebounce(d time.Duration) option {
	return func(c *harnessConfig) { c.cfg.TypingDebounce = d }
}

func newHarness(t *testing.T, opts ...option) *harness {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	hc := harnessConfig{
		store: storage.NewMessageStore(db, log),
		cfg: runtime.Config{
			SinkTimeout:      100 * time.Millisecond,
			TypingDebounce:   time.Hour,
			MaxContentLength: 2000,
			BufferSize:       100,
		},
	}
	for _, opt := range opts {
		opt(&hc)
	}
	o := runtime.NewOrchestrator(log, workers.NewSupervisor(log, nil, 0), nil,
		storage.NewUserRepository(db, log), hc.store, hc.index, nil, hc.cfg)
	return &harness{t: t, ctx: context.Background(), o: o, store: hc.store, index: hc.index}
}

// client is a connected session whose notifications are recorded.
type client struct {
	t       *testing.T
	session *runtime.Session
	sink    *sink.SessionSink
	online  []domain.User
}

func (h *harness) connect(username string) *client {
	h.t.Helper()
	s := sink.NewSessionSink(256)
	session, online, err := h.o.Authenticate(h.ctx, username, s)
	require.NoError(h.t, err)
	return &client{t: h.t, session: session, sink: s, online: online}
}

// connectQuiet connects and discards the notifications caused by the connection.
func (h *harness) connectQuiet(username string, others ...*client) *client {
	c := h.connect(username)
	c.drain()
	for _, o := range others {
		o.drain()
	}
	return c
}

func (c *client) id() domain.UserID { return c.session.User.ID }

func (c *client) drain() {
	for {
		select {
		case <-c.sink.Events():
		default:
			return
		}
	}
}

// all returns every notification received so far.
func (c *client) all() []event.DomainEvent {
	var events []event.DomainEvent
	for {
		select {
		case e := <-c.sink.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

// next waits for the next notification of type T, skipping the others.
func next[T event.DomainEvent](c *client) T {
	c.t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case e := <-c.sink.Events():
			if typed, ok := e.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			require.FailNow(c.t, "notification not received", "%T", zero)
			return zero
		}
	}
}

// ofType keeps the notifications of type T.
func ofType[T event.DomainEvent](events []event.DomainEvent) []T {
	var typed []T
	for _, e := range events {
		if t, ok := e.(T); ok {
			typed = append(typed, t)
		}
	}
	return typed
}

func usernames(users []domain.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

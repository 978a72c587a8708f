package runtime

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Session binds one identity to one live connection.
type Session struct {
	ID          domain.SessionID
	User        domain.User
	Sink        contract.SessionSink
	ConnectedAt time.Time
}

// ConnectionRegistry owns session lifetime: at most one session per identity.
// A session id disappears from the registry once retired and is never reused.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	byUser   map[domain.UserID]domain.SessionID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions: make(map[domain.SessionID]*Session),
		byUser:   make(map[domain.UserID]domain.SessionID),
	}
}

// Register installs a new session for user.
// If user still had a session it is removed and returned, callers are expected
// to have retired it beforehand.
func (r *ConnectionRegistry) Register(user domain.User, sink contract.SessionSink) (*Session, *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var previous *Session
	if id, ok := r.byUser[user.ID]; ok {
		previous = r.sessions[id]
		delete(r.sessions, id)
	}
	session := &Session{
		ID:          domain.NewSessionID(),
		User:        user,
		Sink:        sink,
		ConnectedAt: time.Now().UTC(),
	}
	r.sessions[session.ID] = session
	r.byUser[user.ID] = session.ID
	return session, previous
}

// Retire removes the session. It is idempotent and never touches a newer
// session of the same identity.
func (r *ConnectionRegistry) Retire(id domain.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	if r.byUser[session.User.ID] == id {
		delete(r.byUser, session.User.ID)
	}
	return session, true
}

// Session returns the session if it is still the current one of its identity.
func (r *ConnectionRegistry) Session(id domain.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

func (r *ConnectionRegistry) SessionOf(user domain.UserID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[user]
	if !ok {
		return nil, false
	}
	session, ok := r.sessions[id]
	return session, ok
}

// ChannelFor returns the sink of user, absent when user is offline.
func (r *ConnectionRegistry) ChannelFor(user domain.UserID) (contract.SessionSink, bool) {
	session, ok := r.SessionOf(user)
	if !ok {
		return nil, false
	}
	return session.Sink, true
}

// Online returns the connected identities ordered by username.
func (r *ConnectionRegistry) Online() []domain.User {
	r.mu.RLock()
	users := lo.MapToSlice(r.byUser, func(_ domain.UserID, id domain.SessionID) domain.User {
		return r.sessions[id].User
	})
	r.mu.RUnlock()
	sortUsers(users)
	return users
}

func (r *ConnectionRegistry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func sortUsers(users []domain.User) {
	slices.SortFunc(users, func(a, b domain.User) int {
		if c := strings.Compare(a.Username, b.Username); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
}

package runtime

import (
	"chat-fanout/domain"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ExpireFunc is called from the timer goroutine when an unrenewed entry is due.
type ExpireFunc func(user domain.UserID, target domain.Destination, seq uint64)

type typingEntry struct {
	user  domain.User
	seq   uint64
	timer *time.Timer
}

// TypingCoordinator keeps who is typing to which room or recipient.
// Every entry self-expires after the debounce interval unless renewed.
// Expiry goes through the ExpireFunc so that the owner can serialize it with
// the other mutations, the seq number discards timers that lost a race with a
// renewal.
type TypingCoordinator struct {
	mu       sync.Mutex
	debounce time.Duration
	entries  map[domain.Destination]map[domain.UserID]*typingEntry
	seq      uint64
	onExpire ExpireFunc
}

func NewTypingCoordinator(debounce time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		debounce: debounce,
		entries:  make(map[domain.Destination]map[domain.UserID]*typingEntry),
	}
}

// OnExpire must be set before the first Set call.
func (c *TypingCoordinator) OnExpire(f ExpireFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpire = f
}

// Set records the typing state of user for target and reports whether the
// typing list of target changed. Renewing an entry only restarts its timer.
func (c *TypingCoordinator) Set(user domain.User, target domain.Destination, isTyping bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	users := c.entries[target]
	entry, exists := users[user.ID]

	if !isTyping {
		if !exists {
			return false
		}
		c.removeLocked(target, user.ID)
		return true
	}

	c.seq++
	seq := c.seq
	timer := time.AfterFunc(c.debounce, func() {
		c.fire(user.ID, target, seq)
	})
	if exists {
		entry.timer.Stop()
		entry.seq = seq
		entry.timer = timer
		return false
	}
	if users == nil {
		users = make(map[domain.UserID]*typingEntry)
		c.entries[target] = users
	}
	users[user.ID] = &typingEntry{user: user, seq: seq, timer: timer}
	return true
}

// Expire removes the entry armed with seq, if it was not renewed or removed since.
func (c *TypingCoordinator) Expire(user domain.UserID, target domain.Destination, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[target][user]
	if !ok || entry.seq != seq {
		return false
	}
	c.removeLocked(target, user)
	return true
}

// Remove drops the entry of user for target, reporting whether there was one.
func (c *TypingCoordinator) Remove(user domain.UserID, target domain.Destination) bool {
	return c.Set(domain.User{ID: user}, target, false)
}

// Scrub removes user from every typing set and returns the targets whose list
// changed. Sets addressed to user are dropped silently.
func (c *TypingCoordinator) Scrub(user domain.UserID) []domain.Destination {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries[domain.ToUser(user)] {
		entry.timer.Stop()
	}
	delete(c.entries, domain.ToUser(user))

	var changed []domain.Destination
	for target, users := range c.entries {
		if _, ok := users[user]; ok {
			c.removeLocked(target, user)
			changed = append(changed, target)
		}
	}
	slices.SortFunc(changed, func(a, b domain.Destination) int {
		return strings.Compare(a.String(), b.String())
	})
	return changed
}

// Typing returns who is typing to target, ordered by username.
func (c *TypingCoordinator) Typing(target domain.Destination) []domain.User {
	c.mu.Lock()
	users := lo.MapToSlice(c.entries[target], func(_ domain.UserID, e *typingEntry) domain.User {
		return e.user
	})
	c.mu.Unlock()
	sortUsers(users)
	return users
}

func (c *TypingCoordinator) removeLocked(target domain.Destination, user domain.UserID) {
	users := c.entries[target]
	if entry, ok := users[user]; ok {
		entry.timer.Stop()
		delete(users, user)
	}
	if len(users) == 0 {
		delete(c.entries, target)
	}
}

func (c *TypingCoordinator) fire(user domain.UserID, target domain.Destination, seq uint64) {
	c.mu.Lock()
	onExpire := c.onExpire
	c.mu.Unlock()
	if onExpire == nil {
		c.Expire(user, target, seq)
		return
	}
	onExpire(user, target, seq)
}

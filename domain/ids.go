package domain

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type UserID string

type SessionID string

type MessageID string

func NewUserID() UserID {
	return UserID(uuid.NewString())
}

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// IDGenerator hands out message ids that sort in creation order.
// The timestamp part of the id is the message createdAt (millisecond precision)
// and the monotonic entropy keeps ids strictly increasing inside one millisecond.
type IDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
	last    time.Time
}

func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorWithClock(time.Now)
}

func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

// Next returns a fresh id and the creation time embedded in it.
// A clock going backwards never produces a smaller id.
func (g *IDGenerator) Next() (MessageID, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	createdAt := g.now().UTC().Truncate(time.Millisecond)
	if createdAt.Before(g.last) {
		createdAt = g.last
	}
	g.last = createdAt

	id := ulid.MustNew(ulid.Timestamp(createdAt), g.entropy)
	return MessageID(id.String()), createdAt
}

// BoundaryID is the smallest id that can be produced at t.
// Every message created strictly before t sorts below it. Ids only carry
// milliseconds, so a t inside a millisecond moves to the next one.
func BoundaryID(t time.Time) MessageID {
	if ms := t.Truncate(time.Millisecond); !ms.Equal(t) {
		t = ms.Add(time.Millisecond)
	}
	var id ulid.ULID
	if err := id.SetTime(ulid.Timestamp(t)); err != nil {
		return MessageID(ulid.ULID{}.String())
	}
	return MessageID(id.String())
}

// ParseMessageID checks the id is well-formed and returns its canonical form.
func ParseMessageID(raw string) (MessageID, error) {
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return "", err
	}
	return MessageID(id.String()), nil
}

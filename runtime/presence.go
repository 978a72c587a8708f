package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"context"

	"github.com/samber/lo"
)

// PresencePublisher turns registry and directory changes into notifications.
// It keeps no state of its own.
type PresencePublisher struct {
	registry  *ConnectionRegistry
	directory *RoomDirectory
	delivery  *Delivery
}

func NewPresencePublisher(registry *ConnectionRegistry, directory *RoomDirectory, delivery *Delivery) *PresencePublisher {
	return &PresencePublisher{registry: registry, directory: directory, delivery: delivery}
}

// StatusChanged sends the online list to every connected session.
func (p *PresencePublisher) StatusChanged(ctx context.Context, user domain.User, status domain.Status) {
	p.delivery.Deliver(ctx, event.PresenceChanged{
		User:   user,
		Status: status,
		Online: p.registry.Online(),
	}, p.registry.Sessions()...)
}

// Snapshot sends the member list of room to the given session only.
func (p *PresencePublisher) Snapshot(ctx context.Context, session *Session, room domain.RoomName) {
	p.delivery.Deliver(ctx, event.RoomMembers{Room: room, Members: p.directory.MembersOf(room)}, session)
}

// Joined notifies the other members of room and sends the snapshot to the joiner.
func (p *PresencePublisher) Joined(ctx context.Context, session *Session, room domain.RoomName) {
	members := p.directory.MembersOf(room)
	p.delivery.Deliver(ctx, event.RoomMembers{Room: room, Members: members}, session)
	p.delivery.Deliver(ctx, event.RoomJoined{
		Room:    room,
		User:    session.User,
		Members: members,
	}, p.sessionsOf(members, session.User.ID)...)
}

// Left notifies the remaining members of room and the leaver itself.
func (p *PresencePublisher) Left(ctx context.Context, session *Session, room domain.RoomName) {
	members := p.directory.MembersOf(room)
	audience := append(p.sessionsOf(members, ""), session)
	p.delivery.Deliver(ctx, event.RoomLeft{
		Room:    room,
		User:    session.User,
		Members: members,
	}, audience...)
}

// sessionsOf resolves the live sessions of users, skipping the excluded one
// and the offline ones.
func (p *PresencePublisher) sessionsOf(users []domain.User, exclude domain.UserID) []*Session {
	return lo.FilterMap(users, func(u domain.User, _ int) (*Session, bool) {
		if u.ID == exclude {
			return nil, false
		}
		return p.registry.SessionOf(u.ID)
	})
}

// roomAudience returns the live sessions of the members of room.
func (p *PresencePublisher) roomAudience(room domain.RoomName) []*Session {
	return p.sessionsOf(p.directory.MembersOf(room), "")
}

// usersAudience returns the live sessions of the given identities, once each.
func (p *PresencePublisher) usersAudience(users ...domain.UserID) []*Session {
	return lo.FilterMap(lo.Uniq(users), func(u domain.UserID, _ int) (*Session, bool) {
		return p.registry.SessionOf(u)
	})
}

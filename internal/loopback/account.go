package loopback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"conclave/internal/domain"
	"conclave/internal/events"
)

type localPresence struct {
	kind domain.LocalPresenceKind
	room domain.ChatRoom
}

// Account is one user on a Hub.
type Account struct {
	hub     *Hub
	id      domain.AccountID
	contact domain.Contact

	mu    sync.Mutex
	rooms map[domain.RoomID]*Room
	sent  []domain.DirectEvent

	local  events.Broker[localPresence]
	direct events.Broker[domain.DirectEvent]

	// SendErr, when set, fails every SendInstantMessage.
	SendErr error
}

// ID returns the account identifier.
func (a *Account) ID() domain.AccountID { return a.id }

// Contact returns how other accounts address this one.
func (a *Account) Contact() domain.Contact { return a.contact }

// Provider implements domain.MultiUserChat and domain.DirectTransport.
func (a *Account) Provider() domain.ProviderID { return a.hub.provider }

// Join enters roomID under nickname and notifies local presence listeners.
func (a *Account) Join(roomID domain.RoomID, nickname string) (*Room, error) {
	r, err := a.hub.join(a, roomID, nickname)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.rooms[roomID] = r
	a.mu.Unlock()

	a.local.Publish(localPresence{kind: domain.LocalJoined, room: r})
	return r, nil
}

// Leave exits roomID with the given local presence kind.
func (a *Account) Leave(roomID domain.RoomID, kind domain.LocalPresenceKind) {
	a.mu.Lock()
	r, ok := a.rooms[roomID]
	delete(a.rooms, roomID)
	a.mu.Unlock()
	if !ok {
		return
	}

	memberKind := domain.MemberLeft
	if kind == domain.LocalKicked {
		memberKind = domain.MemberKicked
	}
	a.hub.part(r, memberKind)
	a.local.Publish(localPresence{kind: kind, room: r})
}

// Room returns the joined room with id.
func (a *Account) Room(id domain.RoomID) (*Room, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.rooms[id]
	return r, ok
}

func (a *Account) JoinedRooms() []domain.ChatRoom {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ChatRoom, 0, len(a.rooms))
	for _, r := range a.rooms {
		out = append(out, r)
	}
	return out
}

func (a *Account) AddLocalPresenceListener(
	fn func(kind domain.LocalPresenceKind, room domain.ChatRoom),
) (remove func()) {
	return a.local.Subscribe(func(p localPresence) { fn(p.kind, p.room) })
}

// AddDirectListener registers fn for direct delivered/received events.
func (a *Account) AddDirectListener(fn func(domain.DirectEvent)) (remove func()) {
	return a.direct.Subscribe(fn)
}

func (a *Account) CreateMessage(text string) domain.Message { return a.hub.newMessage(text) }

// SendInstantMessage delivers msg to the account at to.Address.
func (a *Account) SendInstantMessage(_ context.Context, to domain.Contact, msg domain.Message) error {
	if a.SendErr != nil {
		return a.SendErr
	}
	peer, ok := a.hub.account(to.Address)
	if !ok {
		return fmt.Errorf("loopback: no account at %s", to.Address)
	}
	now := time.Now()
	delivered := domain.DirectEvent{
		Kind: domain.DirectDelivered, Provider: a.hub.provider, Contact: to, Message: msg, Timestamp: now,
	}
	a.mu.Lock()
	a.sent = append(a.sent, delivered)
	a.mu.Unlock()

	peer.direct.Publish(domain.DirectEvent{
		Kind: domain.DirectReceived, Provider: a.hub.provider, Contact: a.contact, Message: msg, Timestamp: now,
	})
	a.direct.Publish(delivered)
	return nil
}

// SentDirect returns every direct message sent by this account.
func (a *Account) SentDirect() []domain.DirectEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.DirectEvent(nil), a.sent...)
}

var (
	_ domain.MultiUserChat   = (*Account)(nil)
	_ domain.DirectTransport = (*Account)(nil)
)

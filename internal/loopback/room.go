package loopback

import (
	"context"
	"sync"

	"conclave/internal/domain"
	"conclave/internal/events"
)

// Room is one account's view of a joined room.
type Room struct {
	hub      *Hub
	account  *Account
	id       domain.RoomID
	nickname string

	presence events.Broker[domain.PresenceEvent]
	messages events.Broker[domain.RoomEvent]

	mu    sync.Mutex
	sent  []domain.Message
	fired []domain.RoomEvent

	// SendErr, when set, fails every SendMessage.
	SendErr error
}

func (r *Room) ID() domain.RoomID           { return r.id }
func (r *Room) Name() string                { return string(r.id) }
func (r *Room) Provider() domain.ProviderID { return r.hub.provider }
func (r *Room) Account() domain.AccountID   { return r.account.id }
func (r *Room) LocalNickname() string       { return r.nickname }

func (r *Room) CreateMessage(text string) domain.Message { return r.hub.newMessage(text) }

// Members lists every member including the local one.
func (r *Room) Members() []domain.Member {
	rooms := r.hub.members(r.id)
	out := make([]domain.Member, 0, len(rooms))
	for _, m := range rooms {
		out = append(out, domain.Member{Nickname: m.nickname})
	}
	return out
}

func (r *Room) PrivateContact(nickname string) (domain.Contact, bool) {
	m, ok := r.hub.member(r.id, nickname)
	if !ok {
		return domain.Contact{}, false
	}
	return m.account.contact, true
}

func (r *Room) AddPresenceListener(fn func(domain.PresenceEvent)) (remove func()) {
	return r.presence.Subscribe(fn)
}

// AddMessageListener registers fn for every message event fired in the room.
func (r *Room) AddMessageListener(fn func(domain.RoomEvent)) (remove func()) {
	return r.messages.Subscribe(fn)
}

// SendMessage broadcasts msg to every member of the room.
func (r *Room) SendMessage(_ context.Context, msg domain.Message) error {
	if r.SendErr != nil {
		return r.SendErr
	}
	r.mu.Lock()
	r.sent = append(r.sent, msg)
	r.mu.Unlock()

	r.hub.broadcast(r, msg)
	return nil
}

// FireMessageEvent records evt and hands it to the message listeners.
func (r *Room) FireMessageEvent(evt domain.RoomEvent) {
	r.mu.Lock()
	r.fired = append(r.fired, evt)
	r.mu.Unlock()

	r.messages.Publish(evt)
}

// Sent returns every message sent from this view.
func (r *Room) Sent() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.sent...)
}

// Fired returns every message event fired in this view.
func (r *Room) Fired() []domain.RoomEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RoomEvent(nil), r.fired...)
}

func (r *Room) firePresence(evt domain.PresenceEvent) { r.presence.Publish(evt) }

var _ domain.ChatRoom = (*Room)(nil)

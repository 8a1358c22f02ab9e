package loopback

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"conclave/internal/domain"
)

// Hub is one in-memory chat network.
type Hub struct {
	provider domain.ProviderID

	mu       sync.Mutex
	accounts map[domain.Address]*Account
	rooms    map[domain.RoomID]map[string]*Room
}

// NewHub returns an empty network for provider.
func NewHub(provider domain.ProviderID) *Hub {
	return &Hub{
		provider: provider,
		accounts: make(map[domain.Address]*Account),
		rooms:    make(map[domain.RoomID]map[string]*Room),
	}
}

// Account registers (or returns) the account reachable at addr.
func (h *Hub) Account(id domain.AccountID, addr domain.Address, displayName string) *Account {
	h.mu.Lock()
	defer h.mu.Unlock()

	if a, ok := h.accounts[addr]; ok {
		return a
	}
	a := &Account{
		hub:     h,
		id:      id,
		contact: domain.Contact{Address: addr, DisplayName: displayName, Provider: h.provider},
		rooms:   make(map[domain.RoomID]*Room),
	}
	h.accounts[addr] = a
	return a
}

func (h *Hub) newMessage(text string) domain.Message {
	return domain.Message{ID: domain.MessageID(uuid.NewString()), Body: text, ContentType: "text/plain"}
}

func (h *Hub) join(a *Account, roomID domain.RoomID, nickname string) (*Room, error) {
	h.mu.Lock()
	members := h.rooms[roomID]
	if members == nil {
		members = make(map[string]*Room)
		h.rooms[roomID] = members
	}
	if _, taken := members[nickname]; taken {
		h.mu.Unlock()
		return nil, fmt.Errorf("nickname %q already in room %s", nickname, roomID)
	}
	r := &Room{hub: h, account: a, id: roomID, nickname: nickname}
	others := roomList(members)
	members[nickname] = r
	h.mu.Unlock()

	for _, o := range others {
		o.firePresence(domain.PresenceEvent{Kind: domain.MemberJoined, Room: roomID, Member: domain.Member{Nickname: nickname}})
	}
	return r, nil
}

func (h *Hub) part(r *Room, kind domain.PresenceKind) {
	h.mu.Lock()
	members := h.rooms[r.id]
	if members[r.nickname] != r {
		h.mu.Unlock()
		return
	}
	delete(members, r.nickname)
	others := roomList(members)
	h.mu.Unlock()

	for _, o := range others {
		o.firePresence(domain.PresenceEvent{Kind: kind, Room: r.id, Member: domain.Member{Nickname: r.nickname}})
	}
}

func (h *Hub) members(roomID domain.RoomID) []*Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return roomList(h.rooms[roomID])
}

func (h *Hub) member(roomID domain.RoomID, nickname string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID][nickname]
	return r, ok
}

func (h *Hub) account(addr domain.Address) (*Account, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.accounts[addr]
	return a, ok
}

func (h *Hub) broadcast(from *Room, msg domain.Message) {
	now := time.Now()
	for _, r := range h.members(from.id) {
		evt := domain.RoomEvent{
			Kind:      domain.RoomReceived,
			Room:      from.id,
			Member:    domain.Member{Nickname: from.nickname},
			Message:   msg,
			Timestamp: now,
		}
		if r == from {
			evt.Kind = domain.RoomDelivered
		}
		r.FireMessageEvent(evt)
	}
}

func roomList(m map[string]*Room) []*Room {
	out := make([]*Room, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}

package interfaces

import (
	"context"

	domaintypes "conclave/internal/domain/types"
)

// ChatRoom is the host application's multi-user chat room.
type ChatRoom interface {
	ID() domaintypes.RoomID
	Name() string
	Provider() domaintypes.ProviderID
	Account() domaintypes.AccountID
	LocalNickname() string
	Members() []domaintypes.Member

	// PrivateContact resolves a member nickname to its point-to-point peer.
	PrivateContact(nickname string) (domaintypes.Contact, bool)

	// AddPresenceListener registers fn for membership changes and returns
	// a function that removes it.
	AddPresenceListener(fn func(domaintypes.PresenceEvent)) (remove func())

	// CreateMessage builds a local message with a fresh id without sending it.
	CreateMessage(text string) domaintypes.Message
	SendMessage(ctx context.Context, msg domaintypes.Message) error

	// FireMessageEvent republishes a synthesized event to the room's listeners.
	FireMessageEvent(evt domaintypes.RoomEvent)
}

// MultiUserChat is a provider's chat-room operation set.
type MultiUserChat interface {
	Provider() domaintypes.ProviderID
	JoinedRooms() []ChatRoom
	AddLocalPresenceListener(
		fn func(kind domaintypes.LocalPresenceKind, room ChatRoom),
	) (remove func())
}

// DirectTransport is the point-to-point instant-message channel.
type DirectTransport interface {
	Provider() domaintypes.ProviderID
	CreateMessage(text string) domaintypes.Message
	SendInstantMessage(
		ctx context.Context,
		to domaintypes.Contact,
		msg domaintypes.Message,
	) error
}

package types

import "time"

// Message is a transport message as created by a room or direct transport.
type Message struct {
	ID          MessageID `json:"id"`
	Body        string    `json:"body"`
	ContentType string    `json:"content_type,omitempty"`
}

// EnvelopeKind tells protocol control traffic apart from user content.
type EnvelopeKind int

const (
	// EnvelopeContent is ordinary text that may be shown to the user.
	EnvelopeContent EnvelopeKind = iota
	// EnvelopeControl is protocol traffic that belongs to the engine.
	EnvelopeControl
)

// Envelope is the engine's classification of a message body.
type Envelope struct {
	Kind EnvelopeKind
	// Session is set for control traffic bound to a multi-party session.
	Session SessionID
	// Encoded is true when the body is engine-encoded (encrypted or control).
	Encoded bool
}

// Control reports whether the envelope carries protocol traffic.
func (e Envelope) Control() bool { return e.Kind == EnvelopeControl }

// DirectEventKind identifies the point in a direct message's life cycle.
type DirectEventKind int

const (
	DirectPending DirectEventKind = iota
	DirectDelivered
	DirectReceived
	DirectFailed
)

// DirectEvent is a one-to-one message event crossing the transform layer.
type DirectEvent struct {
	Kind      DirectEventKind
	Provider  ProviderID
	Contact   Contact
	Message   Message
	Timestamp time.Time
	Encrypted bool
	// Reason is set on DirectFailed events.
	Reason string
}

// RoomEventKind identifies the point in a room message's life cycle.
type RoomEventKind int

const (
	RoomPending RoomEventKind = iota
	RoomDelivered
	RoomReceived
)

// RoomEvent is a chat-room message event crossing the transform layer.
type RoomEvent struct {
	Kind      RoomEventKind
	Room      RoomID
	Member    Member
	Message   Message
	Timestamp time.Time
	// History marks messages replayed from the room's history.
	History bool
	// System marks non-conversation events (topic changes, server notices).
	System bool
}

// PresenceKind classifies membership changes of other room members.
type PresenceKind int

const (
	MemberJoined PresenceKind = iota
	MemberLeft
	MemberKicked
	MemberQuit
)

// PresenceEvent reports a membership change inside a room.
type PresenceEvent struct {
	Kind   PresenceKind
	Room   RoomID
	Member Member
}

// LocalPresenceKind classifies changes of the local user's room presence.
type LocalPresenceKind int

const (
	LocalJoined LocalPresenceKind = iota
	LocalLeft
	LocalKicked
	LocalDropped
)

// DirectStatus is the point-to-point session status for a contact.
type DirectStatus int

const (
	DirectPlaintext DirectStatus = iota
	DirectEncrypted
	DirectFinished
)

// DirectPolicy is the point-to-point encryption policy for a contact.
type DirectPolicy struct {
	EnableManual bool
}

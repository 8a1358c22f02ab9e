package domain

import (
	interfaces "conclave/internal/domain/interfaces"
	types "conclave/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Address           = types.Address
	Fingerprint       = types.Fingerprint
	Petname           = types.Petname
	AccountID         = types.AccountID
	ProviderID        = types.ProviderID
	RoomID            = types.RoomID
	MessageID         = types.MessageID
	SessionID         = types.SessionID
	Identity          = types.Identity
	Member            = types.Member
	Contact           = types.Contact
	KeyVariant        = types.KeyVariant
	KeyPair           = types.KeyPair
	FingerprintRecord = types.FingerprintRecord
	SessionState      = types.SessionState
	SecurityLevel     = types.SecurityLevel
	StateChange       = types.StateChange
	SMPEventKind      = types.SMPEventKind
	SMPEvent          = types.SMPEvent
	NoticeKind        = types.NoticeKind
	Notice            = types.Notice
	Message           = types.Message
	EnvelopeKind      = types.EnvelopeKind
	Envelope          = types.Envelope
	DirectEventKind   = types.DirectEventKind
	DirectEvent       = types.DirectEvent
	RoomEventKind     = types.RoomEventKind
	RoomEvent         = types.RoomEvent
	PresenceKind      = types.PresenceKind
	PresenceEvent     = types.PresenceEvent
	LocalPresenceKind = types.LocalPresenceKind
	DirectStatus      = types.DirectStatus
	DirectPolicy      = types.DirectPolicy
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	ChatRoom        = interfaces.ChatRoom
	MultiUserChat   = interfaces.MultiUserChat
	DirectTransport = interfaces.DirectTransport
	Engine          = interfaces.Engine
	EngineHost      = interfaces.EngineHost
	EngineFactory   = interfaces.EngineFactory
	Codec           = interfaces.Codec
	DirectEngine    = interfaces.DirectEngine
	PropertyStore   = interfaces.PropertyStore
	TrustStore      = interfaces.TrustStore
	KeyManager      = interfaces.KeyManager
	KeyLoadResult   = interfaces.KeyLoadResult
	AsyncKeyLoader  = interfaces.AsyncKeyLoader
)

// Constants re-exported for callers that only import domain.
const (
	KeyVariantDirect = types.KeyVariantDirect
	KeyVariantGroup  = types.KeyVariantGroup

	StatePlaintext     = types.StatePlaintext
	StateAwaitingUsers = types.StateAwaitingUsers
	StateSetup         = types.StateSetup
	StateSecure        = types.StateSecure
	StateFinished      = types.StateFinished
	StateError         = types.StateError

	LevelPlaintext  = types.LevelPlaintext
	LevelUnverified = types.LevelUnverified
	LevelVerified   = types.LevelVerified

	SMPSecretRequested = types.SMPSecretRequested
	SMPVerified        = types.SMPVerified
	SMPUnverified      = types.SMPUnverified
	SMPAborted         = types.SMPAborted
	SMPFailed          = types.SMPFailed

	NoticeInfo    = types.NoticeInfo
	NoticeWarning = types.NoticeWarning
	NoticeError   = types.NoticeError

	EnvelopeContent = types.EnvelopeContent
	EnvelopeControl = types.EnvelopeControl

	DirectPending   = types.DirectPending
	DirectDelivered = types.DirectDelivered
	DirectReceived  = types.DirectReceived
	DirectFailed    = types.DirectFailed

	RoomPending   = types.RoomPending
	RoomDelivered = types.RoomDelivered
	RoomReceived  = types.RoomReceived

	MemberJoined = types.MemberJoined
	MemberLeft   = types.MemberLeft
	MemberKicked = types.MemberKicked
	MemberQuit   = types.MemberQuit

	LocalJoined  = types.LocalJoined
	LocalLeft    = types.LocalLeft
	LocalKicked  = types.LocalKicked
	LocalDropped = types.LocalDropped

	DirectPlaintext = types.DirectPlaintext
	DirectEncrypted = types.DirectEncrypted
	DirectFinished  = types.DirectFinished
)

// NewIdentity returns the identity for the given point-to-point address.
func NewIdentity(addr Address) Identity { return types.NewIdentity(addr) }

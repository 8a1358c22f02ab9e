package types

// Address is a participant's point-to-point protocol address.
type Address string

// String returns the string form of the address.
func (a Address) String() string { return string(a) }

// Fingerprint is a short, human-verifiable digest of a public key.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Petname is a user-assigned label attached to a fingerprint.
type Petname string

// String returns the string form of the petname.
func (p Petname) String() string { return string(p) }

// AccountID uniquely identifies a local account.
type AccountID string

// String returns the string form of the account identifier.
func (id AccountID) String() string { return string(id) }

// ProviderID identifies the transport provider an account is connected through.
type ProviderID string

// String returns the string form of the provider identifier.
func (id ProviderID) String() string { return string(id) }

// RoomID identifies a chat room within a provider.
type RoomID string

// String returns the string form of the room identifier.
func (id RoomID) String() string { return string(id) }

// MessageID is the transport-assigned unique identifier of a message.
type MessageID string

// String returns the string form of the message identifier.
func (id MessageID) String() string { return string(id) }

// SessionID identifies a multi-party session as encoded on the wire by the engine.
type SessionID string

// String returns the string form of the session identifier.
func (id SessionID) String() string { return string(id) }

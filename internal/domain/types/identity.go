package types

// Identity is the engine-stable handle of one multi-party participant. It is
// derived from the participant's point-to-point address and cannot be
// changed after construction. The zero value means "no identity".
type Identity struct {
	address Address
}

// NewIdentity returns the identity for the given point-to-point address.
func NewIdentity(addr Address) Identity { return Identity{address: addr} }

// Address returns the point-to-point address the identity was derived from.
func (id Identity) Address() Address { return id.address }

// IsZero reports whether id is the zero identity.
func (id Identity) IsZero() bool { return id.address == "" }

// String returns the string form of the identity.
func (id Identity) String() string { return string(id.address) }

// Member is a chat-room participant as seen by the room, keyed by nickname.
// Members are transient: the same nickname may leave and rejoin.
type Member struct {
	Nickname string `json:"nickname"`
}

// Contact is the point-to-point peer behind a room member.
type Contact struct {
	Address     Address    `json:"address"`
	DisplayName string     `json:"display_name"`
	Provider    ProviderID `json:"provider"`
}

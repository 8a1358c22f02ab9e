package interfaces

import domaintypes "conclave/internal/domain/types"

// Engine is the multi-party cryptographic session engine for one room. It
// owns key exchange, encryption and the SMP proof exchange; callers only
// feed it traffic and react to EngineHost callbacks.
type Engine interface {
	SessionID() domaintypes.SessionID
	Size() int

	AddUser(id domaintypes.Identity) error
	RemoveUser(id domaintypes.Identity) error

	// RemotePublicKey returns nil, nil while no key exchange has completed.
	RemotePublicKey(id domaintypes.Identity) ([]byte, error)

	InitSMP(id domaintypes.Identity, question, secret string) error
	RespondSMP(id domaintypes.Identity, question, secret string) error
	AbortSMP(id domaintypes.Identity) error

	BroadcastMessage(plaintext string) error
	HandleMessage(from domaintypes.Identity, text string) error
	HandleBroadcast(from domaintypes.Identity, text string) error

	Shutdown() error
}

// EngineHost receives engine callbacks. Callbacks may arrive on any goroutine.
type EngineHost interface {
	SendDirect(to domaintypes.Identity, payload string) error
	Broadcast(payload string) error
	DeliverBroadcast(from domaintypes.Identity, plaintext string)
	LocalKeyPair() (domaintypes.KeyPair, error)

	StateChanged(state domaintypes.SessionState)
	AskForSecret(from domaintypes.Identity, question string)
	SessionFinished(id domaintypes.Identity)
	UnrecoverableError(id domaintypes.Identity)
	RecoverableError(id domaintypes.Identity)
	SMPAborted(id domaintypes.Identity)
	SMPError(id domaintypes.Identity)
	Verify(id domaintypes.Identity, fp domaintypes.Fingerprint)
	Unverify(id domaintypes.Identity, fp domaintypes.Fingerprint)
	ReceivedUnsentMessage(from domaintypes.Identity)
	BroadcastToEmptySecureRoom()
}

// EngineFactory constructs an engine bound to host for the given local identity.
type EngineFactory func(
	host EngineHost,
	local domaintypes.Identity,
	roomLabel string,
) (Engine, error)

// Codec classifies message bodies without decrypting them. The wire format
// belongs to the engine, so this is supplied alongside the engine.
type Codec interface {
	Classify(body string) domaintypes.Envelope
}

// DirectEngine is the point-to-point encryption engine.
type DirectEngine interface {
	Policy(c domaintypes.Contact) domaintypes.DirectPolicy
	Status(c domaintypes.Contact) domaintypes.DirectStatus

	// IsInjected reports whether the engine itself injected message id.
	IsInjected(id domaintypes.MessageID) bool

	// TransformSending may split plaintext into several wire fragments.
	TransformSending(c domaintypes.Contact, plaintext string) ([]string, error)
	// TransformReceiving returns "" when the message was consumed by the engine.
	TransformReceiving(c domaintypes.Contact, text string) (string, error)
}

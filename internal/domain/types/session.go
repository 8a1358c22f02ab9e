package types

// SessionState is the multi-party session state reported by the engine.
type SessionState int

const (
	StatePlaintext SessionState = iota
	StateAwaitingUsers
	StateSetup
	StateSecure
	StateFinished
	StateError
)

var sessionStateNames = [...]string{
	StatePlaintext:     "PLAINTEXT",
	StateAwaitingUsers: "AWAITING_USERS",
	StateSetup:         "SETUP",
	StateSecure:        "SECURE",
	StateFinished:      "FINISHED",
	StateError:         "ERROR",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(sessionStateNames) {
		return "UNKNOWN"
	}
	return sessionStateNames[s]
}

// Terminal reports whether no further transitions are expected.
func (s SessionState) Terminal() bool {
	return s == StateFinished || s == StateError
}

// SecurityLevel summarises a room session for presentation.
type SecurityLevel int

const (
	// LevelPlaintext means the session is not (yet) secure.
	LevelPlaintext SecurityLevel = iota
	// LevelUnverified means the session is secure but some member is not authenticated.
	LevelUnverified
	// LevelVerified means the session is secure and every member is authenticated.
	LevelVerified
)

func (l SecurityLevel) String() string {
	switch l {
	case LevelUnverified:
		return "secure-unverified"
	case LevelVerified:
		return "secure-verified"
	default:
		return "plaintext"
	}
}

// StateChange is published by a session host on every engine state
// transition and whenever a member's authentication status may have changed.
type StateChange struct {
	Room             RoomID
	State            SessionState
	AllAuthenticated bool
	Level            SecurityLevel
}

// SMPEventKind classifies authentication events reported by the engine.
type SMPEventKind int

const (
	// SMPSecretRequested means a remote peer started SMP and asks for our answer.
	SMPSecretRequested SMPEventKind = iota
	// SMPVerified means the zero-knowledge comparison matched.
	SMPVerified
	// SMPUnverified means the comparison did not match.
	SMPUnverified
	// SMPAborted means either side aborted the exchange.
	SMPAborted
	// SMPFailed means the exchange broke down with a protocol error.
	SMPFailed
)

func (k SMPEventKind) String() string {
	switch k {
	case SMPSecretRequested:
		return "secret-requested"
	case SMPVerified:
		return "verified"
	case SMPUnverified:
		return "unverified"
	case SMPAborted:
		return "aborted"
	case SMPFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SMPEvent carries an authentication event for one remote participant.
type SMPEvent struct {
	Room        RoomID
	Kind        SMPEventKind
	Identity    Identity
	Member      Member
	Question    string
	Fingerprint Fingerprint
}

// NoticeKind classifies user-facing notices.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeWarning
	NoticeError
)

// Notice is a user-facing system message for a room.
type Notice struct {
	Room   RoomID
	Kind   NoticeKind
	Member Member
	Text   string
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"conclave/internal/crypto"
	"conclave/internal/domain"
	"conclave/internal/events"
	"conclave/internal/services/trust"
)

var (
	// ErrNoEngine is returned when the host runs without a session engine.
	ErrNoEngine = errors.New("no session engine")

	// ErrUnknownIdentity is returned for identities not tracked by the host.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrUnknownContact is returned when a member has no private contact.
	ErrUnknownContact = errors.New("member has no private contact")
)

// Verdict tells the transform layer what to do with a message event.
type Verdict int

const (
	// Pass hands the event on to the user interface.
	Pass Verdict = iota
	// Suppress drops the event; it was protocol traffic or a duplicate.
	Suppress
)

func (v Verdict) String() string {
	if v == Suppress {
		return "suppress"
	}
	return "pass"
}

// Config holds the collaborators of a Host.
type Config struct {
	Room    domain.ChatRoom
	Direct  domain.DirectTransport
	Factory domain.EngineFactory
	Codec   domain.Codec
	Trust   domain.TrustStore
	Keys    domain.KeyManager

	// Sink, when set, serializes every published event onto one goroutine.
	Sink          *events.Sink
	Logger        *zap.Logger
	DedupCapacity int
}

// Host owns the multi-party session of one room.
type Host struct {
	room   domain.ChatRoom
	direct domain.DirectTransport
	codec  domain.Codec
	trust  domain.TrustStore
	keys   domain.KeyManager
	log    *zap.Logger
	local  domain.Identity

	ctx    context.Context
	cancel context.CancelFunc

	// membership serializes AddMember and RemoveMember across the index
	// change and the engine call. Engine callbacks never take it.
	membership sync.Mutex

	mu              sync.Mutex
	engine          domain.Engine
	members         *memberIndex
	sent            *idSet // broadcasts we transmitted
	received        *idSet // plaintext events we synthesized
	fed             *idSet // broadcasts already handed to the engine
	sentDirect      *idSet // direct protocol messages we transmitted
	state           domain.SessionState
	degraded        bool
	pendingOutgoing bool
	closed          bool
	unsubscribe     []func()

	states  *events.Broker[domain.StateChange]
	smp     *events.Broker[domain.SMPEvent]
	notices *events.Broker[domain.Notice]
}

// New builds the host for cfg.Room.
//
// Steps:
//  1. Resolve the local identity from the private contact of the local nickname.
//  2. Construct the engine. A factory error leaves the host degraded and
//     engine-less; the failure is logged and published as a notice.
//  3. Subscribe to room presence and trust changes.
//  4. Add every current member except the local user.
func New(cfg Config) (*Host, error) {
	if cfg.Room == nil || cfg.Codec == nil || cfg.Trust == nil {
		return nil, errors.New("session: room, codec and trust store are required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	room := cfg.Room

	contact, ok := room.PrivateContact(room.LocalNickname())
	if !ok {
		return nil, fmt.Errorf("local nickname %q: %w", room.LocalNickname(), ErrUnknownContact)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		room:       room,
		direct:     cfg.Direct,
		codec:      cfg.Codec,
		trust:      cfg.Trust,
		keys:       cfg.Keys,
		log:        log.Named("session").With(zap.String("room", room.ID().String())),
		local:      domain.NewIdentity(contact.Address),
		ctx:        ctx,
		cancel:     cancel,
		members:    newMemberIndex(),
		sent:       newIDSet(cfg.DedupCapacity),
		received:   newIDSet(cfg.DedupCapacity),
		fed:        newIDSet(cfg.DedupCapacity),
		sentDirect: newIDSet(cfg.DedupCapacity),
		states:     events.NewBroker[domain.StateChange](cfg.Sink),
		smp:        events.NewBroker[domain.SMPEvent](cfg.Sink),
		notices:    events.NewBroker[domain.Notice](cfg.Sink),
	}

	if cfg.Factory == nil {
		h.fault("no session engine configured", ErrNoEngine)
	} else if eng, err := cfg.Factory(h, h.local, room.ID().String()); err != nil {
		h.fault("session engine unavailable", err)
	} else {
		h.mu.Lock()
		h.engine = eng
		h.mu.Unlock()
	}

	h.unsubscribe = append(h.unsubscribe,
		room.AddPresenceListener(h.onPresence),
		cfg.Trust.Subscribe(h.onTrustChanged),
	)

	for _, m := range room.Members() {
		if m.Nickname == room.LocalNickname() {
			continue
		}
		if err := h.AddMember(m); err != nil {
			h.log.Warn("add member", zap.String("member", m.Nickname), zap.Error(err))
		}
	}
	return h, nil
}

// Room returns the room this host serves.
func (h *Host) Room() domain.ChatRoom { return h.room }

// RoomID returns the room identifier.
func (h *Host) RoomID() domain.RoomID { return h.room.ID() }

// Provider returns the room's transport provider.
func (h *Host) Provider() domain.ProviderID { return h.room.Provider() }

// LocalIdentity returns the identity of the local user.
func (h *Host) LocalIdentity() domain.Identity { return h.local }

// SessionID returns the engine's session id, or "" without an engine.
func (h *Host) SessionID() domain.SessionID {
	if eng := h.engineRef(); eng != nil {
		return eng.SessionID()
	}
	return ""
}

// Degraded reports whether an engine fault has occurred.
func (h *Host) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded
}

// State returns the last state reported by the engine.
func (h *Host) State() domain.SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// HasPendingOutgoing reports whether a broadcast was made into an empty
// secure room and the session has not become secure again since.
func (h *Host) HasPendingOutgoing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pendingOutgoing
}

// AddMember registers member with the host and the engine. Re-adding a
// present member is a no-op. An engine failure keeps the mapping, marks the
// host degraded and is returned.
func (h *Host) AddMember(member domain.Member) error {
	if member.Nickname == h.room.LocalNickname() {
		return nil
	}
	contact, ok := h.room.PrivateContact(member.Nickname)
	if !ok {
		return fmt.Errorf("add %q: %w", member.Nickname, ErrUnknownContact)
	}
	id := domain.NewIdentity(contact.Address)
	if id == h.local {
		return fmt.Errorf("add %q: identity collides with the local user", member.Nickname)
	}

	h.membership.Lock()
	defer h.membership.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	if !h.members.insert(memberRecord{identity: id, contact: contact, member: member}) {
		h.mu.Unlock()
		return nil
	}
	eng := h.engine
	h.mu.Unlock()

	h.log.Debug("member added", zap.String("member", member.Nickname), zap.Stringer("identity", id))
	if eng == nil {
		return nil
	}
	if err := eng.AddUser(id); err != nil {
		h.fault(fmt.Sprintf("could not add %s to the secure session", member.Nickname), err)
		return fmt.Errorf("register %q: %w", member.Nickname, err)
	}
	return nil
}

// RemoveMember deregisters member from the engine, then drops it from the
// index. Unknown members are ignored.
func (h *Host) RemoveMember(member domain.Member) error {
	h.membership.Lock()
	defer h.membership.Unlock()

	h.mu.Lock()
	rec, ok := h.members.nickname(member.Nickname)
	eng := h.engine
	h.mu.Unlock()
	if !ok {
		return nil
	}

	var err error
	if eng != nil {
		if err = eng.RemoveUser(rec.identity); err != nil {
			h.fault(fmt.Sprintf("could not remove %s from the secure session", member.Nickname), err)
			err = fmt.Errorf("deregister %q: %w", member.Nickname, err)
		}
	}

	h.mu.Lock()
	if cur, ok := h.members.nickname(member.Nickname); ok && cur.identity == rec.identity {
		h.members.remove(member.Nickname)
	}
	h.mu.Unlock()

	h.log.Debug("member removed", zap.String("member", member.Nickname))
	return err
}

// Members returns the tracked remote members.
func (h *Host) Members() []domain.Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	recs := h.members.records()
	out := make([]domain.Member, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.member)
	}
	return out
}

// Identity returns the identity of a tracked member.
func (h *Host) Identity(member domain.Member) (domain.Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.members.nickname(member.Nickname)
	return rec.identity, ok
}

// Member returns the member behind a tracked identity.
func (h *Host) Member(id domain.Identity) (domain.Member, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.members.identity(id)
	return rec.member, ok
}

// Contact returns the private contact behind a tracked identity.
func (h *Host) Contact(id domain.Identity) (domain.Contact, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.members.identity(id)
	return rec.contact, ok
}

// IdentityForContact returns the identity tracked for a contact address.
func (h *Host) IdentityForContact(c domain.Contact) (domain.Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.members.address(c.Address)
	return rec.identity, ok
}

// SendDirect sends payload to id over the direct transport. The message id
// is recorded before transmission so the delivery echo is recognised.
func (h *Host) SendDirect(id domain.Identity, payload string) error {
	contact, ok := h.Contact(id)
	if !ok {
		return fmt.Errorf("send direct to %s: %w", id, ErrUnknownIdentity)
	}
	if h.direct == nil {
		return errors.New("send direct: no direct transport")
	}
	msg := h.direct.CreateMessage(payload)

	h.mu.Lock()
	h.sentDirect.add(msg.ID)
	h.mu.Unlock()

	h.log.Debug("direct send", zap.Stringer("to", id), zap.String("id", msg.ID.String()))
	return h.direct.SendInstantMessage(h.ctx, contact, msg)
}

// Broadcast sends payload to the room, recording its id before transmission.
func (h *Host) Broadcast(payload string) error {
	msg := h.room.CreateMessage(payload)

	h.mu.Lock()
	h.sent.add(msg.ID)
	h.mu.Unlock()

	h.log.Debug("broadcast", zap.String("id", msg.ID.String()))
	return h.room.SendMessage(h.ctx, msg)
}

// DeliverBroadcast surfaces plaintext the engine decrypted from source as a
// synthesized room event: delivered for the local user, received otherwise.
func (h *Host) DeliverBroadcast(source domain.Identity, plaintext string) {
	msg := h.room.CreateMessage(plaintext)

	h.mu.Lock()
	h.received.add(msg.ID)
	rec, known := h.members.identity(source)
	h.mu.Unlock()

	evt := domain.RoomEvent{
		Kind:      domain.RoomReceived,
		Room:      h.room.ID(),
		Message:   msg,
		Timestamp: time.Now(),
	}
	switch {
	case source == h.local:
		evt.Kind = domain.RoomDelivered
		evt.Member = domain.Member{Nickname: h.room.LocalNickname()}
	case known:
		evt.Member = rec.member
	default:
		h.log.Warn("plaintext from untracked identity", zap.Stringer("identity", source))
		evt.Member = domain.Member{Nickname: source.String()}
	}
	h.room.FireMessageEvent(evt)
}

// OnBroadcastPending decides the fate of an outgoing room message. Messages
// the host transmitted itself pass; anything else is user plaintext that is
// handed to the engine for encryption and suppressed.
func (h *Host) OnBroadcastPending(msg domain.Message) Verdict {
	h.mu.Lock()
	own := h.sent.contains(msg.ID)
	eng := h.engine
	h.mu.Unlock()

	if own {
		return Pass
	}
	if eng == nil {
		h.publishNotice(domain.NoticeError, domain.Member{}, "message not sent: no secure session")
		return Suppress
	}
	if err := eng.BroadcastMessage(msg.Body); err != nil {
		h.log.Warn("broadcast message", zap.Error(err))
		h.publishNotice(domain.NoticeError, domain.Member{}, "message not sent: "+err.Error())
	}
	return Suppress
}

// OnBroadcastReceived decides the fate of a broadcast received from member.
//
// Plaintext the host synthesized passes. Echoes of our own broadcasts and
// messages already handed to the engine are suppressed. Messages from
// untracked members pass unless they are control traffic. Everything else is
// fed to the engine as received from the member and suppressed.
func (h *Host) OnBroadcastReceived(member domain.Member, msg domain.Message) Verdict {
	h.mu.Lock()
	switch {
	case h.received.contains(msg.ID):
		h.mu.Unlock()
		return Pass
	case h.sent.contains(msg.ID), h.fed.contains(msg.ID):
		h.mu.Unlock()
		h.log.Debug("duplicate broadcast skipped", zap.String("id", msg.ID.String()))
		return Suppress
	}
	rec, known := h.members.nickname(member.Nickname)
	eng := h.engine
	if known && eng != nil {
		h.fed.add(msg.ID)
	}
	h.mu.Unlock()

	if !known || eng == nil {
		if h.codec.Classify(msg.Body).Control() {
			return Suppress
		}
		return Pass
	}
	if err := eng.HandleBroadcast(rec.identity, msg.Body); err != nil {
		h.log.Warn("handle broadcast", zap.String("member", member.Nickname), zap.Error(err))
	}
	return Suppress
}

// OnBroadcastDelivered decides the fate of the room's echo of a message we
// sent. Synthesized plaintext passes. Otherwise the broadcast is looped back
// into the engine as delivered by the local user, exactly once.
func (h *Host) OnBroadcastDelivered(msg domain.Message) Verdict {
	h.mu.Lock()
	if h.received.contains(msg.ID) {
		h.mu.Unlock()
		return Pass
	}
	if h.fed.contains(msg.ID) {
		h.mu.Unlock()
		return Suppress
	}
	eng := h.engine
	if eng != nil {
		h.fed.add(msg.ID)
	}
	h.mu.Unlock()

	if eng == nil {
		if h.codec.Classify(msg.Body).Control() {
			return Suppress
		}
		return Pass
	}
	if err := eng.HandleBroadcast(h.local, msg.Body); err != nil {
		h.log.Warn("loop back broadcast", zap.Error(err))
	}
	return Suppress
}

// OnDirectReceived feeds direct protocol traffic from contact to the engine.
func (h *Host) OnDirectReceived(contact domain.Contact, body string) error {
	id, ok := h.IdentityForContact(contact)
	if !ok {
		return fmt.Errorf("direct from %s: %w", contact.Address, ErrUnknownIdentity)
	}
	eng := h.engineRef()
	if eng == nil {
		return ErrNoEngine
	}
	return eng.HandleMessage(id, body)
}

// SentBroadcast reports whether the host transmitted broadcast id.
func (h *Host) SentBroadcast(id domain.MessageID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sent.contains(id)
}

// ReceivedBroadcast reports whether the host synthesized message id.
func (h *Host) ReceivedBroadcast(id domain.MessageID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received.contains(id)
}

// SentDirect reports whether the host transmitted direct message id.
func (h *Host) SentDirect(id domain.MessageID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sentDirect.contains(id)
}

// RemoteFingerprint returns the fingerprint of the key the engine currently
// holds for member. It is absent until a key exchange has completed.
func (h *Host) RemoteFingerprint(member domain.Member) (domain.Fingerprint, bool) {
	id, ok := h.Identity(member)
	if !ok {
		return "", false
	}
	return h.fingerprintOf(id)
}

func (h *Host) fingerprintOf(id domain.Identity) (domain.Fingerprint, bool) {
	eng := h.engineRef()
	if eng == nil {
		return "", false
	}
	pub, err := eng.RemotePublicKey(id)
	if err != nil {
		h.log.Warn("remote public key", zap.Stringer("identity", id), zap.Error(err))
		return "", false
	}
	fp := crypto.Fingerprint(pub)
	return fp, fp != ""
}

// LocalFingerprint returns the fingerprint of the local group key.
func (h *Host) LocalFingerprint() (domain.Fingerprint, bool, error) {
	if h.keys == nil {
		return "", false, nil
	}
	return h.keys.LocalFingerprint(h.room.Account(), domain.KeyVariantGroup)
}

// IsAuthenticated reports whether member's live fingerprint is verified.
func (h *Host) IsAuthenticated(member domain.Member) bool {
	fp, ok := h.RemoteFingerprint(member)
	if !ok {
		return false
	}
	return h.verified(fp)
}

func (h *Host) verified(fp domain.Fingerprint) bool {
	ok, err := h.trust.IsVerified("", fp)
	if err != nil {
		h.log.Warn("trust lookup", zap.String("fingerprint", fp.String()), zap.Error(err))
		return false
	}
	return ok
}

// AllAuthenticated reports whether every tracked member is authenticated.
// It is true for an empty room.
func (h *Host) AllAuthenticated() bool {
	for _, m := range h.Members() {
		if !h.IsAuthenticated(m) {
			return false
		}
	}
	return true
}

// SecurityLevel summarises the session for presentation.
func (h *Host) SecurityLevel() domain.SecurityLevel {
	if h.State() != domain.StateSecure {
		return domain.LevelPlaintext
	}
	if h.AllAuthenticated() {
		return domain.LevelVerified
	}
	return domain.LevelUnverified
}

// InitSMP starts authentication of id.
func (h *Host) InitSMP(id domain.Identity, question, secret string) error {
	eng, err := h.smpTarget(id)
	if err != nil {
		return err
	}
	return eng.InitSMP(id, question, secret)
}

// RespondSMP answers an authentication request from id.
func (h *Host) RespondSMP(id domain.Identity, question, secret string) error {
	eng, err := h.smpTarget(id)
	if err != nil {
		return err
	}
	return eng.RespondSMP(id, question, secret)
}

// AbortSMP aborts authentication with id.
func (h *Host) AbortSMP(id domain.Identity) error {
	eng, err := h.smpTarget(id)
	if err != nil {
		return err
	}
	return eng.AbortSMP(id)
}

func (h *Host) smpTarget(id domain.Identity) (domain.Engine, error) {
	if _, ok := h.Member(id); !ok {
		return nil, fmt.Errorf("smp with %s: %w", id, ErrUnknownIdentity)
	}
	eng := h.engineRef()
	if eng == nil {
		return nil, ErrNoEngine
	}
	return eng, nil
}

// SubscribeState registers fn for state changes.
func (h *Host) SubscribeState(fn func(domain.StateChange)) (cancel func()) {
	return h.states.Subscribe(fn)
}

// SubscribeSMP registers fn for authentication events.
func (h *Host) SubscribeSMP(fn func(domain.SMPEvent)) (cancel func()) {
	return h.smp.Subscribe(fn)
}

// SubscribeNotices registers fn for user-facing notices.
func (h *Host) SubscribeNotices(fn func(domain.Notice)) (cancel func()) {
	return h.notices.Subscribe(fn)
}

// Close detaches from the room and shuts the engine down. It is idempotent.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	eng := h.engine
	unsub := h.unsubscribe
	h.unsubscribe = nil
	h.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
	var err error
	if eng != nil {
		err = eng.Shutdown()
	}
	h.cancel()
	h.log.Debug("host closed")
	return err
}

func (h *Host) engineRef() domain.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine
}

func (h *Host) onPresence(evt domain.PresenceEvent) {
	if evt.Member.Nickname == h.room.LocalNickname() {
		return
	}
	var err error
	switch evt.Kind {
	case domain.MemberJoined:
		err = h.AddMember(evt.Member)
	case domain.MemberLeft, domain.MemberKicked, domain.MemberQuit:
		err = h.RemoveMember(evt.Member)
	}
	if err != nil {
		h.log.Warn("presence change", zap.String("member", evt.Member.Nickname), zap.Error(err))
	}
}

// onTrustChanged republishes the state when fp belongs to a tracked member.
func (h *Host) onTrustChanged(fp domain.Fingerprint) {
	h.mu.Lock()
	recs := h.members.records()
	h.mu.Unlock()

	for _, r := range recs {
		if got, ok := h.fingerprintOf(r.identity); ok && got == fp {
			h.publishState()
			return
		}
	}
}

func (h *Host) publishState() {
	state := h.State()
	all := h.AllAuthenticated()
	level := domain.LevelPlaintext
	if state == domain.StateSecure {
		level = domain.LevelUnverified
		if all {
			level = domain.LevelVerified
		}
	}
	h.states.Publish(domain.StateChange{
		Room:             h.room.ID(),
		State:            state,
		AllAuthenticated: all,
		Level:            level,
	})
}

func (h *Host) publishNotice(kind domain.NoticeKind, member domain.Member, text string) {
	h.notices.Publish(domain.Notice{Room: h.room.ID(), Kind: kind, Member: member, Text: text})
}

// fault records an engine failure.
func (h *Host) fault(text string, err error) {
	h.mu.Lock()
	h.degraded = true
	h.mu.Unlock()

	h.log.Warn(text, zap.Error(err))
	h.publishNotice(domain.NoticeError, domain.Member{}, text)
}

// localKeyPair loads the group key pair, generating it on first use.
func (h *Host) localKeyPair() (domain.KeyPair, error) {
	if h.keys == nil {
		return domain.KeyPair{}, errors.New("no key manager configured")
	}
	account := h.room.Account()
	pair, ok, err := h.keys.Load(account, domain.KeyVariantGroup)
	if err != nil || ok {
		return pair, err
	}
	pair, err = h.keys.Generate(account, domain.KeyVariantGroup)
	if errors.Is(err, trust.ErrKeyExists) {
		pair, _, err = h.keys.Load(account, domain.KeyVariantGroup)
	}
	return pair, err
}

var _ domain.EngineHost = (*Host)(nil)

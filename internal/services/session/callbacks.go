package session

import (
	"fmt"

	"go.uber.org/zap"

	"conclave/internal/domain"
)

// Engine callbacks. They may arrive on any goroutine, including from inside
// a call the host made into the engine, so none of them holds h.mu while
// publishing.

// LocalKeyPair returns the account's group key pair, generating it
// explicitly on first use.
func (h *Host) LocalKeyPair() (domain.KeyPair, error) {
	pair, err := h.localKeyPair()
	if err != nil {
		h.log.Error("local key pair", zap.Error(err))
	}
	return pair, err
}

// StateChanged records the engine state and publishes a StateChange.
func (h *Host) StateChanged(state domain.SessionState) {
	h.mu.Lock()
	h.state = state
	if state == domain.StateSecure {
		h.pendingOutgoing = false
	}
	h.mu.Unlock()

	h.log.Debug("state changed", zap.Stringer("state", state))
	h.publishState()
}

// AskForSecret publishes an SMP request from id.
func (h *Host) AskForSecret(id domain.Identity, question string) {
	h.publishSMP(domain.SMPSecretRequested, id, question, "")
}

// SMPAborted publishes that id's SMP exchange was aborted.
func (h *Host) SMPAborted(id domain.Identity) {
	h.publishSMP(domain.SMPAborted, id, "", "")
}

// SMPError publishes that id's SMP exchange failed with a protocol error.
func (h *Host) SMPError(id domain.Identity) {
	h.publishSMP(domain.SMPFailed, id, "", "")
}

// Verify publishes a successful SMP verdict for id's fingerprint fp.
func (h *Host) Verify(id domain.Identity, fp domain.Fingerprint) {
	h.publishSMP(domain.SMPVerified, id, "", fp)
}

// Unverify publishes a failed SMP comparison for id's fingerprint fp.
func (h *Host) Unverify(id domain.Identity, fp domain.Fingerprint) {
	h.publishSMP(domain.SMPUnverified, id, "", fp)
}

// SessionFinished tells the user id left the secure session.
func (h *Host) SessionFinished(id domain.Identity) {
	m := h.memberOrAddress(id)
	h.publishNotice(domain.NoticeInfo, m, fmt.Sprintf("%s has ended the secure session", m.Nickname))
}

// UnrecoverableError reports a fatal session fault with id.
func (h *Host) UnrecoverableError(id domain.Identity) {
	m := h.memberOrAddress(id)
	h.log.Warn("unrecoverable session error", zap.Stringer("identity", id))
	h.publishNotice(domain.NoticeError, m,
		fmt.Sprintf("unrecoverable error in the secure session with %s", m.Nickname))
}

// RecoverableError reports a session fault with id the engine recovered from.
func (h *Host) RecoverableError(id domain.Identity) {
	m := h.memberOrAddress(id)
	h.publishNotice(domain.NoticeWarning, m,
		fmt.Sprintf("recoverable error in the secure session with %s", m.Nickname))
}

// ReceivedUnsentMessage warns that a message arrived before the session was secure.
func (h *Host) ReceivedUnsentMessage(from domain.Identity) {
	m := h.memberOrAddress(from)
	h.publishNotice(domain.NoticeWarning, m,
		fmt.Sprintf("%s sent a message before the session was secure; it was not shown", m.Nickname))
}

// BroadcastToEmptySecureRoom marks outgoing traffic as pending until the
// session becomes secure again.
func (h *Host) BroadcastToEmptySecureRoom() {
	h.mu.Lock()
	h.pendingOutgoing = true
	h.mu.Unlock()

	h.publishNotice(domain.NoticeInfo, domain.Member{},
		"message queued until another member joins the secure session")
	h.publishState()
}

func (h *Host) publishSMP(kind domain.SMPEventKind, id domain.Identity, question string, fp domain.Fingerprint) {
	member, ok := h.Member(id)
	if !ok {
		h.log.Warn("smp event for untracked identity",
			zap.Stringer("kind", kind), zap.Stringer("identity", id))
		return
	}
	if fp == "" {
		fp, _ = h.fingerprintOf(id)
	}
	h.log.Debug("smp event", zap.Stringer("kind", kind), zap.String("member", member.Nickname))
	h.smp.Publish(domain.SMPEvent{
		Room:        h.room.ID(),
		Kind:        kind,
		Identity:    id,
		Member:      member,
		Question:    question,
		Fingerprint: fp,
	})
}

func (h *Host) memberOrAddress(id domain.Identity) domain.Member {
	if m, ok := h.Member(id); ok {
		return m
	}
	return domain.Member{Nickname: id.String()}
}

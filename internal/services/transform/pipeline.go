package transform

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"conclave/internal/domain"
	"conclave/internal/services/session"
)

// Hosts resolves session hosts. *registry.Registry implements it.
type Hosts interface {
	Host(roomID domain.RoomID) (*session.Host, bool)
	HostForSession(provider domain.ProviderID, sessionID domain.SessionID) (*session.Host, bool)
}

// Pipeline applies the transform rules to direct and room events.
type Pipeline struct {
	hosts  Hosts
	direct domain.DirectEngine
	codec  domain.Codec
	log    *zap.Logger
}

// New returns a Pipeline. A nil direct engine leaves point-to-point
// messages untouched apart from multi-party protocol traffic.
func New(hosts Hosts, direct domain.DirectEngine, codec domain.Codec, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{hosts: hosts, direct: direct, codec: codec, log: log.Named("transform")}
}

// DirectPending transforms an outgoing direct message into the events that
// should actually be sent. An empty result means nothing is sent.
//
// Steps:
//  1. Multi-party protocol traffic the owning host sent passes, flagged encrypted.
//  2. Contacts without encryption pass, as do engine-injected messages.
//  3. The engine transforms the body. Empty fragments are dropped and no
//     output sends nothing. An unchanged single fragment passes; otherwise
//     each fragment becomes a new event.
func (p *Pipeline) DirectPending(evt domain.DirectEvent) []domain.DirectEvent {
	if h, ok := p.sessionHost(evt.Provider, evt.Message.Body); ok && h.SentDirect(evt.Message.ID) {
		evt.Encrypted = true
		return []domain.DirectEvent{evt}
	}
	if !p.encrypting(evt.Contact) || p.direct.IsInjected(evt.Message.ID) {
		return []domain.DirectEvent{evt}
	}

	fragments, err := p.direct.TransformSending(evt.Contact, evt.Message.Body)
	if err != nil {
		p.log.Warn("transform sending", zap.String("contact", evt.Contact.Address.String()), zap.Error(err))
		return nil
	}
	fragments = slices.DeleteFunc(fragments, func(f string) bool { return f == "" })
	if len(fragments) == 0 {
		return nil
	}
	if len(fragments) == 1 && fragments[0] == evt.Message.Body {
		return []domain.DirectEvent{evt}
	}

	out := make([]domain.DirectEvent, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, domain.DirectEvent{
			Kind:     domain.DirectPending,
			Provider: evt.Provider,
			Contact:  evt.Contact,
			Message: domain.Message{
				ID:          domain.MessageID(uuid.NewString()),
				Body:        f,
				ContentType: evt.Message.ContentType,
			},
			Timestamp: evt.Timestamp,
			Encrypted: p.codec.Classify(f).Encoded,
		})
	}
	return out
}

// DirectReceived transforms an incoming direct message. The bool is false
// when the event must not reach the user.
func (p *Pipeline) DirectReceived(evt domain.DirectEvent) (domain.DirectEvent, bool) {
	env := p.codec.Classify(evt.Message.Body)
	if env.Control() && env.Session != "" {
		h, ok := p.hosts.HostForSession(evt.Provider, env.Session)
		if !ok {
			p.log.Debug("protocol message for unknown session", zap.String("session", env.Session.String()))
			return evt, true
		}
		if err := h.OnDirectReceived(evt.Contact, evt.Message.Body); err != nil {
			p.log.Warn("direct protocol message",
				zap.String("contact", evt.Contact.Address.String()), zap.Error(err))
		}
		return evt, false
	}
	if p.direct == nil {
		return evt, !env.Control()
	}

	text, err := p.direct.TransformReceiving(evt.Contact, evt.Message.Body)
	if err != nil {
		p.log.Warn("transform receiving", zap.String("contact", evt.Contact.Address.String()), zap.Error(err))
		return evt, false
	}
	if text == "" {
		return evt, false
	}
	if text != evt.Message.Body {
		evt.Message.Body = text
		evt.Encrypted = true
	}
	return evt, true
}

// DirectDelivered filters delivery confirmations of direct messages.
func (p *Pipeline) DirectDelivered(evt domain.DirectEvent) (domain.DirectEvent, bool) {
	if h, ok := p.sessionHost(evt.Provider, evt.Message.Body); ok && h.SentDirect(evt.Message.ID) {
		return evt, false
	}
	if !p.encrypting(evt.Contact) {
		return evt, true
	}
	return evt, !p.direct.IsInjected(evt.Message.ID)
}

// DirectFailed passes delivery failures unchanged; nothing is retried here.
func (p *Pipeline) DirectFailed(evt domain.DirectEvent) (domain.DirectEvent, bool) {
	return evt, true
}

// RoomPending filters an outgoing room message. User text in a room with a
// session is handed to the engine and suppressed.
func (p *Pipeline) RoomPending(evt domain.RoomEvent) (domain.RoomEvent, bool) {
	return p.room(evt, func(h *session.Host) session.Verdict {
		return h.OnBroadcastPending(evt.Message)
	})
}

// RoomReceived filters a room message received from another member.
func (p *Pipeline) RoomReceived(evt domain.RoomEvent) (domain.RoomEvent, bool) {
	return p.room(evt, func(h *session.Host) session.Verdict {
		return h.OnBroadcastReceived(evt.Member, evt.Message)
	})
}

// RoomDelivered filters the room's confirmation of a message we sent.
func (p *Pipeline) RoomDelivered(evt domain.RoomEvent) (domain.RoomEvent, bool) {
	return p.room(evt, func(h *session.Host) session.Verdict {
		return h.OnBroadcastDelivered(evt.Message)
	})
}

func (p *Pipeline) room(evt domain.RoomEvent, verdict func(*session.Host) session.Verdict) (domain.RoomEvent, bool) {
	if evt.System {
		return evt, true
	}
	control := p.codec.Classify(evt.Message.Body).Control()
	if evt.History && control {
		return evt, false
	}
	h, ok := p.hosts.Host(evt.Room)
	if !ok {
		return evt, !control
	}
	return evt, verdict(h) == session.Pass
}

// SendRoom runs text through RoomPending and sends it when it passes.
func (p *Pipeline) SendRoom(ctx context.Context, room domain.ChatRoom, text string) error {
	evt := domain.RoomEvent{
		Kind:      domain.RoomPending,
		Room:      room.ID(),
		Member:    domain.Member{Nickname: room.LocalNickname()},
		Message:   room.CreateMessage(text),
		Timestamp: time.Now(),
	}
	if _, ok := p.RoomPending(evt); !ok {
		return nil
	}
	return room.SendMessage(ctx, evt.Message)
}

// SendDirect runs text through DirectPending and sends every resulting
// fragment in order. The first transport error stops the sequence and is
// reported through DirectFailed as well as returned.
func (p *Pipeline) SendDirect(
	ctx context.Context,
	transport domain.DirectTransport,
	to domain.Contact,
	text string,
) error {
	evt := domain.DirectEvent{
		Kind:      domain.DirectPending,
		Provider:  transport.Provider(),
		Contact:   to,
		Message:   transport.CreateMessage(text),
		Timestamp: time.Now(),
	}
	for _, out := range p.DirectPending(evt) {
		if err := transport.SendInstantMessage(ctx, to, out.Message); err != nil {
			out.Kind = domain.DirectFailed
			out.Reason = err.Error()
			p.DirectFailed(out)
			return fmt.Errorf("send to %s: %w", to.Address, err)
		}
	}
	return nil
}

// RoomListener wraps next so it only sees received and delivered room
// events that pass the pipeline.
func (p *Pipeline) RoomListener(next func(domain.RoomEvent)) func(domain.RoomEvent) {
	return func(evt domain.RoomEvent) {
		var ok bool
		switch evt.Kind {
		case domain.RoomReceived:
			evt, ok = p.RoomReceived(evt)
		case domain.RoomDelivered:
			evt, ok = p.RoomDelivered(evt)
		case domain.RoomPending:
			evt, ok = p.RoomPending(evt)
		}
		if ok && next != nil {
			next(evt)
		}
	}
}

// DirectListener wraps next so it only sees direct events that pass the
// pipeline.
func (p *Pipeline) DirectListener(next func(domain.DirectEvent)) func(domain.DirectEvent) {
	return func(evt domain.DirectEvent) {
		var ok bool
		switch evt.Kind {
		case domain.DirectReceived:
			evt, ok = p.DirectReceived(evt)
		case domain.DirectDelivered:
			evt, ok = p.DirectDelivered(evt)
		case domain.DirectFailed:
			evt, ok = p.DirectFailed(evt)
		}
		if ok && next != nil {
			next(evt)
		}
	}
}

func (p *Pipeline) sessionHost(provider domain.ProviderID, body string) (*session.Host, bool) {
	env := p.codec.Classify(body)
	if !env.Control() || env.Session == "" {
		return nil, false
	}
	return p.hosts.HostForSession(provider, env.Session)
}

// encrypting reports whether direct messages to c go through the engine:
// manual encryption is enabled or a session is (or was) encrypted.
func (p *Pipeline) encrypting(c domain.Contact) bool {
	if p.direct == nil {
		return false
	}
	if p.direct.Policy(c).EnableManual {
		return true
	}
	switch p.direct.Status(c) {
	case domain.DirectEncrypted, domain.DirectFinished:
		return true
	}
	return false
}

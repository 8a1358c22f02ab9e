package registry

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"conclave/internal/domain"
	"conclave/internal/events"
	"conclave/internal/services/session"
)

// ErrClosed is returned by Join after Close.
var ErrClosed = errors.New("registry closed")

// HostEventKind tells whether a host appeared or went away.
type HostEventKind int

const (
	HostAdded HostEventKind = iota
	HostRemoved
)

func (k HostEventKind) String() string {
	if k == HostRemoved {
		return "removed"
	}
	return "added"
}

// HostEvent is published after a host is inserted or removed.
type HostEvent struct {
	Kind HostEventKind
	Host *session.Host
}

// Registry maps room ids to their session hosts.
type Registry struct {
	template session.Config
	log      *zap.Logger

	hosts     *xsync.Map[domain.RoomID, *session.Host]
	providers *xsync.Map[domain.ProviderID, func()]
	changes   *events.Broker[HostEvent]
	closed    atomic.Bool
}

// New returns a registry that builds hosts from template. The template's
// Room is ignored; every other field is shared by all hosts.
func New(template session.Config) *Registry {
	log := template.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		template:  template,
		log:       log.Named("registry"),
		hosts:     xsync.NewMap[domain.RoomID, *session.Host](),
		providers: xsync.NewMap[domain.ProviderID, func()](),
		changes:   events.NewBroker[HostEvent](nil),
	}
}

// Join returns the host for room, creating it on first join. The host is
// inserted before HostAdded is published.
func (r *Registry) Join(room domain.ChatRoom) (*session.Host, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if h, ok := r.hosts.Load(room.ID()); ok {
		return h, nil
	}

	cfg := r.template
	cfg.Room = room
	h, err := session.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", room.ID(), err)
	}

	actual, loaded := r.hosts.LoadOrStore(room.ID(), h)
	if loaded {
		// Lost a concurrent join for the same room.
		_ = h.Close()
		return actual, nil
	}
	r.log.Info("room joined",
		zap.String("room", room.ID().String()),
		zap.String("provider", room.Provider().String()),
		zap.Bool("degraded", h.Degraded()))
	r.changes.Publish(HostEvent{Kind: HostAdded, Host: h})
	return h, nil
}

// Leave removes and closes the host for roomID. Unknown rooms are ignored.
func (r *Registry) Leave(roomID domain.RoomID) {
	h, ok := r.hosts.LoadAndDelete(roomID)
	if !ok {
		return
	}
	if err := h.Close(); err != nil {
		r.log.Warn("close host", zap.String("room", roomID.String()), zap.Error(err))
	}
	r.log.Info("room left", zap.String("room", roomID.String()))
	r.changes.Publish(HostEvent{Kind: HostRemoved, Host: h})
}

// Host returns the host for roomID.
func (r *Registry) Host(roomID domain.RoomID) (*session.Host, bool) {
	return r.hosts.Load(roomID)
}

// HostForSession returns the host on provider whose engine owns sessionID.
func (r *Registry) HostForSession(provider domain.ProviderID, sessionID domain.SessionID) (*session.Host, bool) {
	if sessionID == "" {
		return nil, false
	}
	var found *session.Host
	r.hosts.Range(func(_ domain.RoomID, h *session.Host) bool {
		if h.Provider() == provider && h.SessionID() == sessionID {
			found = h
			return false
		}
		return true
	})
	return found, found != nil
}

// Hosts returns a snapshot of every registered host.
func (r *Registry) Hosts() []*session.Host {
	out := make([]*session.Host, 0, r.hosts.Size())
	r.hosts.Range(func(_ domain.RoomID, h *session.Host) bool {
		out = append(out, h)
		return true
	})
	return out
}

// HandleLocalPresence reacts to the local user's own presence in room.
func (r *Registry) HandleLocalPresence(kind domain.LocalPresenceKind, room domain.ChatRoom) {
	switch kind {
	case domain.LocalJoined:
		if _, err := r.Join(room); err != nil {
			r.log.Error("join room", zap.String("room", room.ID().String()), zap.Error(err))
		}
	case domain.LocalLeft, domain.LocalKicked, domain.LocalDropped:
		r.Leave(room.ID())
	}
}

// AddProvider starts following muc's local presence and joins every room
// it is already in. Adding a provider twice is a no-op.
func (r *Registry) AddProvider(muc domain.MultiUserChat) {
	var added bool
	r.providers.Compute(muc.Provider(), func(old func(), loaded bool) (func(), xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		added = true
		return muc.AddLocalPresenceListener(r.HandleLocalPresence), xsync.UpdateOp
	})
	if !added {
		return
	}
	r.log.Debug("provider added", zap.String("provider", muc.Provider().String()))
	for _, room := range muc.JoinedRooms() {
		r.HandleLocalPresence(domain.LocalJoined, room)
	}
}

// RemoveProvider stops following provider. Its hosts stay registered until
// their rooms are left.
func (r *Registry) RemoveProvider(provider domain.ProviderID) {
	if cancel, ok := r.providers.LoadAndDelete(provider); ok {
		cancel()
	}
}

// SubscribeHosts registers fn for HostAdded and HostRemoved events. They are
// delivered synchronously on the goroutine that changed the registry.
func (r *Registry) SubscribeHosts(fn func(HostEvent)) (cancel func()) {
	return r.changes.Subscribe(fn)
}

// Len returns the number of registered hosts.
func (r *Registry) Len() int { return r.hosts.Size() }

// Close stops following every provider and closes every host.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.providers.Range(func(p domain.ProviderID, _ func()) bool {
		r.RemoveProvider(p)
		return true
	})
	var errs []error
	r.hosts.Range(func(id domain.RoomID, _ *session.Host) bool {
		if h, ok := r.hosts.LoadAndDelete(id); ok {
			if err := h.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", id, err))
			}
			r.changes.Publish(HostEvent{Kind: HostRemoved, Host: h})
		}
		return true
	})
	return errors.Join(errs...)
}

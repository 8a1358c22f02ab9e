package auth

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"conclave/internal/domain"
	"conclave/internal/events"
)

var (
	// ErrBusy is returned by Start while the peer's own request is pending.
	ErrBusy = errors.New("authentication already in progress")

	// ErrUnknownMember is returned by Start for members the host does not track.
	ErrUnknownMember = errors.New("member not in session")
)

type flowKey struct {
	room     domain.RoomID
	identity domain.Identity
}

// Manager owns the pending workflows of every watched host.
type Manager struct {
	trust domain.TrustStore
	log   *zap.Logger

	flows    *xsync.Map[flowKey, *Workflow]
	watches  *xsync.Map[domain.RoomID, func()]
	requests *events.Broker[*Workflow]
	results  *events.Broker[Result]
}

// NewManager returns a Manager recording verdicts in trust. A non-nil sink
// serializes request and result notifications.
func NewManager(trust domain.TrustStore, sink *events.Sink, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		trust:    trust,
		log:      log.Named("auth"),
		flows:    xsync.NewMap[flowKey, *Workflow](),
		watches:  xsync.NewMap[domain.RoomID, func()](),
		requests: events.NewBroker[*Workflow](sink),
		results:  events.NewBroker[Result](sink),
	}
}

// Start returns the initiator workflow for member, reusing a pending one.
// A pending responder workflow for the same peer yields ErrBusy.
func (m *Manager) Start(host Host, member domain.Member) (*Workflow, error) {
	id, ok := host.Identity(member)
	if !ok {
		return nil, fmt.Errorf("%s: %w", member.Nickname, ErrUnknownMember)
	}
	key := flowKey{room: host.RoomID(), identity: id}

	var (
		w   *Workflow
		err error
	)
	m.flows.Compute(key, func(old *Workflow, loaded bool) (*Workflow, xsync.ComputeOp) {
		if loaded && old.Outcome() == Pending {
			if old.Role() == Responder {
				err = fmt.Errorf("%s: %w", member.Nickname, ErrBusy)
				return old, xsync.CancelOp
			}
			w = old
			return old, xsync.CancelOp
		}
		w = newWorkflow(m, host, id, member, Initiator)
		return w, xsync.UpdateOp
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Pending returns the pending workflow for identity in room.
func (m *Manager) Pending(room domain.RoomID, id domain.Identity) (*Workflow, bool) {
	w, ok := m.flows.Load(flowKey{room: room, identity: id})
	if !ok || w.Outcome() != Pending {
		return nil, false
	}
	return w, true
}

// SubscribeRequests registers fn for responder workflows created when a
// peer asks for our secret.
func (m *Manager) SubscribeRequests(fn func(*Workflow)) (cancel func()) {
	return m.requests.Subscribe(fn)
}

// SubscribeResults registers fn for terminal workflow results.
func (m *Manager) SubscribeResults(fn func(Result)) (cancel func()) {
	return m.results.Subscribe(fn)
}

// Watch follows host's SMP events until Unwatch or Close. Watching a room
// twice is a no-op.
func (m *Manager) Watch(host Host) {
	room := host.RoomID()
	m.watches.Compute(room, func(old func(), loaded bool) (func(), xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		return host.SubscribeSMP(func(evt domain.SMPEvent) { m.onSMP(host, evt) }), xsync.UpdateOp
	})
}

// Unwatch stops following room and ends its pending workflows with
// ErrHostClosed. The engine is not contacted; its session is gone.
func (m *Manager) Unwatch(room domain.RoomID) {
	if cancel, ok := m.watches.LoadAndDelete(room); ok {
		cancel()
	}
	m.flows.Range(func(k flowKey, w *Workflow) bool {
		if k.room == room {
			w.finish(Abort, "", ErrHostClosed)
		}
		return true
	})
}

// Close stops watching every host and aborts every pending workflow.
func (m *Manager) Close() error {
	m.watches.Range(func(room domain.RoomID, _ func()) bool {
		if cancel, ok := m.watches.LoadAndDelete(room); ok {
			cancel()
		}
		return true
	})
	var errs []error
	m.flows.Range(func(_ flowKey, w *Workflow) bool {
		if err := w.Abort(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

func (m *Manager) onSMP(host Host, evt domain.SMPEvent) {
	key := flowKey{room: evt.Room, identity: evt.Identity}

	if evt.Kind == domain.SMPSecretRequested {
		m.request(host, key, evt)
		return
	}
	if w, ok := m.flows.Load(key); ok {
		w.handle(evt)
		return
	}

	// A verdict without a workflow still records the comparison.
	switch evt.Kind {
	case domain.SMPVerified, domain.SMPUnverified:
		if evt.Fingerprint == "" {
			return
		}
		verified := evt.Kind == domain.SMPVerified
		if err := m.trust.SetVerified("", evt.Fingerprint, verified); err != nil {
			m.log.Error("record verdict", zap.String("fingerprint", evt.Fingerprint.String()), zap.Error(err))
		}
		m.log.Info("verdict without workflow",
			zap.String("member", evt.Member.Nickname), zap.Bool("verified", verified))
	}
}

func (m *Manager) request(host Host, key flowKey, evt domain.SMPEvent) {
	var created *Workflow
	m.flows.Compute(key, func(old *Workflow, loaded bool) (*Workflow, xsync.ComputeOp) {
		if loaded && old.Outcome() == Pending {
			return old, xsync.CancelOp
		}
		created = newWorkflow(m, host, evt.Identity, evt.Member, Responder)
		created.question = evt.Question
		return created, xsync.UpdateOp
	})
	if created == nil {
		m.log.Warn("secret request while authentication is pending",
			zap.String("room", evt.Room.String()), zap.String("member", evt.Member.Nickname))
		return
	}
	m.log.Debug("secret requested", zap.String("member", evt.Member.Nickname))
	m.requests.Publish(created)
}

// finished drops w from the table and publishes its result.
func (m *Manager) finished(w *Workflow, res Result) {
	key := flowKey{room: res.Room, identity: res.Identity}
	m.flows.Compute(key, func(old *Workflow, loaded bool) (*Workflow, xsync.ComputeOp) {
		if loaded && old == w {
			return nil, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
	m.log.Info("authentication finished",
		zap.String("member", res.Member.Nickname),
		zap.Stringer("role", res.Role),
		zap.Stringer("outcome", res.Outcome),
		zap.Error(res.Err))
	m.results.Publish(res)
}

package enginetest

import (
	"sync"

	"conclave/internal/domain"
)

// DirectEngine is a configurable domain.DirectEngine.
type DirectEngine struct {
	mu       sync.Mutex
	policy   map[domain.Address]domain.DirectPolicy
	status   map[domain.Address]domain.DirectStatus
	injected map[domain.MessageID]bool

	// Send and Receive replace the identity transforms when set.
	Send    func(c domain.Contact, text string) ([]string, error)
	Receive func(c domain.Contact, text string) (string, error)
}

// NewDirectEngine returns an engine with encryption disabled for everyone.
func NewDirectEngine() *DirectEngine {
	return &DirectEngine{
		policy:   make(map[domain.Address]domain.DirectPolicy),
		status:   make(map[domain.Address]domain.DirectStatus),
		injected: make(map[domain.MessageID]bool),
	}
}

// SetPolicy sets the policy for addr.
func (d *DirectEngine) SetPolicy(addr domain.Address, p domain.DirectPolicy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.policy[addr] = p
}

// SetStatus sets the session status for addr.
func (d *DirectEngine) SetStatus(addr domain.Address, s domain.DirectStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status[addr] = s
}

// Inject marks id as engine-injected.
func (d *DirectEngine) Inject(id domain.MessageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injected[id] = true
}

func (d *DirectEngine) Policy(c domain.Contact) domain.DirectPolicy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.policy[c.Address]
}

func (d *DirectEngine) Status(c domain.Contact) domain.DirectStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status[c.Address]
}

func (d *DirectEngine) IsInjected(id domain.MessageID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.injected[id]
}

func (d *DirectEngine) TransformSending(c domain.Contact, text string) ([]string, error) {
	if d.Send != nil {
		return d.Send(c, text)
	}
	return []string{text}, nil
}

func (d *DirectEngine) TransformReceiving(c domain.Contact, text string) (string, error) {
	if d.Receive != nil {
		return d.Receive(c, text)
	}
	return text, nil
}

var _ domain.DirectEngine = (*DirectEngine)(nil)

package enginetest

import (
	"errors"
	"sync"

	"conclave/internal/domain"
)

// ErrShutdown is returned by calls made after Shutdown.
var ErrShutdown = errors.New("enginetest: engine shut down")

// Handled records one HandleBroadcast or HandleMessage call.
type Handled struct {
	From domain.Identity
	Text string
}

// SMPCall records one InitSMP, RespondSMP or AbortSMP call.
type SMPCall struct {
	Op       string
	Identity domain.Identity
	Question string
	Secret   string
}

// Engine is a recording domain.Engine.
type Engine struct {
	host  domain.EngineHost
	local domain.Identity
	id    domain.SessionID

	mu         sync.Mutex
	users      []domain.Identity
	keys       map[domain.Identity][]byte
	broadcasts []string
	handled    []Handled
	direct     []Handled
	smp        []SMPCall
	shutdown   bool

	// Fault injection; set before use.
	AddErr       error
	RemoveErr    error
	HandleErr    error
	BroadcastErr error
	SMPErr       error

	// BeforeAdd, when set, runs at the start of AddUser outside the lock.
	BeforeAdd func(domain.Identity)
}

// New returns an engine bound to host.
func New(host domain.EngineHost, local domain.Identity, label string) *Engine {
	return &Engine{
		host:  host,
		local: local,
		id:    domain.SessionID("session-" + label),
		keys:  make(map[domain.Identity][]byte),
	}
}

func (e *Engine) SessionID() domain.SessionID { return e.id }

func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.users) + 1
}

func (e *Engine) AddUser(id domain.Identity) error {
	if e.BeforeAdd != nil {
		e.BeforeAdd(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.AddErr != nil {
		return e.AddErr
	}
	for _, u := range e.users {
		if u == id {
			return nil
		}
	}
	e.users = append(e.users, id)
	return nil
}

func (e *Engine) RemoveUser(id domain.Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.RemoveErr != nil {
		return e.RemoveErr
	}
	for i, u := range e.users {
		if u == id {
			e.users = append(e.users[:i], e.users[i+1:]...)
			break
		}
	}
	delete(e.keys, id)
	return nil
}

// SetRemoteKey simulates a completed key exchange with id.
func (e *Engine) SetRemoteKey(id domain.Identity, pub []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys[id] = pub
}

func (e *Engine) RemotePublicKey(id domain.Identity) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys[id], nil
}

func (e *Engine) InitSMP(id domain.Identity, question, secret string) error {
	return e.recordSMP(SMPCall{Op: "init", Identity: id, Question: question, Secret: secret})
}

func (e *Engine) RespondSMP(id domain.Identity, question, secret string) error {
	return e.recordSMP(SMPCall{Op: "respond", Identity: id, Question: question, Secret: secret})
}

func (e *Engine) AbortSMP(id domain.Identity) error {
	return e.recordSMP(SMPCall{Op: "abort", Identity: id})
}

func (e *Engine) recordSMP(c SMPCall) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.SMPErr != nil {
		return e.SMPErr
	}
	e.smp = append(e.smp, c)
	return nil
}

// BroadcastMessage records plaintext and broadcasts its envelope through the host.
func (e *Engine) BroadcastMessage(plaintext string) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrShutdown
	}
	if e.BroadcastErr != nil {
		err := e.BroadcastErr
		e.mu.Unlock()
		return err
	}
	e.broadcasts = append(e.broadcasts, plaintext)
	e.mu.Unlock()

	return e.host.Broadcast(Encode(e.id, plaintext))
}

// HandleBroadcast records the call and delivers the plaintext of envelopes
// belonging to this session.
func (e *Engine) HandleBroadcast(from domain.Identity, text string) error {
	e.mu.Lock()
	if e.HandleErr != nil {
		err := e.HandleErr
		e.mu.Unlock()
		return err
	}
	e.handled = append(e.handled, Handled{From: from, Text: text})
	e.mu.Unlock()

	session, plaintext, ok := Decode(text)
	if !ok || session != e.id {
		return nil
	}
	e.host.DeliverBroadcast(from, plaintext)
	return nil
}

func (e *Engine) HandleMessage(from domain.Identity, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.HandleErr != nil {
		return e.HandleErr
	}
	e.direct = append(e.direct, Handled{From: from, Text: text})
	return nil
}

func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdown = true
	return nil
}

// Users returns the registered remote identities.
func (e *Engine) Users() []domain.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Identity(nil), e.users...)
}

// Broadcasts returns the plaintexts passed to BroadcastMessage.
func (e *Engine) Broadcasts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.broadcasts...)
}

// HandledBroadcasts returns every HandleBroadcast call.
func (e *Engine) HandledBroadcasts() []Handled {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Handled(nil), e.handled...)
}

// HandledMessages returns every HandleMessage call.
func (e *Engine) HandledMessages() []Handled {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Handled(nil), e.direct...)
}

// SMPCalls returns every SMP call.
func (e *Engine) SMPCalls() []SMPCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SMPCall(nil), e.smp...)
}

// IsShutdown reports whether Shutdown was called.
func (e *Engine) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

// Host returns the host the engine reports to.
func (e *Engine) Host() domain.EngineHost { return e.host }

var _ domain.Engine = (*Engine)(nil)

// Factory builds Engines and remembers them.
type Factory struct {
	// Err, when set, makes New fail.
	Err error
	// Configure, when set, runs on every new engine before it is returned.
	Configure func(*Engine)

	mu      sync.Mutex
	engines []*Engine
}

// New implements domain.EngineFactory.
func (f *Factory) New(host domain.EngineHost, local domain.Identity, label string) (domain.Engine, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	e := New(host, local, label)
	if f.Configure != nil {
		f.Configure(e)
	}
	f.mu.Lock()
	f.engines = append(f.engines, e)
	f.mu.Unlock()
	return e, nil
}

// Last returns the most recently built engine, or nil.
func (f *Factory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

// Count returns how many engines were built.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

package auth

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"conclave/internal/domain"
)

var (
	// ErrWrongStep is returned when an action does not fit the workflow's
	// role or current step.
	ErrWrongStep = errors.New("action not valid in the current step")

	// ErrNoFingerprint is returned when the peer has no key yet.
	ErrNoFingerprint = errors.New("no key exchange with peer yet")

	// ErrHostClosed ends workflows whose room session went away.
	ErrHostClosed = errors.New("session closed")
)

// Step is the position of a workflow in the handshake.
type Step int

const (
	StepInitiate Step = iota
	StepResponse
	StepAuthenticate
)

func (s Step) String() string {
	switch s {
	case StepInitiate:
		return "initiate"
	case StepResponse:
		return "response"
	case StepAuthenticate:
		return "authenticate"
	default:
		return "unknown"
	}
}

// Outcome is the result of a workflow. Every outcome but Pending is terminal.
type Outcome int

const (
	Pending Outcome = iota
	Success
	Fail
	Abort
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Fail:
		return "fail"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Role tells which side of the handshake the local user is on.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Responder {
		return "responder"
	}
	return "initiator"
}

// Host is the part of a session host a workflow drives.
// *session.Host implements it.
type Host interface {
	RoomID() domain.RoomID
	Identity(member domain.Member) (domain.Identity, bool)
	RemoteFingerprint(member domain.Member) (domain.Fingerprint, bool)
	LocalFingerprint() (domain.Fingerprint, bool, error)
	InitSMP(id domain.Identity, question, secret string) error
	RespondSMP(id domain.Identity, question, secret string) error
	AbortSMP(id domain.Identity) error
	SubscribeSMP(fn func(domain.SMPEvent)) (cancel func())
}

// Result is published once when a workflow terminates.
type Result struct {
	Room        domain.RoomID
	Identity    domain.Identity
	Member      domain.Member
	Role        Role
	Outcome     Outcome
	Fingerprint domain.Fingerprint
	Err         error
}

// Workflow is the authentication of one peer in one room.
type Workflow struct {
	mgr      *Manager
	host     Host
	identity domain.Identity
	member   domain.Member
	role     Role

	mu          sync.Mutex
	step        Step
	outcome     Outcome
	question    string
	petname     domain.Petname
	fingerprint domain.Fingerprint
	err         error
	done        chan struct{}
}

func newWorkflow(mgr *Manager, host Host, id domain.Identity, member domain.Member, role Role) *Workflow {
	w := &Workflow{
		mgr:      mgr,
		host:     host,
		identity: id,
		member:   member,
		role:     role,
		done:     make(chan struct{}),
	}
	if role == Responder {
		w.step = StepResponse
	}
	return w
}

func (w *Workflow) Room() domain.RoomID       { return w.host.RoomID() }
func (w *Workflow) Identity() domain.Identity { return w.identity }
func (w *Workflow) Member() domain.Member     { return w.member }
func (w *Workflow) Role() Role                { return w.role }

// Done is closed when the workflow reaches a terminal outcome.
func (w *Workflow) Done() <-chan struct{} { return w.done }

// DefaultPetname is the label offered for the peer's fingerprint.
func (w *Workflow) DefaultPetname() domain.Petname {
	return domain.Petname(w.member.Nickname)
}

// Step returns the current step.
func (w *Workflow) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Outcome returns Pending until the workflow terminates.
func (w *Workflow) Outcome() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// Question returns the question asked by the initiator, if any.
func (w *Workflow) Question() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.question
}

// Err returns the error that ended the workflow, if any.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// LocalFingerprint returns the fingerprint of the local group key.
func (w *Workflow) LocalFingerprint() (domain.Fingerprint, bool) {
	fp, ok, err := w.host.LocalFingerprint()
	if err != nil {
		w.mgr.log.Warn("local fingerprint", zap.Error(err))
		return "", false
	}
	return fp, ok
}

// RemoteFingerprint returns the peer's live fingerprint.
func (w *Workflow) RemoteFingerprint() (domain.Fingerprint, bool) {
	return w.host.RemoteFingerprint(w.member)
}

// Initiate labels the peer's fingerprint with petname and starts the
// handshake. An empty petname uses DefaultPetname.
func (w *Workflow) Initiate(petname domain.Petname, question, secret string) error {
	return w.advance(Initiator, StepInitiate, StepResponse, petname, question,
		func() error { return w.host.InitSMP(w.identity, question, secret) })
}

// Respond labels the peer's fingerprint with petname and answers the
// initiator's question.
func (w *Workflow) Respond(petname domain.Petname, answer string) error {
	return w.advance(Responder, StepResponse, StepAuthenticate, petname, "",
		func() error { return w.host.RespondSMP(w.identity, w.Question(), answer) })
}

// advance moves from one step to the next and then calls the engine.
// The step changes before the call so a verdict delivered from inside the
// engine call finds the workflow already advanced.
func (w *Workflow) advance(
	role Role,
	from, to Step,
	petname domain.Petname,
	question string,
	call func() error,
) error {
	if petname == "" {
		petname = w.DefaultPetname()
	}
	fp, ok := w.RemoteFingerprint()
	if !ok {
		return fmt.Errorf("%s: %w", w.member.Nickname, ErrNoFingerprint)
	}

	w.mu.Lock()
	if w.role != role || w.step != from || w.outcome != Pending {
		w.mu.Unlock()
		return fmt.Errorf("%s at %s: %w", w.role, w.step, ErrWrongStep)
	}
	w.step = to
	w.petname = petname
	w.fingerprint = fp
	if question != "" {
		w.question = question
	}
	w.mu.Unlock()

	if err := w.mgr.trust.SaveFingerprint(petname, fp); err != nil {
		w.finish(Fail, "", err)
		return fmt.Errorf("save fingerprint: %w", err)
	}
	if err := call(); err != nil {
		w.finish(Fail, "", err)
		return fmt.Errorf("smp %s: %w", to, err)
	}
	return nil
}

// Abort ends a pending workflow. It releases the engine's SMP state before
// returning and is a no-op once the workflow has terminated. An initiator
// that has not sent anything yet ends without touching the engine.
func (w *Workflow) Abort() error {
	w.mu.Lock()
	outcome, unsent := w.outcome, w.role == Initiator && w.step == StepInitiate
	w.mu.Unlock()
	if outcome != Pending {
		return nil
	}
	if unsent {
		w.finish(Abort, "", nil)
		return nil
	}
	err := w.host.AbortSMP(w.identity)
	if err != nil {
		err = fmt.Errorf("abort smp: %w", err)
	}
	w.finish(Abort, "", err)
	return err
}

// handle applies an SMP verdict from the engine.
func (w *Workflow) handle(evt domain.SMPEvent) {
	switch evt.Kind {
	case domain.SMPVerified:
		w.finish(Success, evt.Fingerprint, nil)
	case domain.SMPUnverified:
		w.finish(Fail, evt.Fingerprint, nil)
	case domain.SMPAborted:
		w.finish(Abort, "", nil)
	case domain.SMPFailed:
		w.finish(Fail, "", errors.New("smp protocol error"))
	}
}

// finish records the terminal outcome once. Comparison verdicts (fp set)
// update the trust store; aborts and errors leave it untouched.
func (w *Workflow) finish(outcome Outcome, fp domain.Fingerprint, err error) {
	w.mu.Lock()
	if w.outcome != Pending {
		w.mu.Unlock()
		return
	}
	w.outcome = outcome
	w.err = err
	if fp != "" {
		w.step = StepAuthenticate
		w.fingerprint = fp
	}
	res := Result{
		Room:        w.host.RoomID(),
		Identity:    w.identity,
		Member:      w.member,
		Role:        w.role,
		Outcome:     outcome,
		Fingerprint: w.fingerprint,
		Err:         err,
	}
	petname := w.petname
	close(w.done)
	w.mu.Unlock()

	if fp != "" {
		if terr := w.mgr.trust.SetVerified(petname, fp, outcome == Success); terr != nil {
			w.mgr.log.Error("record verdict", zap.String("fingerprint", fp.String()), zap.Error(terr))
			res.Err = errors.Join(res.Err, terr)
		}
	}
	w.mgr.finished(w, res)
}

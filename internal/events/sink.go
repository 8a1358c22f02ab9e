package events

import (
	"sync"

	list "github.com/bahlo/generic-list-go"
	"go.uber.org/zap"
)

// Sink runs posted funcs one at a time, in order, on a dedicated goroutine.
type Sink struct {
	log *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  *list.List[func()]
	closed bool
	done   chan struct{}
}

// NewSink starts the sink goroutine.
func NewSink(log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sink{
		log:   log.Named("sink"),
		queue: list.New[func()](),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Post enqueues fn. It reports false once the sink is closed.
func (s *Sink) Post(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.queue.PushBack(fn)
	s.cond.Signal()
	return true
}

// Flush blocks until everything posted before the call has run.
func (s *Sink) Flush() {
	ran := make(chan struct{})
	if !s.Post(func() { close(ran) }) {
		<-s.done
		return
	}
	<-ran
}

// Close drains the queue and stops the goroutine.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cond.Signal()
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.queue.Len() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.queue.Len() == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue.Remove(s.queue.Front())
		s.mu.Unlock()

		s.invoke(fn)
	}
}

func (s *Sink) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("listener panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

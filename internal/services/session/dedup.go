package session

import (
	list "github.com/bahlo/generic-list-go"

	"conclave/internal/domain"
)

// DefaultDedupCapacity bounds each deduplication set.
const DefaultDedupCapacity = 4096

// idSet is a bounded set of message ids. Once full, the oldest id is evicted.
// It is not safe for concurrent use.
type idSet struct {
	capacity int
	order    *list.List[domain.MessageID]
	index    map[domain.MessageID]*list.Element[domain.MessageID]
}

func newIDSet(capacity int) *idSet {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &idSet{
		capacity: capacity,
		order:    list.New[domain.MessageID](),
		index:    make(map[domain.MessageID]*list.Element[domain.MessageID]),
	}
}

// add records id and reports whether it was new.
func (s *idSet) add(id domain.MessageID) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	for s.order.Len() >= s.capacity {
		oldest := s.order.Front()
		delete(s.index, s.order.Remove(oldest))
	}
	s.index[id] = s.order.PushBack(id)
	return true
}

func (s *idSet) contains(id domain.MessageID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *idSet) len() int { return s.order.Len() }

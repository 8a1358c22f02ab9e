package session

import (
	"fmt"
	"math/rand"
	"testing"

	"conclave/internal/domain"
)

func TestIDSet_EvictsOldest(t *testing.T) {
	s := newIDSet(3)
	for _, id := range []domain.MessageID{"a", "b", "c"} {
		if !s.add(id) {
			t.Fatalf("add %s reported duplicate", id)
		}
	}
	if s.add("b") {
		t.Fatal("duplicate add reported new")
	}
	s.add("d")
	if s.contains("a") {
		t.Fatal("oldest id not evicted")
	}
	for _, id := range []domain.MessageID{"b", "c", "d"} {
		if !s.contains(id) {
			t.Fatalf("%s evicted too early", id)
		}
	}
	if s.len() != 3 {
		t.Fatalf("len = %d, want 3", s.len())
	}
}

func TestMemberIndex_StaysConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ix := newMemberIndex()
	present := map[string]bool{}

	for step := 0; step < 2000; step++ {
		n := fmt.Sprintf("m%d", rng.Intn(12))
		if rng.Intn(2) == 0 {
			rec := memberRecord{
				identity: domain.NewIdentity(domain.Address(n + "@x")),
				contact:  domain.Contact{Address: domain.Address(n + "@x")},
				member:   domain.Member{Nickname: n},
			}
			if ix.insert(rec) == present[n] {
				t.Fatalf("step %d: insert %s result disagrees with presence", step, n)
			}
			present[n] = true
		} else {
			if _, ok := ix.remove(n); ok != present[n] {
				t.Fatalf("step %d: remove %s result disagrees with presence", step, n)
			}
			delete(present, n)
		}
		if !ix.consistent() {
			t.Fatalf("step %d: index inconsistent", step)
		}
		if ix.len() != len(present) {
			t.Fatalf("step %d: len %d, want %d", step, ix.len(), len(present))
		}
	}
}

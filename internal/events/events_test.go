package events_test

import (
	"sync"
	"testing"

	"conclave/internal/events"
)

func TestBroker_SynchronousDelivery(t *testing.T) {
	b := events.NewBroker[int](nil)

	var got []int
	cancel := b.Subscribe(func(v int) { got = append(got, v) })
	b.Publish(1)
	b.Publish(2)
	cancel()
	cancel()
	b.Publish(3)

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v, want [1 2]", got)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d after cancel", b.Len())
	}
}

func TestBroker_SubscriptionOrder(t *testing.T) {
	b := events.NewBroker[string](nil)

	var got []string
	b.Subscribe(func(string) { got = append(got, "a") })
	b.Subscribe(func(string) { got = append(got, "b") })
	b.Publish("x")

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestSink_PreservesOrderAcrossPublishers(t *testing.T) {
	sink := events.NewSink(nil)
	defer sink.Close()
	b := events.NewBroker[int](sink)

	var (
		mu      sync.Mutex
		running int
		overlap bool
		seen    []int
	)
	b.Subscribe(func(v int) {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		seen = append(seen, v)
		running--
		mu.Unlock()
	})

	for i := 0; i < 100; i++ {
		b.Publish(i)
	}
	sink.Flush()

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Fatal("listeners ran concurrently")
	}
	if len(seen) != 100 {
		t.Fatalf("delivered %d events, want 100", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("seen[%d] = %d, order not preserved", i, v)
		}
	}
}

func TestSink_SurvivesPanickingListener(t *testing.T) {
	sink := events.NewSink(nil)
	defer sink.Close()

	sink.Post(func() { panic("boom") })
	ran := false
	sink.Post(func() { ran = true })
	sink.Flush()

	if !ran {
		t.Fatal("sink stopped after a panicking listener")
	}
}

func TestSink_CloseDrainsThenRejects(t *testing.T) {
	sink := events.NewSink(nil)

	n := 0
	for i := 0; i < 10; i++ {
		sink.Post(func() { n++ })
	}
	sink.Close()

	if n != 10 {
		t.Fatalf("ran %d funcs before close, want 10", n)
	}
	if sink.Post(func() {}) {
		t.Fatal("Post accepted after Close")
	}
	sink.Flush()
}

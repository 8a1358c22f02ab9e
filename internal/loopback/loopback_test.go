package loopback_test

import (
	"context"
	"testing"

	"conclave/internal/domain"
	"conclave/internal/loopback"
)

func TestRoom_BroadcastReachesEveryone(t *testing.T) {
	hub := loopback.NewHub("test")
	alice := hub.Account("alice", "alice@test", "Alice")
	bob := hub.Account("bob", "bob@test", "Bob")

	ra, err := alice.Join("lobby", "alice")
	if err != nil {
		t.Fatalf("alice join: %v", err)
	}
	rb, err := bob.Join("lobby", "bob")
	if err != nil {
		t.Fatalf("bob join: %v", err)
	}

	msg := ra.CreateMessage("hello")
	if err := ra.SendMessage(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	fa, fb := ra.Fired(), rb.Fired()
	if len(fa) != 1 || fa[0].Kind != domain.RoomDelivered || fa[0].Message.ID != msg.ID {
		t.Fatalf("sender events = %+v", fa)
	}
	if len(fb) != 1 || fb[0].Kind != domain.RoomReceived || fb[0].Member.Nickname != "alice" {
		t.Fatalf("receiver events = %+v", fb)
	}
}

func TestRoom_PresenceAndContacts(t *testing.T) {
	hub := loopback.NewHub("test")
	alice := hub.Account("alice", "alice@test", "Alice")
	bob := hub.Account("bob", "bob@test", "Bob")

	ra, _ := alice.Join("lobby", "alice")
	var seen []domain.PresenceEvent
	ra.AddPresenceListener(func(e domain.PresenceEvent) { seen = append(seen, e) })

	if _, err := bob.Join("lobby", "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := bob.Join("lobby", "bob"); err == nil {
		t.Fatal("duplicate nickname accepted")
	}
	c, ok := ra.PrivateContact("bob")
	if !ok || c.Address != "bob@test" {
		t.Fatalf("private contact = %+v, %v", c, ok)
	}
	if len(ra.Members()) != 2 {
		t.Fatalf("members = %v", ra.Members())
	}

	bob.Leave("lobby", domain.LocalKicked)
	if len(seen) != 2 || seen[0].Kind != domain.MemberJoined || seen[1].Kind != domain.MemberKicked {
		t.Fatalf("presence = %+v", seen)
	}
}

func TestAccount_DirectMessages(t *testing.T) {
	hub := loopback.NewHub("test")
	alice := hub.Account("alice", "alice@test", "Alice")
	bob := hub.Account("bob", "bob@test", "Bob")

	var got []domain.DirectEvent
	bob.AddDirectListener(func(e domain.DirectEvent) { got = append(got, e) })

	msg := alice.CreateMessage("hi")
	if err := alice.SendInstantMessage(context.Background(), bob.Contact(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got) != 1 || got[0].Kind != domain.DirectReceived || got[0].Contact.Address != "alice@test" {
		t.Fatalf("bob got %+v", got)
	}
	if len(alice.SentDirect()) != 1 {
		t.Fatal("sent message not recorded")
	}
	if err := alice.SendInstantMessage(context.Background(), domain.Contact{Address: "nobody"}, msg); err == nil {
		t.Fatal("expected error for unknown address")
	}
}

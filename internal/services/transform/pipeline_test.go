package transform_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"conclave/internal/domain"
	"conclave/internal/engine/enginetest"
	"conclave/internal/loopback"
	"conclave/internal/services/registry"
	"conclave/internal/services/session"
	"conclave/internal/services/transform"
	"conclave/internal/services/trust"
	"conclave/internal/store"
)

// peer is one user with its own registry, engine and pipeline.
type peer struct {
	account  *loopback.Account
	factory  *enginetest.Factory
	registry *registry.Registry
	direct   *enginetest.DirectEngine
	pipeline *transform.Pipeline

	mu    sync.Mutex
	shown []domain.RoomEvent
}

func newPeer(t *testing.T, hub *loopback.Hub, nick string) *peer {
	t.Helper()
	props := store.NewPropertyFileStore(t.TempDir())
	p := &peer{
		account: hub.Account(domain.AccountID(nick), domain.Address(nick+"@test"), nick),
		factory: &enginetest.Factory{},
		direct:  enginetest.NewDirectEngine(),
	}
	p.registry = registry.New(session.Config{
		Direct:  p.account,
		Factory: p.factory.New,
		Codec:   enginetest.Codec{},
		Trust:   trust.New(props, "", nil),
		Keys:    trust.NewKeyManager(props, "", "", nil),
	})
	t.Cleanup(func() { _ = p.registry.Close() })
	p.pipeline = transform.New(p.registry, p.direct, enginetest.Codec{}, nil)
	return p
}

// enter joins room "lobby" and routes its events through the pipeline.
func (p *peer) enter(t *testing.T, nick string) *loopback.Room {
	t.Helper()
	room, err := p.account.Join("lobby", nick)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	room.AddMessageListener(p.pipeline.RoomListener(func(evt domain.RoomEvent) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.shown = append(p.shown, evt)
	}))
	return room
}

func (p *peer) shownEvents() []domain.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.RoomEvent(nil), p.shown...)
}

func TestRoom_EndToEnd(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	bob := newPeer(t, hub, "bob")
	myRoom := me.enter(t, "me")
	bob.enter(t, "bob")
	me.registry.AddProvider(me.account)
	bob.registry.AddProvider(bob.account)

	if err := me.pipeline.SendRoom(context.Background(), myRoom, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, s := range myRoom.Sent() {
		if s.Body == "hello" {
			t.Fatal("plaintext reached the room")
		}
	}

	mine := me.shownEvents()
	if len(mine) != 1 || mine[0].Kind != domain.RoomDelivered || mine[0].Message.Body != "hello" {
		t.Fatalf("sender saw %+v", mine)
	}
	theirs := bob.shownEvents()
	if len(theirs) != 1 || theirs[0].Kind != domain.RoomReceived ||
		theirs[0].Member.Nickname != "me" || theirs[0].Message.Body != "hello" {
		t.Fatalf("recipient saw %+v", theirs)
	}
	if n := len(bob.factory.Last().HandledBroadcasts()); n != 1 {
		t.Fatalf("recipient engine handled %d broadcasts, want 1", n)
	}
}

func TestRoom_Rules(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	room := me.enter(t, "me")
	wire := enginetest.Encode("session-lobby", "x")

	tests := []struct {
		name   string
		evt    domain.RoomEvent
		joined bool
		want   bool
	}{
		{"system passes", domain.RoomEvent{System: true, Message: domain.Message{ID: "1", Body: wire}}, true, true},
		{"history control suppressed", domain.RoomEvent{History: true, Message: domain.Message{ID: "2", Body: wire}}, true, false},
		{"history content passes without host", domain.RoomEvent{History: true, Message: domain.Message{ID: "3", Body: "old"}}, false, true},
		{"no host content passes", domain.RoomEvent{Message: domain.Message{ID: "4", Body: "hi"}}, false, true},
		{"no host control suppressed", domain.RoomEvent{Message: domain.Message{ID: "5", Body: wire}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.joined {
				if _, err := me.registry.Join(room); err != nil {
					t.Fatal(err)
				}
			} else {
				me.registry.Leave(room.ID())
			}
			evt := tt.evt
			evt.Room = room.ID()
			evt.Member = domain.Member{Nickname: "stranger"}
			if _, got := me.pipeline.RoomReceived(evt); got != tt.want {
				t.Fatalf("received = %v, want %v", got, tt.want)
			}
			if _, got := me.pipeline.RoomDelivered(evt); got != tt.want {
				t.Fatalf("delivered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoom_PendingWithoutHostIsSent(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	room := me.enter(t, "me")

	if err := me.pipeline.SendRoom(context.Background(), room, "plain"); err != nil {
		t.Fatal(err)
	}
	if sent := room.Sent(); len(sent) != 1 || sent[0].Body != "plain" {
		t.Fatalf("sent = %+v", sent)
	}
}

func pending(to domain.Contact, body string) domain.DirectEvent {
	return domain.DirectEvent{
		Kind:     domain.DirectPending,
		Provider: "test",
		Contact:  to,
		Message:  domain.Message{ID: "orig", Body: body},
	}
}

func TestDirectPending(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	bob := domain.Contact{Address: "bob@test"}

	got := me.pipeline.DirectPending(pending(bob, "hi"))
	if len(got) != 1 || got[0].Message.ID != "orig" || got[0].Encrypted {
		t.Fatalf("policy off = %+v", got)
	}

	me.direct.SetPolicy(bob.Address, domain.DirectPolicy{EnableManual: true})
	me.direct.Send = func(_ domain.Contact, text string) ([]string, error) {
		return []string{enginetest.Encode("", text[:1]), "tail:" + text[1:]}, nil
	}
	got = me.pipeline.DirectPending(pending(bob, "hi"))
	if len(got) != 2 {
		t.Fatalf("fragments = %+v", got)
	}
	if got[0].Message.ID == "orig" || got[0].Message.ID == got[1].Message.ID {
		t.Fatal("fragments must get fresh ids")
	}
	if !got[0].Encrypted || got[1].Encrypted {
		t.Fatalf("encrypted flags = %v, %v", got[0].Encrypted, got[1].Encrypted)
	}

	me.direct.Send = func(domain.Contact, string) ([]string, error) { return []string{"", "tail"}, nil }
	got = me.pipeline.DirectPending(pending(bob, "hi"))
	if len(got) != 1 || got[0].Message.Body != "tail" || got[0].Message.ID == "orig" {
		t.Fatalf("empty leading fragment = %+v", got)
	}

	me.direct.Send = func(domain.Contact, string) ([]string, error) { return nil, nil }
	if got := me.pipeline.DirectPending(pending(bob, "hi")); len(got) != 0 {
		t.Fatalf("consumed message produced %+v", got)
	}
	me.direct.Send = func(domain.Contact, string) ([]string, error) { return []string{""}, nil }
	if got := me.pipeline.DirectPending(pending(bob, "hi")); len(got) != 0 {
		t.Fatalf("empty output produced %+v", got)
	}

	me.direct.Send = func(_ domain.Contact, text string) ([]string, error) { return []string{text}, nil }
	if got := me.pipeline.DirectPending(pending(bob, "hi")); len(got) != 1 || got[0].Message.ID != "orig" {
		t.Fatalf("unchanged = %+v", got)
	}

	me.direct.Send = func(domain.Contact, string) ([]string, error) { return nil, errors.New("boom") }
	me.direct.Inject("orig")
	if got := me.pipeline.DirectPending(pending(bob, "hi")); len(got) != 1 {
		t.Fatalf("injected = %+v", got)
	}
}

func TestDirect_HostProtocolTraffic(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	bob := newPeer(t, hub, "bob")
	room := me.enter(t, "me")
	bob.enter(t, "bob")
	host, err := me.registry.Join(room)
	if err != nil {
		t.Fatal(err)
	}
	me.direct.SetPolicy("bob@test", domain.DirectPolicy{EnableManual: true})
	me.direct.Send = func(domain.Contact, string) ([]string, error) {
		t.Error("host protocol traffic reached the direct engine")
		return nil, nil
	}

	wire := enginetest.Encode(host.SessionID(), "key exchange")
	if err := host.SendDirect(domain.NewIdentity("bob@test"), wire); err != nil {
		t.Fatal(err)
	}
	sent := me.account.SentDirect()[0]

	evt := sent
	evt.Kind = domain.DirectPending
	got := me.pipeline.DirectPending(evt)
	if len(got) != 1 || !got[0].Encrypted {
		t.Fatalf("pending = %+v", got)
	}
	if _, ok := me.pipeline.DirectDelivered(sent); ok {
		t.Fatal("delivery of host protocol traffic shown")
	}

	in := domain.DirectEvent{
		Kind:     domain.DirectReceived,
		Provider: "test",
		Contact:  domain.Contact{Address: "bob@test"},
		Message:  domain.Message{ID: "in-1", Body: wire},
	}
	if _, ok := me.pipeline.DirectReceived(in); ok {
		t.Fatal("protocol message shown")
	}
	handled := me.factory.Last().HandledMessages()
	if len(handled) != 1 || handled[0].From != domain.NewIdentity("bob@test") {
		t.Fatalf("engine handled %+v", handled)
	}

	in.Message.Body = enginetest.Encode("session-elsewhere", "x")
	if _, ok := me.pipeline.DirectReceived(in); !ok {
		t.Fatal("message for an unknown session must pass")
	}
}

func TestDirectReceived_Transform(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	in := domain.DirectEvent{
		Kind:     domain.DirectReceived,
		Provider: "test",
		Contact:  domain.Contact{Address: "bob@test"},
		Message:  domain.Message{ID: "in-1", Body: "cipher"},
	}

	if got, ok := me.pipeline.DirectReceived(in); !ok || got.Message.Body != "cipher" {
		t.Fatalf("identity transform = %+v, %v", got, ok)
	}

	me.direct.Receive = func(domain.Contact, string) (string, error) { return "plain", nil }
	got, ok := me.pipeline.DirectReceived(in)
	if !ok || got.Message.Body != "plain" || got.Message.ID != "in-1" || !got.Encrypted {
		t.Fatalf("rewritten = %+v, %v", got, ok)
	}

	me.direct.Receive = func(domain.Contact, string) (string, error) { return "", nil }
	if _, ok := me.pipeline.DirectReceived(in); ok {
		t.Fatal("consumed message shown")
	}

	me.direct.Receive = func(domain.Contact, string) (string, error) { return "", errors.New("bad mac") }
	if _, ok := me.pipeline.DirectReceived(in); ok {
		t.Fatal("undecryptable message shown")
	}
}

func TestDirectReceived_WithoutDirectEngine(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	passthrough := transform.New(me.registry, nil, enginetest.Codec{}, nil)
	in := domain.DirectEvent{
		Kind:     domain.DirectReceived,
		Provider: "test",
		Contact:  domain.Contact{Address: "bob@test"},
		Message:  domain.Message{ID: "in-1", Body: "hello"},
	}

	if got, ok := passthrough.DirectReceived(in); !ok || got.Message.Body != "hello" {
		t.Fatalf("content = %+v, %v", got, ok)
	}
	in.Message.Body = enginetest.Encode("", "stray protocol")
	if _, ok := passthrough.DirectReceived(in); ok {
		t.Fatal("control body without a session reached the user")
	}
}

func TestDirectDelivered_And_Failed(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	evt := domain.DirectEvent{
		Kind:     domain.DirectDelivered,
		Provider: "test",
		Contact:  domain.Contact{Address: "bob@test"},
		Message:  domain.Message{ID: "m1", Body: "x"},
	}
	me.direct.Inject("m1")

	if _, ok := me.pipeline.DirectDelivered(evt); !ok {
		t.Fatal("policy off must pass")
	}
	me.direct.SetStatus("bob@test", domain.DirectEncrypted)
	if _, ok := me.pipeline.DirectDelivered(evt); ok {
		t.Fatal("injected message shown")
	}
	evt.Message.ID = "m2"
	if _, ok := me.pipeline.DirectDelivered(evt); !ok {
		t.Fatal("regular delivery suppressed")
	}

	evt.Kind = domain.DirectFailed
	if got, ok := me.pipeline.DirectFailed(evt); !ok || got != evt {
		t.Fatal("failure not passed unchanged")
	}
}

func TestSendDirect(t *testing.T) {
	hub := loopback.NewHub("test")
	me := newPeer(t, hub, "me")
	hub.Account("bob", "bob@test", "Bob")
	bob := domain.Contact{Address: "bob@test"}

	me.direct.SetPolicy(bob.Address, domain.DirectPolicy{EnableManual: true})
	me.direct.Send = func(_ domain.Contact, text string) ([]string, error) {
		return []string{"a:" + text, "b:" + text}, nil
	}
	if err := me.pipeline.SendDirect(context.Background(), me.account, bob, "x"); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := me.account.SentDirect()
	if len(sent) != 2 || sent[0].Message.Body != "a:x" || sent[1].Message.Body != "b:x" {
		t.Fatalf("sent = %+v", sent)
	}

	boom := errors.New("offline")
	me.account.SendErr = boom
	if err := me.pipeline.SendDirect(context.Background(), me.account, bob, "x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

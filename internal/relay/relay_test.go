package relay_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"conclave/internal/domain"
	"conclave/internal/relay"
)

func newRelay(t *testing.T) (*relay.Server, string) {
	t.Helper()
	srv := relay.NewServer(nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func TestSendReceiveAck(t *testing.T) {
	srv, base := newRelay(t)
	ctx := context.Background()
	alice := relay.NewClient(base, "alice", "Alice")
	bob := relay.NewClient(base, "bob", "Bob")

	for _, text := range []string{"one", "two", "three"} {
		if err := alice.SendInstantMessage(ctx, bob.Contact(), alice.CreateMessage(text)); err != nil {
			t.Fatalf("send %s: %v", text, err)
		}
	}
	if srv.Pending("bob") != 3 {
		t.Fatalf("pending = %d", srv.Pending("bob"))
	}

	envs, err := bob.Fetch(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(envs) != 2 || envs[0].Body != "one" || envs[1].Body != "two" {
		t.Fatalf("fetch = %+v", envs)
	}
	if srv.Pending("bob") != 3 {
		t.Fatal("fetch removed envelopes")
	}

	events, err := bob.Receive(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || srv.Pending("bob") != 0 {
		t.Fatalf("receive = %d events, %d pending", len(events), srv.Pending("bob"))
	}
	first := events[0]
	if first.Kind != domain.DirectReceived || first.Contact.Address != "alice" ||
		first.Contact.DisplayName != "Alice" || first.Provider != relay.Provider || first.Message.ID == "" {
		t.Fatalf("event = %+v", first)
	}

	if events, err := bob.Receive(ctx, 0); err != nil || len(events) != 0 {
		t.Fatalf("empty receive = %v, %v", events, err)
	}
}

func TestAck_OverCountClearsQueue(t *testing.T) {
	srv, base := newRelay(t)
	ctx := context.Background()
	alice := relay.NewClient(base, "alice", "")
	bob := relay.NewClient(base, "bob", "")
	_ = alice.SendInstantMessage(ctx, bob.Contact(), alice.CreateMessage("x"))

	if err := bob.Ack(ctx, 10); err != nil {
		t.Fatal(err)
	}
	if srv.Pending("bob") != 0 {
		t.Fatal("queue not cleared")
	}
}

func TestServer_RejectsBadRequests(t *testing.T) {
	_, base := newRelay(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"malformed envelope", http.MethodPost, "/msg/bob", "{"},
		{"recipient mismatch", http.MethodPost, "/msg/bob", `{"id":"1","from":"a","to":"carol"}`},
		{"missing sender", http.MethodPost, "/msg/bob", `{"id":"1"}`},
		{"bad limit", http.MethodGet, "/msg/bob?limit=x", ""},
		{"negative ack", http.MethodPost, "/msg/bob/ack", `{"count":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, base+tt.path, bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d", resp.StatusCode)
			}
		})
	}
}

func TestClient_ReportsTransportErrors(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	c := relay.NewClient(ts.URL, "alice", "")

	err := c.SendInstantMessage(context.Background(), domain.Contact{Address: "bob"}, c.CreateMessage("x"))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.Fetch(context.Background(), 0); err == nil {
		t.Fatal("fetch against a broken relay succeeded")
	}
}

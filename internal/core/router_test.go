package core

import (
	"context"
	"testing"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/proto"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/store"
)

func newTestRouter(t *testing.T) (*Router, *Registry, *memStore) {
	t.Helper()
	registry := NewRegistry()
	st := &memStore{}
	return NewRouter(registry, st, testLogger()), registry, st
}

func register(t *testing.T, r *Registry, id, username string) *Session {
	t.Helper()
	s := NewSession(id)
	if err := r.Register(s, username); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	s.Username = username
	return s
}

func TestRouteGroupFansOutToEveryone(t *testing.T) {
	router, registry, st := newTestRouter(t)

	alice := register(t, registry, "a", "alice")
	bob := register(t, registry, "b", "bob")
	carol := register(t, registry, "c", "carol")

	if err := router.RouteGroup(context.Background(), "alice", "hello"); err != nil {
		t.Fatalf("route group: %v", err)
	}

	var ts int64
	for _, s := range []*Session{alice, bob, carol} {
		f := mustFrame(t, s, proto.TypeGroup)
		if f.From != "alice" || f.Text != "hello" {
			t.Fatalf("unexpected group frame: %+v", f)
		}
		if ts == 0 {
			ts = f.TS
		} else if f.TS != ts {
			t.Fatalf("recipients saw different timestamps: %d vs %d", ts, f.TS)
		}
	}

	persisted := st.all()
	if len(persisted) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(persisted))
	}
	got := persisted[0]
	if got.Scope != store.ScopeGroup || got.Sender != "alice" || got.Text != "hello" || got.Target != "" {
		t.Fatalf("unexpected persisted message: %+v", got)
	}
}

func TestRoutePrivateDeliversOnlyToParticipants(t *testing.T) {
	router, registry, st := newTestRouter(t)

	alice := register(t, registry, "a", "alice")
	bob := register(t, registry, "b", "bob")
	carol := register(t, registry, "c", "carol")

	if err := router.RoutePrivate(context.Background(), "alice", "bob", "secret"); err != nil {
		t.Fatalf("route private: %v", err)
	}

	for _, s := range []*Session{alice, bob} {
		f := mustFrame(t, s, proto.TypePrivate)
		if f.From != "alice" || f.Target != "bob" || f.Text != "secret" {
			t.Fatalf("unexpected private frame: %+v", f)
		}
	}
	noFrame(t, carol)

	persisted := st.all()
	if len(persisted) != 1 || persisted[0].Scope != store.ScopePrivate || persisted[0].Target != "bob" {
		t.Fatalf("unexpected persisted state: %+v", persisted)
	}
}

func TestRoutePrivateOfflineTargetIsStoredOnly(t *testing.T) {
	router, registry, st := newTestRouter(t)

	alice := register(t, registry, "a", "alice")

	if err := router.RoutePrivate(context.Background(), "alice", "bob", "hi"); err != nil {
		t.Fatalf("route private to offline target: %v", err)
	}

	// The sender still sees the echo.
	f := mustFrame(t, alice, proto.TypePrivate)
	if f.Target != "bob" || f.Text != "hi" {
		t.Fatalf("unexpected echo frame: %+v", f)
	}

	// The message waits in the log for bob's next history replay.
	partners, err := st.PrivatePartners(context.Background(), "bob")
	if err != nil {
		t.Fatalf("private partners: %v", err)
	}
	if len(partners) != 1 || partners[0] != "alice" {
		t.Fatalf("expected alice as bob's partner, got %v", partners)
	}
}

func TestBroadcastSystemIsNotPersisted(t *testing.T) {
	router, registry, st := newTestRouter(t)

	alice := register(t, registry, "a", "alice")
	bob := register(t, registry, "b", "bob")

	router.BroadcastSystem("alice joined the chat")

	for _, s := range []*Session{alice, bob} {
		f := mustFrame(t, s, proto.TypeSystem)
		if f.Text != "alice joined the chat" || f.TS == 0 {
			t.Fatalf("unexpected system frame: %+v", f)
		}
	}

	if got := len(st.all()); got != 0 {
		t.Fatalf("system notices must not be persisted, found %d records", got)
	}
}

func TestSaturatedSessionDoesNotBlockFanout(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	alice := register(t, registry, "a", "alice")
	bob := register(t, registry, "b", "bob")

	// Fill alice's queue so the next delivery to her is dropped.
	for alice.Send(&proto.Frame{Type: proto.TypeSystem, Text: "filler"}) {
	}

	if err := router.RouteGroup(context.Background(), "bob", "still moving"); err != nil {
		t.Fatalf("route group: %v", err)
	}

	f := mustFrame(t, bob, proto.TypeGroup)
	if f.Text != "still moving" {
		t.Fatalf("unexpected frame for bob: %+v", f)
	}
}

func TestSendOnClosedSessionFails(t *testing.T) {
	s := NewSession("a")
	s.Close()
	if s.Send(&proto.Frame{Type: proto.TypeSystem}) {
		t.Fatal("send on a closed session must fail")
	}
	s.Close() // closing twice is fine
}

package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/proto"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/store"
)

// memStore is an in-memory stand-in for the SQLite message log.
type memStore struct {
	mu       sync.Mutex
	messages []store.Message
}

func (m *memStore) Append(_ context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) GroupHistory(_ context.Context, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Message
	for i := range m.messages {
		if m.messages[i].Scope == store.ScopeGroup {
			msg := m.messages[i]
			out = append(out, &msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) PrivateHistory(_ context.Context, userA, userB string, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Message
	for i := range m.messages {
		msg := m.messages[i]
		if msg.Scope != store.ScopePrivate {
			continue
		}
		if (msg.Sender == userA && msg.Target == userB) || (msg.Sender == userB && msg.Target == userA) {
			out = append(out, &msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) PrivatePartners(_ context.Context, username string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	for _, msg := range m.messages {
		if msg.Scope != store.ScopePrivate {
			continue
		}
		switch username {
		case msg.Sender:
			seen[msg.Target] = struct{}{}
		case msg.Target:
			seen[msg.Sender] = struct{}{}
		}
	}
	partners := make([]string, 0, len(seen))
	for p := range seen {
		partners = append(partners, p)
	}
	return partners, nil
}

func (m *memStore) all() []store.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// mustFrame waits for the next frame of the wanted type on the session
// queue, skipping others.
func mustFrame(t *testing.T, s *Session, frameType string) *proto.Frame {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case f := <-s.Out():
			if f.Type == frameType {
				return f
			}
		case <-timeout:
			t.Fatalf("expected frame type %q not received", frameType)
			return nil
		}
	}
}

// noFrame asserts the session queue stays empty.
func noFrame(t *testing.T, s *Session) {
	t.Helper()

	select {
	case f := <-s.Out():
		t.Fatalf("unexpected frame delivered: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/proto"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/store"
)

// Router accepts inbound messages from sessions, persists them and fans
// them out to the recipients the registry knows about. Recipients are the
// registry snapshot taken after the message is persisted; delivery uses the
// sessions' non-blocking queues, so one stalled peer never holds up the
// rest of a broadcast.
type Router struct {
	registry *Registry
	store    store.MessageStore
	log      *zerolog.Logger
}

// NewRouter constructs a router over the given registry and message log.
func NewRouter(registry *Registry, st store.MessageStore, logger *zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		store:    st,
		log:      logger,
	}
}

// RouteGroup persists a group message and delivers it to every online
// session, the sender included. All recipients see the same timestamp.
func (r *Router) RouteGroup(ctx context.Context, sender, text string) error {
	msg := &store.Message{
		TS:     time.Now().Unix(),
		Sender: sender,
		Scope:  store.ScopeGroup,
		Text:   text,
	}
	if err := r.store.Append(ctx, msg); err != nil {
		return fmt.Errorf("persist group message: %w", err)
	}

	frame := &proto.Frame{
		Type: proto.TypeGroup,
		From: sender,
		Text: text,
		TS:   msg.TS,
	}
	for _, s := range r.registry.Sessions() {
		r.deliver(s, frame)
	}
	return nil
}

// RoutePrivate persists a private message and delivers it to the target, if
// online, and back to the sender as an echo. An offline target is not an
// error: the message waits in history until the target next logs in.
func (r *Router) RoutePrivate(ctx context.Context, sender, target, text string) error {
	msg := &store.Message{
		TS:     time.Now().Unix(),
		Sender: sender,
		Scope:  store.ScopePrivate,
		Target: target,
		Text:   text,
	}
	if err := r.store.Append(ctx, msg); err != nil {
		return fmt.Errorf("persist private message: %w", err)
	}

	frame := &proto.Frame{
		Type:   proto.TypePrivate,
		From:   sender,
		Target: target,
		Text:   text,
		TS:     msg.TS,
	}
	if s, ok := r.registry.Lookup(target); ok {
		r.deliver(s, frame)
	}
	if target != sender {
		if s, ok := r.registry.Lookup(sender); ok {
			r.deliver(s, frame)
		}
	}
	return nil
}

// BroadcastSystem sends an ephemeral notice to every registered session.
// System notices are never persisted.
func (r *Router) BroadcastSystem(text string) {
	frame := &proto.Frame{
		Type: proto.TypeSystem,
		Text: text,
		TS:   time.Now().Unix(),
	}
	for _, s := range r.registry.Sessions() {
		r.deliver(s, frame)
	}
}

// deliver enqueues a frame for one session. A failed enqueue is that
// session's problem: its own handler notices the broken connection and
// cleans up, while the fan-out continues.
func (r *Router) deliver(s *Session, f *proto.Frame) {
	if !s.Send(f) {
		r.log.Warn().
			Str("session_id", s.ID).
			Str("frame_type", f.Type).
			Msg("dropped frame for unresponsive session")
	}
}

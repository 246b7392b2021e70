package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/config"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/core"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/proto"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/store"
)

// handler drives the per-connection state machine: login handshake against
// the registry, one-time history replay, then the routing loop until the
// stream closes.
type handler struct {
	conn     net.Conn
	enc      *proto.Encoder
	dec      *proto.Decoder
	session  *core.Session
	registry *core.Registry
	router   *core.Router
	store    store.MessageStore
	cfg      config.Config
	log      zerolog.Logger
}

func newHandler(conn net.Conn, registry *core.Registry, router *core.Router, st store.MessageStore, cfg config.Config, logger *zerolog.Logger) *handler {
	id := uuid.NewString()
	hlog := logger.With().
		Str("session_id", id).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	return &handler{
		conn:     conn,
		enc:      proto.NewEncoder(conn),
		dec:      proto.NewDecoder(conn),
		session:  core.NewSession(id),
		registry: registry,
		router:   router,
		store:    st,
		cfg:      cfg,
		log:      hlog,
	}
}

func (h *handler) run(ctx context.Context) {
	// Closing the session or canceling ctx closes the socket, which
	// unblocks whatever read or write is in flight.
	go func() {
		select {
		case <-ctx.Done():
		case <-h.session.Done():
		}
		_ = h.conn.Close()
	}()

	username, err := h.login()
	if err != nil {
		h.log.Debug().Err(err).Msg("connection closed before login")
		h.session.Close()
		return
	}

	h.log = h.log.With().Str("user", username).Logger()
	h.log.Info().Msg("user logged in")

	// Login confirmation and history replay are written directly, before
	// the writer goroutine starts. Broadcasts racing in during this window
	// wait in the session queue, so the client always sees login_ok and
	// history first.
	replayErr := h.confirmAndReplay(ctx, username)

	var writerDone chan struct{}
	if replayErr == nil {
		writerDone = make(chan struct{})
		go h.writeLoop(writerDone)

		h.router.BroadcastSystem(username + " joined the chat")
		h.readLoop(ctx, username)
	} else {
		h.log.Warn().Err(replayErr).Msg("history replay failed")
	}

	if freed, ok := h.registry.Unregister(h.session); ok {
		h.router.BroadcastSystem(freed + " left the chat")
	}
	h.session.Close()
	if writerDone != nil {
		<-writerDone
	}
	h.log.Info().Msg("connection closed")
}

// login waits, bounded by the login timeout, for the first frame. It must
// be a login request with a fresh username; anything else is answered with
// an error frame and ends the connection with no registry mutation.
func (h *handler) login() (string, error) {
	if err := h.conn.SetReadDeadline(time.Now().Add(h.cfg.LoginTimeout)); err != nil {
		return "", fmt.Errorf("set login deadline: %w", err)
	}

	frame, err := h.dec.Decode()
	if err != nil {
		return "", fmt.Errorf("read first frame: %w", err)
	}

	if err := h.conn.SetReadDeadline(time.Time{}); err != nil {
		return "", fmt.Errorf("clear login deadline: %w", err)
	}

	if frame.Type != proto.TypeLogin || frame.Username == "" {
		h.reply(&proto.Frame{Type: proto.TypeError, Message: core.MsgLoginRequired})
		return "", errors.New("first frame was not a login request")
	}

	if err := h.registry.Register(h.session, frame.Username); err != nil {
		h.reply(&proto.Frame{Type: proto.TypeError, Message: core.MsgNameTaken})
		return "", err
	}

	h.session.Username = frame.Username
	return frame.Username, nil
}

// confirmAndReplay acknowledges the login and performs the one-time history
// replay: one group-history frame, then one pm-history frame per partner
// that has stored messages with username.
func (h *handler) confirmAndReplay(ctx context.Context, username string) error {
	if err := h.enc.Encode(&proto.Frame{Type: proto.TypeLoginOK, Username: username}); err != nil {
		return fmt.Errorf("confirm login: %w", err)
	}

	group, err := h.store.GroupHistory(ctx, h.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load group history: %w", err)
	}
	if err := h.enc.Encode(&proto.Frame{
		Type:     proto.TypeHistoryResponse,
		Scope:    proto.ScopeGroup,
		Messages: historyEntries(group),
	}); err != nil {
		return fmt.Errorf("send group history: %w", err)
	}

	partners, err := h.store.PrivatePartners(ctx, username)
	if err != nil {
		return fmt.Errorf("load private partners: %w", err)
	}
	for _, partner := range partners {
		messages, err := h.store.PrivateHistory(ctx, username, partner, h.cfg.HistoryLimit)
		if err != nil {
			return fmt.Errorf("load private history with %s: %w", partner, err)
		}
		if len(messages) == 0 {
			continue
		}
		if err := h.enc.Encode(&proto.Frame{
			Type:     proto.TypeHistoryResponse,
			Scope:    proto.ScopePM,
			With:     partner,
			Messages: historyEntries(messages),
		}); err != nil {
			return fmt.Errorf("send private history: %w", err)
		}
	}

	return nil
}

// readLoop decodes frames until the stream ends. Group and private sends go
// to the router; unrecognized types are ignored.
func (h *handler) readLoop(ctx context.Context, username string) {
	for {
		frame, err := h.dec.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				h.log.Debug().Err(err).Msg("read frame")
			}
			return
		}

		switch frame.Type {
		case proto.TypeGroup:
			if frame.Text == "" {
				h.session.Send(&proto.Frame{Type: proto.TypeError, Message: core.MsgEmptyText})
				continue
			}
			if err := h.router.RouteGroup(ctx, username, frame.Text); err != nil {
				h.log.Error().Err(err).Msg("route group message")
				return
			}
		case proto.TypePrivate:
			if frame.Target == "" {
				h.session.Send(&proto.Frame{Type: proto.TypeError, Message: core.MsgMissingTarget})
				continue
			}
			if frame.Text == "" {
				h.session.Send(&proto.Frame{Type: proto.TypeError, Message: core.MsgEmptyText})
				continue
			}
			if err := h.router.RoutePrivate(ctx, username, frame.Target, frame.Text); err != nil {
				h.log.Error().Err(err).Msg("route private message")
				return
			}
		default:
			// Unknown frame types are ignored.
		}
	}
}

// writeLoop drains the session's outbound queue to the socket. A write
// error tears down only this connection.
func (h *handler) writeLoop(done chan struct{}) {
	defer close(done)

	for {
		select {
		case frame := <-h.session.Out():
			if err := h.enc.Encode(frame); err != nil {
				h.log.Debug().Err(err).Msg("write to peer failed")
				h.session.Close()
				return
			}
		case <-h.session.Done():
			return
		}
	}
}

// reply writes a frame directly, outside the session queue. Used before the
// writer goroutine exists.
func (h *handler) reply(f *proto.Frame) {
	if err := h.enc.Encode(f); err != nil {
		h.log.Debug().Err(err).Msg("write reply")
	}
}

func historyEntries(messages []*store.Message) []proto.HistoryEntry {
	entries := make([]proto.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, proto.HistoryEntry{
			TS:     m.TS,
			Sender: m.Sender,
			Target: m.Target,
			Text:   m.Text,
		})
	}
	return entries
}

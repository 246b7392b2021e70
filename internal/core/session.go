package core

import (
	"sync"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/proto"
)

const sendBuffer = 64

// Session is the live binding between one connection and a username. It is
// created and owned by the connection handler; the registry only references
// it. Frames for the peer go through the buffered outbound queue so that no
// sender ever blocks on a slow recipient's socket.
type Session struct {
	ID       string
	Username string // set by the owning handler after successful registration

	out       chan *proto.Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession constructs a session with an initialized outbound queue.
func NewSession(id string) *Session {
	return &Session{
		ID:   id,
		out:  make(chan *proto.Frame, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send enqueues a frame for the session's writer. It never blocks: a frame
// for a closed or saturated session is dropped and false is returned.
func (s *Session) Send(f *proto.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- f:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// Out exposes the outbound queue to the handler's writer goroutine.
func (s *Session) Out() <-chan *proto.Frame {
	return s.out
}

// Close marks the session as gone. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

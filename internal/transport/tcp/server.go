package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lBebol/Multi-Client-Chat-Application/internal/config"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/core"
	"github.com/lBebol/Multi-Client-Chat-Application/internal/store"
)

// Server accepts TCP connections and runs one connection handler per
// accepted connection. No admission control is imposed.
type Server struct {
	cfg      config.Config
	registry *core.Registry
	router   *core.Router
	store    store.MessageStore
	log      *zerolog.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer builds a TCP server over the shared registry, router and store.
func NewServer(cfg config.Config, registry *core.Registry, router *core.Router, st store.MessageStore, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		router:   router,
		store:    st,
		log:      logger,
	}
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return nil
}

// Addr reports the bound listen address. Useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is canceled, then closes the listener
// and waits for all connection handlers to unwind.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve called before listen")
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		h := newHandler(conn, s.registry, s.router, s.store, s.cfg, s.log)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			h.run(ctx)
		}()
	}
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

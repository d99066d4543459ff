package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/broadcast"
	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/sessions"
	"github.com/eliperez-dev/flightsync/pkg/workers"
)

// TCPServer accepts client connections and runs a ConnectionHandler
// per connection.
type TCPServer struct {
	addr             string
	registry         *sessions.Registry
	engine           *broadcast.Engine
	clock            *workers.DayCycleClock
	seed             int64
	handshakeTimeout time.Duration
	idleTimeout      time.Duration

	mu       sync.Mutex
	listener net.Listener
}

type NewTCPServerOptions struct {
	Addr             string
	Registry         *sessions.Registry
	Engine           *broadcast.Engine
	Clock            *workers.DayCycleClock
	Seed             int64
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
}

// NewTCPServer creates a new TCPServer.
func NewTCPServer(opts NewTCPServerOptions) *TCPServer {
	return &TCPServer{
		addr:             opts.Addr,
		registry:         opts.Registry,
		engine:           opts.Engine,
		clock:            opts.Clock,
		seed:             opts.Seed,
		handshakeTimeout: opts.HandshakeTimeout,
		idleTimeout:      opts.IdleTimeout,
	}
}

// Start listens on the configured address and accepts connections
// until the context is canceled. It blocks until the listener closes.
func (s *TCPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Info("TCP server listening on %s", listener.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %v", err)
		}

		handler := NewConnectionHandler(NewConnectionHandlerOptions{
			Conn:             conn,
			Registry:         s.registry,
			Engine:           s.engine,
			Clock:            s.clock,
			Seed:             s.seed,
			HandshakeTimeout: s.handshakeTimeout,
			IdleTimeout:      s.idleTimeout,
		})
		go handler.Handle()
	}
}

// Addr returns the listener's address, useful when binding port 0.
func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every live session.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	s.registry.Close()
}

package network

import (
	"encoding/json"
	"net"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/broadcast"
	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/eliperez-dev/flightsync/pkg/sessions"
	"github.com/eliperez-dev/flightsync/pkg/workers"
)

const (
	// DefaultHandshakeTimeout bounds how long a new connection may take
	// to send its join message
	DefaultHandshakeTimeout = 10 * time.Second
	// DefaultIdleTimeout is the maximum silence tolerated from an
	// authenticated client before the session is dropped
	DefaultIdleTimeout = 30 * time.Second
)

// ConnectionState represents the lifecycle state of one connection
type ConnectionState int

const (
	ConnectionStateConnecting ConnectionState = iota
	ConnectionStateAuthenticated
	ConnectionStateClosing
	ConnectionStateClosed
)

// ConnectionHandler drives one client connection through its lifecycle:
// connecting until a valid join arrives, authenticated while updates
// flow, then closing exactly once however the session ends.
type ConnectionHandler struct {
	conn             net.Conn
	registry         *sessions.Registry
	engine           *broadcast.Engine
	clock            *workers.DayCycleClock
	seed             int64
	handshakeTimeout time.Duration
	idleTimeout      time.Duration
	state            ConnectionState
}

type NewConnectionHandlerOptions struct {
	Conn             net.Conn
	Registry         *sessions.Registry
	Engine           *broadcast.Engine
	Clock            *workers.DayCycleClock
	Seed             int64
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(opts NewConnectionHandlerOptions) *ConnectionHandler {
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &ConnectionHandler{
		conn:             opts.Conn,
		registry:         opts.Registry,
		engine:           opts.Engine,
		clock:            opts.Clock,
		seed:             opts.Seed,
		handshakeTimeout: opts.HandshakeTimeout,
		idleTimeout:      opts.IdleTimeout,
		state:            ConnectionStateConnecting,
	}
}

// Handle runs the connection to completion. It returns once the
// connection is closed and any session it held is removed.
func (h *ConnectionHandler) Handle() {
	state, peer, err := h.connecting()
	if err != nil {
		log.Debug("Connection from %s rejected: %v", h.conn.RemoteAddr(), err)
		h.conn.Close()
		h.state = ConnectionStateClosed
		return
	}
	h.state = ConnectionStateAuthenticated
	log.Info("Player %d (%s) connected from %s", state.ID, state.Name, h.conn.RemoteAddr())

	h.authenticated(state.ID)
	h.closing(state.ID, peer)
}

// connecting reads and validates the join handshake. On success the
// session is registered with its welcome already queued ahead of any
// broadcast, and the joined announcement has gone out.
func (h *ConnectionHandler) connecting() (messages.PlayerState, *broadcast.Peer, error) {
	if err := h.conn.SetReadDeadline(time.Now().Add(h.handshakeTimeout)); err != nil {
		return messages.PlayerState{}, nil, err
	}

	msg, err := messages.ReadMessage(h.conn)
	if err != nil {
		return messages.PlayerState{}, nil, err
	}
	if msg.Type != messages.MessageTypeClientJoin {
		return messages.PlayerState{}, nil, &ProtocolError{Reason: "first message must be a join"}
	}

	join := &messages.ClientJoin{}
	if err := json.Unmarshal(msg.Payload, join); err != nil {
		return messages.PlayerState{}, nil, &ProtocolError{Reason: "malformed join payload"}
	}
	if join.Name == "" {
		join.Name = "pilot"
	}
	if join.PlaneType == "" {
		join.PlaneType = messages.PlaneTypeLight
	}

	peer := broadcast.NewPeer(broadcast.NewPeerOptions{Conn: h.conn})

	state, err := h.registry.Register(join.Name, join.PlaneType, peer, func(id uint32, existing []messages.PlayerState) (*messages.Message, error) {
		return messages.NewMessage(messages.MessageTypeServerWelcome, &messages.ServerWelcome{
			ClientID:        id,
			Seed:            h.seed,
			TimeOfDay:       h.clock.TimeOfDay(),
			CycleSpeed:      h.clock.Speed(),
			ExistingPlayers: existing,
		})
	})
	if err != nil {
		h.reject(err)
		peer.Close()
		return messages.PlayerState{}, nil, err
	}

	if err := h.engine.PlayerJoined(state); err != nil {
		log.Error("Failed to broadcast join of player %d: %v", state.ID, err)
	}

	return state, peer, nil
}

// reject sends a best-effort error message before the connection is
// closed. Delivery is not guaranteed.
func (h *ConnectionHandler) reject(cause error) {
	msg, err := messages.NewMessage(messages.MessageTypeServerError, &messages.ServerError{
		Message: cause.Error(),
	})
	if err != nil {
		return
	}
	if err := h.conn.SetWriteDeadline(time.Now().Add(time.Second)); err != nil {
		return
	}
	if err := messages.WriteMessage(h.conn, msg); err != nil {
		log.Debug("Failed to send rejection to %s: %v", h.conn.RemoteAddr(), err)
	}
}

// authenticated is the steady-state read loop. It returns when the
// client disconnects, goes idle, or violates the protocol.
func (h *ConnectionHandler) authenticated(playerID uint32) {
	for {
		if err := h.conn.SetReadDeadline(time.Now().Add(h.idleTimeout)); err != nil {
			return
		}

		msg, err := messages.ReadMessage(h.conn)
		if err != nil {
			log.Debug("Read from player %d ended: %v", playerID, err)
			return
		}

		switch msg.Type {
		case messages.MessageTypeClientPlayerUpdate:
			update := &messages.ClientPlayerUpdate{}
			if err := json.Unmarshal(msg.Payload, update); err != nil {
				log.Warn("Malformed update from player %d, closing: %v", playerID, err)
				return
			}
			state, ok := h.registry.ApplyUpdate(playerID, *update)
			if !ok {
				return
			}
			if err := h.engine.PlayerUpdate(state); err != nil {
				log.Error("Failed to broadcast update of player %d: %v", playerID, err)
			}
		case messages.MessageTypeClientDisconnect:
			log.Info("Player %d disconnected gracefully", playerID)
			return
		default:
			log.Warn("Unexpected message type %s from player %d, closing", msg.Type, playerID)
			return
		}
	}
}

// closing removes the session, announces the departure exactly once,
// and tears down the connection.
func (h *ConnectionHandler) closing(playerID uint32, peer *broadcast.Peer) {
	h.state = ConnectionStateClosing

	if h.registry.Remove(playerID) {
		if err := h.engine.PlayerLeft(playerID); err != nil {
			log.Error("Failed to broadcast departure of player %d: %v", playerID, err)
		}
	}
	peer.Close()

	h.state = ConnectionStateClosed
	log.Info("Player %d session closed", playerID)
}

package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/eliperez-dev/flightsync/pkg/queue"
)

const (
	DefaultServerAddr = "localhost:7878"
	// DefaultSendInterval is the state send rate, 20 times per second
	DefaultSendInterval = 50 * time.Millisecond
	// DefaultHandshakeTimeout bounds the wait for the server welcome
	DefaultHandshakeTimeout = 5 * time.Second
	// DefaultDialTimeout bounds the TCP dial
	DefaultDialTimeout = 5 * time.Second
)

// Status represents the observable connection status.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is what the read loop delivers to the consumer queue: either a
// server message or a terminal error, never both.
type Event struct {
	Message *messages.Message
	Err     error
}

// NetworkManager owns the connection to the server. Incoming messages
// are enqueued on the event queue for the game loop to drain; outgoing
// state is coalesced so only the freshest update is sent each tick.
type NetworkManager struct {
	serverAddr       string
	eventQueue       queue.Queue
	sendInterval     time.Duration
	handshakeTimeout time.Duration
	dialTimeout      time.Duration

	mu            sync.Mutex
	conn          net.Conn
	status        Status
	clientID      uint32
	pendingUpdate *messages.ClientPlayerUpdate
	cancel        context.CancelFunc

	writeMu    sync.Mutex
	wg         sync.WaitGroup
	statusChan chan Status
}

type NewNetworkManagerOptions struct {
	ServerAddr       string
	EventQueue       queue.Queue
	SendInterval     time.Duration
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration
}

// NewNetworkManager creates a new network manager.
func NewNetworkManager(opts NewNetworkManagerOptions) *NetworkManager {
	if opts.ServerAddr == "" {
		opts.ServerAddr = DefaultServerAddr
	}
	if opts.SendInterval == 0 {
		opts.SendInterval = DefaultSendInterval
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	return &NetworkManager{
		serverAddr:       opts.ServerAddr,
		eventQueue:       opts.EventQueue,
		sendInterval:     opts.SendInterval,
		handshakeTimeout: opts.HandshakeTimeout,
		dialTimeout:      opts.DialTimeout,
		statusChan:       make(chan Status, 8),
	}
}

// Connect dials the server, performs the join handshake, and starts
// the read and send loops. It returns the server welcome on success.
func (m *NetworkManager) Connect(join *messages.ClientJoin) (*messages.ServerWelcome, error) {
	m.setStatus(StatusConnecting)

	conn, err := net.DialTimeout("tcp", m.serverAddr, m.dialTimeout)
	if err != nil {
		m.setStatus(StatusError)
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}

	welcome, err := m.handshake(conn, join)
	if err != nil {
		conn.Close()
		m.setStatus(StatusError)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.conn = conn
	m.clientID = welcome.ClientID
	m.cancel = cancel
	m.mu.Unlock()

	m.setStatus(StatusConnected)
	log.Info("Connected to server with client ID %d", welcome.ClientID)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.readLoop(ctx, conn)
	}()
	go func() {
		defer m.wg.Done()
		m.sendLoop(ctx, conn)
	}()

	return welcome, nil
}

func (m *NetworkManager) handshake(conn net.Conn, join *messages.ClientJoin) (*messages.ServerWelcome, error) {
	msg, err := messages.NewMessage(messages.MessageTypeClientJoin, join)
	if err != nil {
		return nil, fmt.Errorf("failed to build join message: %v", err)
	}
	if err := messages.WriteMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send join message: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(m.handshakeTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set handshake deadline: %v", err)
	}
	reply, err := messages.ReadMessage(conn)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &ErrHandshakeTimeout{}
		}
		return nil, fmt.Errorf("failed to read welcome: %v", err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to clear handshake deadline: %v", err)
	}

	switch reply.Type {
	case messages.MessageTypeServerWelcome:
		welcome := &messages.ServerWelcome{}
		if err := json.Unmarshal(reply.Payload, welcome); err != nil {
			return nil, fmt.Errorf("failed to deserialize welcome: %v", err)
		}
		return welcome, nil
	case messages.MessageTypeServerError:
		serverError := &messages.ServerError{}
		if err := json.Unmarshal(reply.Payload, serverError); err != nil {
			return nil, fmt.Errorf("failed to deserialize server error: %v", err)
		}
		return nil, &ErrJoinRejected{Reason: serverError.Message}
	default:
		return nil, fmt.Errorf("received unexpected message type during handshake: %s", reply.Type)
	}
}

// readLoop delivers server messages to the event queue until the
// connection ends, then delivers one terminal error event.
func (m *NetworkManager) readLoop(ctx context.Context, conn net.Conn) {
	for {
		msg, err := messages.ReadMessage(conn)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if _, ok := err.(*messages.ErrConnectionClosed); ok {
				err = &ErrConnectionClosedByServer{}
			}
			m.setStatus(StatusError)
			if enqueueErr := m.eventQueue.Enqueue(&Event{Err: err}); enqueueErr != nil {
				log.Error("Failed to enqueue terminal event: %v", enqueueErr)
			}
			return
		}

		if err := m.eventQueue.Enqueue(&Event{Message: msg}); err != nil {
			log.Warn("Failed to enqueue server message: %v", err)
		}
	}
}

// sendLoop flushes the freshest pending update at the send rate.
// Updates produced faster than the send rate overwrite each other.
func (m *NetworkManager) sendLoop(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(m.sendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			update := m.pendingUpdate
			m.pendingUpdate = nil
			m.mu.Unlock()
			if update == nil {
				continue
			}

			msg, err := messages.NewMessage(messages.MessageTypeClientPlayerUpdate, update)
			if err != nil {
				log.Error("Failed to build player update message: %v", err)
				continue
			}
			if err := m.writeMessage(conn, msg); err != nil {
				if ctx.Err() == nil {
					log.Error("Failed to send player update: %v", err)
				}
				return
			}
		}
	}
}

func (m *NetworkManager) writeMessage(conn net.Conn, msg *messages.Message) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return messages.WriteMessage(conn, msg)
}

// SendUpdate stages the local player's state for the next send tick.
func (m *NetworkManager) SendUpdate(update *messages.ClientPlayerUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingUpdate = update
}

// Disconnect announces a graceful disconnect, tears down the
// connection, and clears the event queue. Safe to call more than once.
func (m *NetworkManager) Disconnect() error {
	m.mu.Lock()
	conn := m.conn
	cancel := m.cancel
	m.conn = nil
	m.cancel = nil
	m.clientID = 0
	m.pendingUpdate = nil
	m.mu.Unlock()

	if conn == nil {
		log.Warn("Network manager already disconnected")
		return nil
	}
	cancel()

	// best-effort goodbye, the server also handles abrupt closes
	if msg, err := messages.NewMessage(messages.MessageTypeClientDisconnect, &messages.ClientDisconnect{}); err == nil {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := m.writeMessage(conn, msg); err != nil {
			log.Debug("Failed to send disconnect message: %v", err)
		}
	}
	conn.Close()

	m.wg.Wait()
	m.setStatus(StatusDisconnected)

	if err := m.eventQueue.ClearQueue(); err != nil {
		return fmt.Errorf("failed to clear event queue: %v", err)
	}

	log.Info("Network manager disconnected")
	return nil
}

// ClientID returns the id the server assigned, 0 before connect.
func (m *NetworkManager) ClientID() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientID
}

// Status returns the current connection status.
func (m *NetworkManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// StatusChan returns a channel of status transitions. Slow consumers
// miss transitions rather than blocking the manager.
func (m *NetworkManager) StatusChan() <-chan Status {
	return m.statusChan
}

// EventQueue returns the queue the read loop delivers into.
func (m *NetworkManager) EventQueue() queue.Queue {
	return m.eventQueue
}

func (m *NetworkManager) setStatus(status Status) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()

	select {
	case m.statusChan <- status:
	default:
	}
}

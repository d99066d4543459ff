package sessions

import (
	"sync"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/broadcast"
	"github.com/eliperez-dev/flightsync/pkg/kinematic"
	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/messages"
)

const (
	// DefaultMaxSessions caps the number of concurrent sessions
	DefaultMaxSessions = 64
	// SessionEventChannelSize represents the size of the session event channel
	SessionEventChannelSize = 256
)

// ErrServerFull is returned when the registry cannot admit another session.
type ErrServerFull struct{}

func (e *ErrServerFull) Error() string {
	return "server is full"
}

// ErrRegistryClosed is returned when registering during shutdown.
type ErrRegistryClosed struct{}

func (e *ErrRegistryClosed) Error() string {
	return "registry is closed"
}

// Session binds a live connection to a player identity and its last
// known state.
type Session struct {
	ID        uint32
	Name      string
	Peer      *broadcast.Peer
	LastState messages.PlayerState
	LastSeen  time.Time
	JoinedAt  time.Time
}

// SessionEventType represents the type of a session event
type SessionEventType int

const (
	SessionEventTypeConnect SessionEventType = iota
	SessionEventTypeDisconnect
)

// SessionEvent represents a session lifecycle change
type SessionEvent struct {
	PlayerID uint32
	Name     string
	Type     SessionEventType
	Time     time.Time
}

// Registry is the authoritative map of player id to live session.
// All mutations are serialized behind one mutex, which is never held
// across a network wait: peers only ever get frames enqueued.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[uint32]*Session
	nextID      uint32
	maxSessions int
	closed      bool
	eventChan   chan SessionEvent
}

type NewRegistryOptions struct {
	MaxSessions int
}

// NewRegistry creates a new Registry
func NewRegistry(opts NewRegistryOptions) *Registry {
	if opts.MaxSessions == 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	return &Registry{
		sessions:    make(map[uint32]*Session),
		nextID:      1,
		maxSessions: opts.MaxSessions,
		eventChan:   make(chan SessionEvent, SessionEventChannelSize),
	}
}

// Events returns a one-way channel of session lifecycle events.
func (r *Registry) Events() <-chan SessionEvent {
	return r.eventChan
}

// Register admits a new session, assigns the next unused id, and
// enqueues the welcome message built by welcomeFn on the peer before
// any broadcast can reach it. Ids are never reused within the process
// lifetime. The initial state is returned for the joined broadcast.
func (r *Registry) Register(name string, planeType messages.PlaneType, peer *broadcast.Peer, welcomeFn func(id uint32, existing []messages.PlayerState) (*messages.Message, error)) (messages.PlayerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return messages.PlayerState{}, &ErrRegistryClosed{}
	}
	if len(r.sessions) >= r.maxSessions {
		return messages.PlayerState{}, &ErrServerFull{}
	}

	id := r.nextID
	r.nextID++

	existing := make([]messages.PlayerState, 0, len(r.sessions))
	for _, session := range r.sessions {
		existing = append(existing, session.LastState)
	}

	welcome, err := welcomeFn(id, existing)
	if err != nil {
		return messages.PlayerState{}, err
	}
	if err := peer.Send(welcome); err != nil {
		return messages.PlayerState{}, err
	}

	now := time.Now()
	state := messages.PlayerState{
		ID:        id,
		Name:      name,
		Rotation:  kinematic.QuaternionIdentity(),
		PlaneType: planeType,
		Timestamp: now.UnixMilli(),
	}
	r.sessions[id] = &Session{
		ID:        id,
		Name:      name,
		Peer:      peer,
		LastState: state,
		LastSeen:  now,
		JoinedAt:  now,
	}

	r.emit(SessionEvent{
		PlayerID: id,
		Name:     name,
		Type:     SessionEventTypeConnect,
		Time:     now,
	})

	return state, nil
}

// ApplyUpdate merges a position update into the session's last state
// and refreshes its seen time, returning the merged state. It returns
// false if the id is unknown (disconnect race), which callers silently
// drop.
func (r *Registry) ApplyUpdate(id uint32, update messages.ClientPlayerUpdate) (messages.PlayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return messages.PlayerState{}, false
	}
	session.LastState.Position = update.Position
	session.LastState.Rotation = update.Rotation
	session.LastState.Timestamp = update.Timestamp
	session.LastSeen = time.Now()
	return session.LastState, true
}

// Remove deletes a session. It is idempotent and reports whether a
// session was actually removed.
func (r *Registry) Remove(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)

	r.emit(SessionEvent{
		PlayerID: id,
		Name:     session.Name,
		Type:     SessionEventTypeDisconnect,
		Time:     time.Now(),
	})

	return true
}

// Snapshot returns a consistent copy of every session's last state.
func (r *Registry) Snapshot() []messages.PlayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]messages.PlayerState, 0, len(r.sessions))
	for _, session := range r.sessions {
		states = append(states, session.LastState)
	}
	return states
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ForEachPeer calls fn for every live peer except exclude.
func (r *Registry) ForEachPeer(exclude uint32, fn func(peer *broadcast.Peer)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, session := range r.sessions {
		if id == exclude {
			continue
		}
		fn(session.Peer)
	}
}

// Close marks the registry closed, closes every peer, and drains the
// session map. Register fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for id, session := range r.sessions {
		session.Peer.Close()
		delete(r.sessions, id)
	}
}

// emit publishes a session event without ever blocking the registry
// lock on a slow consumer.
func (r *Registry) emit(event SessionEvent) {
	select {
	case r.eventChan <- event:
	default:
		log.Warn("Session event channel is full, dropping event for player %d", event.PlayerID)
	}
}

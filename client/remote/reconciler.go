package remote

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/eliperez-dev/flightsync/client/network"
	"github.com/eliperez-dev/flightsync/pkg/kinematic"
	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/eliperez-dev/flightsync/pkg/queue"
)

const (
	// DefaultStaleAfter is how long a remote player may go silent
	// before its rendering is frozen in place
	DefaultStaleAfter = 5 * time.Second
	// DefaultNominalInterval is the assumed gap between server updates
	// when only one sample has arrived
	DefaultNominalInterval = 50 * time.Millisecond
)

// Renderer is the presentation side the reconciler drives. Implementations
// must tolerate despawns for ids they have already dropped.
type Renderer interface {
	SpawnPlayer(state messages.PlayerState)
	UpdatePlayer(id uint32, position kinematic.Vector3, rotation kinematic.Quaternion)
	DespawnPlayer(id uint32)
}

// RemotePlayer tracks the last two authoritative states of one remote
// player and when each arrived, which drives the interpolation.
type RemotePlayer struct {
	ID        uint32
	Name      string
	PlaneType messages.PlaneType

	prev        messages.PlayerState
	next        messages.PlayerState
	prevArrival time.Time
	nextArrival time.Time
	hasPrev     bool
	lastSeen    time.Time
}

// Reconciler applies server events to the set of remote players and
// interpolates their rendered positions between authoritative states.
// It never extrapolates past the newest state.
type Reconciler struct {
	localID         uint32
	eventQueue      queue.Queue
	renderer        Renderer
	players         map[uint32]*RemotePlayer
	staleAfter      time.Duration
	nominalInterval time.Duration
	now             func() time.Time
}

type NewReconcilerOptions struct {
	LocalID         uint32
	EventQueue      queue.Queue
	Renderer        Renderer
	StaleAfter      time.Duration
	NominalInterval time.Duration
	// Now is the time source, settable for tests
	Now func() time.Time
}

// NewReconciler creates a new Reconciler.
func NewReconciler(opts NewReconcilerOptions) *Reconciler {
	if opts.StaleAfter == 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.NominalInterval == 0 {
		opts.NominalInterval = DefaultNominalInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		localID:         opts.LocalID,
		eventQueue:      opts.EventQueue,
		renderer:        opts.Renderer,
		players:         make(map[uint32]*RemotePlayer),
		staleAfter:      opts.StaleAfter,
		nominalInterval: opts.NominalInterval,
		now:             opts.Now,
	}
}

// Bootstrap spawns the players that were already in the world when the
// welcome arrived.
func (r *Reconciler) Bootstrap(existing []messages.PlayerState) {
	for _, state := range existing {
		if state.ID == r.localID {
			continue
		}
		r.spawn(state)
	}
}

// ProcessEvents drains the event queue and applies every server event.
// It returns the terminal error if the connection has ended.
func (r *Reconciler) ProcessEvents() error {
	items, err := r.eventQueue.ReadAllMessages()
	if err != nil {
		return fmt.Errorf("failed to read event queue: %v", err)
	}

	for _, item := range items {
		event, ok := item.(*network.Event)
		if !ok {
			log.Error("Unexpected item type in event queue: %T", item)
			continue
		}
		if event.Err != nil {
			return event.Err
		}
		if err := r.handleMessage(event.Message); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) handleMessage(msg *messages.Message) error {
	switch msg.Type {
	case messages.MessageTypeServerPlayerJoined:
		joined := &messages.ServerPlayerJoined{}
		if err := json.Unmarshal(msg.Payload, joined); err != nil {
			return fmt.Errorf("failed to deserialize player joined message: %v", err)
		}
		r.applyJoin(joined.Player)
	case messages.MessageTypeServerPlayerUpdate:
		update := &messages.ServerPlayerUpdate{}
		if err := json.Unmarshal(msg.Payload, update); err != nil {
			return fmt.Errorf("failed to deserialize player update message: %v", err)
		}
		r.applyUpdate(update)
	case messages.MessageTypeServerPlayerLeft:
		left := &messages.ServerPlayerLeft{}
		if err := json.Unmarshal(msg.Payload, left); err != nil {
			return fmt.Errorf("failed to deserialize player left message: %v", err)
		}
		r.applyLeft(left.ID)
	case messages.MessageTypeServerError:
		serverError := &messages.ServerError{}
		if err := json.Unmarshal(msg.Payload, serverError); err != nil {
			return fmt.Errorf("failed to deserialize server error message: %v", err)
		}
		return fmt.Errorf("server error: %s", serverError.Message)
	default:
		log.Warn("Ignoring unexpected message type %s", msg.Type)
	}
	return nil
}

func (r *Reconciler) applyJoin(state messages.PlayerState) {
	if state.ID == r.localID {
		return
	}
	if _, ok := r.players[state.ID]; ok {
		log.Debug("Player %d already known, ignoring join", state.ID)
		return
	}
	r.spawn(state)
}

func (r *Reconciler) applyUpdate(update *messages.ServerPlayerUpdate) {
	if update.ID == r.localID {
		return
	}

	player, ok := r.players[update.ID]
	if !ok {
		// an update for an unknown player acts as an implicit join
		r.spawn(messages.PlayerState{
			ID:        update.ID,
			Position:  update.Position,
			Rotation:  update.Rotation,
			Timestamp: update.Timestamp,
		})
		return
	}

	now := r.now()
	player.prev = player.next
	player.prevArrival = player.nextArrival
	player.hasPrev = true
	player.next = messages.PlayerState{
		ID:        update.ID,
		Name:      player.Name,
		Position:  update.Position,
		Rotation:  update.Rotation,
		PlaneType: player.PlaneType,
		Timestamp: update.Timestamp,
	}
	player.nextArrival = now
	player.lastSeen = now
}

func (r *Reconciler) applyLeft(id uint32) {
	if _, ok := r.players[id]; !ok {
		return
	}
	delete(r.players, id)
	r.renderer.DespawnPlayer(id)
}

func (r *Reconciler) spawn(state messages.PlayerState) {
	now := r.now()
	r.players[state.ID] = &RemotePlayer{
		ID:          state.ID,
		Name:        state.Name,
		PlaneType:   state.PlaneType,
		next:        state,
		nextArrival: now,
		lastSeen:    now,
	}
	r.renderer.SpawnPlayer(state)
}

// Update advances the rendered position of every remote player toward
// its newest authoritative state. Players silent past the staleness
// window are frozen where they are.
func (r *Reconciler) Update() {
	now := r.now()
	for _, player := range r.players {
		if now.Sub(player.lastSeen) > r.staleAfter {
			continue
		}

		if !player.hasPrev {
			r.renderer.UpdatePlayer(player.ID, player.next.Position, player.next.Rotation)
			continue
		}

		gap := player.nextArrival.Sub(player.prevArrival)
		if gap <= 0 {
			gap = r.nominalInterval
		}
		factor := float64(now.Sub(player.nextArrival)) / float64(gap)
		if factor < 0 {
			factor = 0
		}
		if factor > 1 {
			factor = 1
		}

		position := kinematic.Lerp(player.prev.Position, player.next.Position, factor)
		rotation := kinematic.NLerp(player.prev.Rotation, player.next.Rotation, factor)
		r.renderer.UpdatePlayer(player.ID, position, rotation)
	}
}

// Roster returns the known remote players sorted by id.
func (r *Reconciler) Roster() []messages.PlayerState {
	roster := make([]messages.PlayerState, 0, len(r.players))
	for _, player := range r.players {
		roster = append(roster, player.next)
	}
	sort.Slice(roster, func(i, j int) bool {
		return roster[i].ID < roster[j].ID
	})
	return roster
}

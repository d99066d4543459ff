package broadcast

import (
	"fmt"

	"github.com/eliperez-dev/flightsync/pkg/messages"
)

// Roster exposes the live peers of the session registry to the engine.
type Roster interface {
	// ForEachPeer calls fn for every live peer except exclude.
	// fn must not block.
	ForEachPeer(exclude uint32, fn func(peer *Peer))
}

// Engine fans state-change events out to every other session. Each
// event is serialized once; delivery is isolated per peer.
type Engine struct {
	roster Roster
}

// NewEngine creates a new broadcast engine over the given roster.
func NewEngine(roster Roster) *Engine {
	return &Engine{
		roster: roster,
	}
}

// PlayerJoined announces a new player to every other session.
func (e *Engine) PlayerJoined(state messages.PlayerState) error {
	msg, err := messages.NewMessage(messages.MessageTypeServerPlayerJoined, &messages.ServerPlayerJoined{
		Player: state,
	})
	if err != nil {
		return fmt.Errorf("failed to build player joined message: %v", err)
	}
	frame, err := messages.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("failed to encode player joined frame: %v", err)
	}
	e.roster.ForEachPeer(state.ID, func(peer *Peer) {
		peer.QueueControl(state.ID, frame)
	})
	return nil
}

// PlayerUpdate delivers a player's latest state to every other session.
func (e *Engine) PlayerUpdate(state messages.PlayerState) error {
	msg, err := messages.NewMessage(messages.MessageTypeServerPlayerUpdate, &messages.ServerPlayerUpdate{
		ID:        state.ID,
		Position:  state.Position,
		Rotation:  state.Rotation,
		Timestamp: state.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to build player update message: %v", err)
	}
	frame, err := messages.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("failed to encode player update frame: %v", err)
	}
	e.roster.ForEachPeer(state.ID, func(peer *Peer) {
		peer.QueueUpdate(state.ID, frame)
	})
	return nil
}

// PlayerLeft announces the end of a player's session to everyone still
// connected.
func (e *Engine) PlayerLeft(playerID uint32) error {
	msg, err := messages.NewMessage(messages.MessageTypeServerPlayerLeft, &messages.ServerPlayerLeft{
		ID: playerID,
	})
	if err != nil {
		return fmt.Errorf("failed to build player left message: %v", err)
	}
	frame, err := messages.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("failed to encode player left frame: %v", err)
	}
	e.roster.ForEachPeer(playerID, func(peer *Peer) {
		peer.QueueControl(playerID, frame)
	})
	return nil
}

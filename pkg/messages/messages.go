package messages

import (
	"encoding/json"

	"github.com/eliperez-dev/flightsync/pkg/kinematic"
)

const (
	// MaxMessageSize represents the maximum size of a framed message body
	MaxMessageSize = 16384
)

type MessageType string

// Message types
const (
	MessageTypeClientJoin         MessageType = "cj"
	MessageTypeClientPlayerUpdate MessageType = "cpu"
	MessageTypeClientDisconnect   MessageType = "cdc"
	MessageTypeServerWelcome      MessageType = "sw"
	MessageTypeServerPlayerJoined MessageType = "spj"
	MessageTypeServerPlayerUpdate MessageType = "spu"
	MessageTypeServerPlayerLeft   MessageType = "spl"
	MessageTypeServerError        MessageType = "serr"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage creates a Message of the given type with a marshaled payload.
func NewMessage(messageType MessageType, payload interface{}) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:    messageType,
		Payload: b,
	}, nil
}

// PlaneType identifies the aircraft model a player is flying.
type PlaneType string

const (
	PlaneTypeLight PlaneType = "light"
	PlaneTypeJet   PlaneType = "jet"
)

// PlayerState is the authoritative state of one player.
type PlayerState struct {
	ID        uint32               `json:"id"`
	Name      string               `json:"name"`
	Position  kinematic.Vector3    `json:"position"`
	Rotation  kinematic.Quaternion `json:"rotation"`
	PlaneType PlaneType            `json:"planeType"`
	Timestamp int64                `json:"timestamp"`
}

// ClientJoin is sent as the first message on a new connection.
type ClientJoin struct {
	Name      string    `json:"name"`
	PlaneType PlaneType `json:"planeType"`
}

// ClientPlayerUpdate carries the local player's current state.
type ClientPlayerUpdate struct {
	Position  kinematic.Vector3    `json:"position"`
	Rotation  kinematic.Quaternion `json:"rotation"`
	Timestamp int64                `json:"timestamp"`
}

// ClientDisconnect announces a graceful disconnect.
type ClientDisconnect struct{}

// ServerWelcome is the first message a client receives after a valid join.
type ServerWelcome struct {
	ClientID        uint32        `json:"clientID"`
	Seed            int64         `json:"seed"`
	TimeOfDay       float64       `json:"timeOfDay"`
	CycleSpeed      float64       `json:"cycleSpeed"`
	ExistingPlayers []PlayerState `json:"existingPlayers"`
}

// ServerPlayerJoined announces a new player to everyone else.
type ServerPlayerJoined struct {
	Player PlayerState `json:"player"`
}

// ServerPlayerUpdate carries another player's latest state.
type ServerPlayerUpdate struct {
	ID        uint32               `json:"id"`
	Position  kinematic.Vector3    `json:"position"`
	Rotation  kinematic.Quaternion `json:"rotation"`
	Timestamp int64                `json:"timestamp"`
}

// ServerPlayerLeft announces that a player's session ended.
type ServerPlayerLeft struct {
	ID uint32 `json:"id"`
}

// ServerError reports a fatal condition before the server closes the connection.
type ServerError struct {
	Message string `json:"message"`
}

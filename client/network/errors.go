package network

import "fmt"

// ErrConnectionClosedByServer is returned when the connection is closed by the server
type ErrConnectionClosedByServer struct{}

func (e *ErrConnectionClosedByServer) Error() string {
	return "connection closed by server"
}

// ErrConnectionClosedByClient is returned when the connection is closed locally
type ErrConnectionClosedByClient struct{}

func (e *ErrConnectionClosedByClient) Error() string {
	return "connection closed by client"
}

// ErrJoinRejected is returned when the server refuses the join handshake.
type ErrJoinRejected struct {
	Reason string
}

func (e *ErrJoinRejected) Error() string {
	return fmt.Sprintf("join rejected by server: %s", e.Reason)
}

// ErrHandshakeTimeout is returned when no welcome arrives in time.
type ErrHandshakeTimeout struct{}

func (e *ErrHandshakeTimeout) Error() string {
	return "timed out waiting for server welcome"
}

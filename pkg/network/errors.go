package network

import "fmt"

// ProtocolError is returned when a client violates the wire protocol,
// for example by sending anything other than a join as its first
// message. The connection is closed immediately.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

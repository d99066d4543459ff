package messages

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frames are a 4-byte little-endian body length followed by the
// serialized message body. Both ends of a connection use the same
// encoding.

// ErrConnectionClosed is returned when the remote end closed the stream
// on a frame boundary.
type ErrConnectionClosed struct{}

func (e *ErrConnectionClosed) Error() string {
	return "connection closed"
}

// EncodeFrame serializes a message and prepends the length prefix.
func EncodeFrame(m *Message) ([]byte, error) {
	body, err := SerializeMessage(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	if len(body) > MaxMessageSize {
		return nil, fmt.Errorf("message body of %d bytes exceeds %d", len(body), MaxMessageSize)
	}

	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)
	return frame, nil
}

// WriteMessage writes one framed message to w.
func WriteMessage(w io.Writer, m *Message) error {
	frame, err := EncodeFrame(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %v", err)
	}
	return nil
}

// ReadMessage reads one framed message from r. A clean close on a frame
// boundary returns ErrConnectionClosed; anything the frame or body rules
// reject is an error the caller must treat as fatal for the connection.
func ReadMessage(r io.Reader) (*Message, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ErrConnectionClosed{}
		}
		return nil, fmt.Errorf("failed to read frame length: %w", err)
	}

	length := binary.LittleEndian.Uint32(lenBytes[:])
	if length == 0 || length > MaxMessageSize {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	msg, err := DeserializeMessage(body)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}
	return msg, nil
}

package broadcast

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeUpdateFrame(t *testing.T, playerID uint32, timestamp int64) []byte {
	t.Helper()
	msg, err := messages.NewMessage(messages.MessageTypeServerPlayerUpdate, &messages.ServerPlayerUpdate{
		ID:        playerID,
		Timestamp: timestamp,
	})
	require.NoError(t, err)
	frame, err := messages.EncodeFrame(msg)
	require.NoError(t, err)
	return frame
}

func encodeLeftFrame(t *testing.T, playerID uint32) []byte {
	t.Helper()
	msg, err := messages.NewMessage(messages.MessageTypeServerPlayerLeft, &messages.ServerPlayerLeft{
		ID: playerID,
	})
	require.NoError(t, err)
	frame, err := messages.EncodeFrame(msg)
	require.NoError(t, err)
	return frame
}

func encodeJoinedFrame(t *testing.T, playerID uint32) []byte {
	t.Helper()
	msg, err := messages.NewMessage(messages.MessageTypeServerPlayerJoined, &messages.ServerPlayerJoined{
		Player: messages.PlayerState{ID: playerID},
	})
	require.NoError(t, err)
	frame, err := messages.EncodeFrame(msg)
	require.NoError(t, err)
	return frame
}

// readAll reads count messages from conn on a goroutine.
func readAll(t *testing.T, conn net.Conn, count int) []*messages.Message {
	t.Helper()
	received := make([]*messages.Message, 0, count)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < count; i++ {
			msg, err := messages.ReadMessage(conn)
			if err != nil {
				return
			}
			received = append(received, msg)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out reading messages")
	}
	return received
}

func TestPeerDeliversInOrder(t *testing.T) {
	server, client := net.Pipe()
	peer := NewPeer(NewPeerOptions{Conn: server})
	defer peer.Close()

	peer.QueueControl(1, encodeJoinedFrame(t, 1))
	peer.QueueUpdate(1, encodeUpdateFrame(t, 1, 100))
	peer.QueueUpdate(2, encodeUpdateFrame(t, 2, 200))

	received := readAll(t, client, 3)
	require.Len(t, received, 3)
	assert.Equal(t, messages.MessageTypeServerPlayerJoined, received[0].Type)
	assert.Equal(t, messages.MessageTypeServerPlayerUpdate, received[1].Type)
	assert.Equal(t, messages.MessageTypeServerPlayerUpdate, received[2].Type)
}

func TestPeerCoalescesUpdates(t *testing.T) {
	server, client := net.Pipe()
	peer := NewPeer(NewPeerOptions{Conn: server})
	defer peer.Close()

	// the writer blocks on the unread joined frame, so the updates
	// below stay queued until the reader starts
	peer.QueueControl(1, encodeJoinedFrame(t, 1))
	peer.QueueUpdate(7, encodeUpdateFrame(t, 7, 1))
	peer.QueueUpdate(7, encodeUpdateFrame(t, 7, 2))
	peer.QueueUpdate(7, encodeUpdateFrame(t, 7, 3))

	received := readAll(t, client, 2)
	require.Len(t, received, 2)
	assert.Equal(t, messages.MessageTypeServerPlayerJoined, received[0].Type)

	update := &messages.ServerPlayerUpdate{}
	require.NoError(t, json.Unmarshal(received[1].Payload, update))
	assert.Equal(t, uint32(7), update.ID)
	assert.Equal(t, int64(3), update.Timestamp, "only the newest update should survive")
}

func TestPeerDropsOldestUpdateWhenSaturated(t *testing.T) {
	server, client := net.Pipe()
	peer := NewPeer(NewPeerOptions{Conn: server, MaxPendingUpdates: 2})
	defer peer.Close()

	peer.QueueControl(1, encodeJoinedFrame(t, 1))
	peer.QueueUpdate(10, encodeUpdateFrame(t, 10, 1))
	peer.QueueUpdate(11, encodeUpdateFrame(t, 11, 2))
	peer.QueueUpdate(12, encodeUpdateFrame(t, 12, 3))

	received := readAll(t, client, 3)
	require.Len(t, received, 3)

	var ids []uint32
	for _, msg := range received[1:] {
		update := &messages.ServerPlayerUpdate{}
		require.NoError(t, json.Unmarshal(msg.Payload, update))
		ids = append(ids, update.ID)
	}
	assert.Equal(t, []uint32{11, 12}, ids, "the oldest pending update should be dropped")
}

func TestPeerLeftPurgesPendingUpdates(t *testing.T) {
	server, client := net.Pipe()
	peer := NewPeer(NewPeerOptions{Conn: server})
	defer peer.Close()

	peer.QueueControl(1, encodeJoinedFrame(t, 1))
	peer.QueueUpdate(5, encodeUpdateFrame(t, 5, 1))
	peer.QueueControl(5, encodeLeftFrame(t, 5))

	received := readAll(t, client, 2)
	require.Len(t, received, 2)
	assert.Equal(t, messages.MessageTypeServerPlayerJoined, received[0].Type)
	assert.Equal(t, messages.MessageTypeServerPlayerLeft, received[1].Type)
}

func TestPeerCloseIsIdempotent(t *testing.T) {
	server, _ := net.Pipe()
	peer := NewPeer(NewPeerOptions{Conn: server})

	peer.Close()
	peer.Close()

	select {
	case <-peer.Done():
	case <-time.After(time.Second):
		t.Fatal("peer did not shut down")
	}
}
